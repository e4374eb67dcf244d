package gedcom

// Tree is a decoded GEDCOM file. Every list keeps file order. The lookup
// maps are keyed by the raw cross-reference including its @ delimiters.
type Tree struct {
	Families    []*Family
	Individuals []*Individual
	Sources     []*Source
	Notes       []*Note

	families    map[string]*Family
	individuals map[string]*Individual
	sources     map[string]*Source
	notes       map[string]*Note
}

// Family is a FAM record
type Family struct {
	Xref     string
	Husband  *Individual
	Wife     *Individual
	Children []*Individual
	Events   []*Event

	record *line
}

// Individual is an INDI record
type Individual struct {
	Xref       string
	Names      []*Name
	Sex        string
	Notes      []*Note
	Events     []*Event
	Attributes []*Event
	Citations  []*Citation
}

// Name is one NAME variant of an individual
type Name struct {
	Basic     string
	Citations []*Citation
}

// Event is an individual event, an individual attribute or a family event
type Event struct {
	Tag         string
	Description string
	Date        string
	Place       string
	Notes       []*Note
	Citations   []*Citation
}

// Note is either an inline NOTE or a NOTE record. CONT starts a new line.
type Note struct {
	Xref  string
	Lines []string
}

// Citation is a SOUR reference from a fact to a source record. Source is
// nil for inline citations that carry no pointer.
type Citation struct {
	Source    *Source
	Locator   string
	Certainty string
}

// Source is a SOUR record
type Source struct {
	Xref             string
	Title            []string
	PublicationFacts []string
	Authors          []string
	Notes            []*Note
}

var individualEventTags = map[string]bool{
	"BIRT": true, "CHR": true, "DEAT": true, "BURI": true, "CREM": true,
	"ADOP": true, "BAPM": true, "BARM": true, "BASM": true, "BLES": true,
	"CHRA": true, "CONF": true, "FCOM": true, "ORDN": true, "NATU": true,
	"EMIG": true, "IMMI": true, "CENS": true, "PROB": true, "WILL": true,
	"GRAD": true, "RETI": true, "EVEN": true,
}

var individualAttributeTags = map[string]bool{
	"CAST": true, "DSCR": true, "EDUC": true, "IDNO": true, "NATI": true,
	"NCHI": true, "NMR": true, "OCCU": true, "PROP": true, "RELI": true,
	"RESI": true, "SSN": true, "TITL": true, "FACT": true,
}

var familyEventTags = map[string]bool{
	"ANUL": true, "CENS": true, "DIV": true, "DIVF": true, "ENGA": true,
	"MARB": true, "MARC": true, "MARR": true, "MARL": true, "MARS": true,
	"RESI": true, "EVEN": true,
}
