package constants

// Node labels
const (
	LabelPerson = "Person"
	LabelFamily = "Family"
	LabelEvent  = "Event"
	LabelPlace  = "Place"
	LabelSource = "Source"
)

// Relationship types
const (
	// Family -> Person
	RelSpouseWife    = "SPOUSE_WIFE"
	RelSpouseHusband = "SPOUSE_HUSBAND"
	RelChild         = "CHILD"

	// Person -> Person, carries PropFamily
	RelMother = "MOTHER"
	RelFather = "FATHER"

	// Family/Person -> Event
	RelEvent = "EVENT"

	// Event -> Place
	RelPlace = "PLACE"

	// Person/Event -> Source, and Person -> Source for citations attesting a name
	RelCitation     = "CITATION"
	RelNameCitation = "NAME_CITATION"

	// Place -> broader Place
	RelContains = "CONTAINS"
)

// Property keys. These are a stable contract for anything reading the graph.
const (
	PropID               = "id"
	PropName             = "name"
	PropSex              = "sex"
	PropNotes            = "notes"
	PropType             = "type"
	PropDate             = "date"
	PropDescription      = "description"
	PropTitle            = "title"
	PropPublicationFacts = "publicationFacts"
	PropAuthor           = "author"
	PropLocator          = "locator"
	PropCertainty        = "certainty"
	PropFamily           = "family"
)

// PlaceDelimiter separates place name segments, most specific first
const PlaceDelimiter = ", "

// Locales of the event type labels
const (
	LocaleEnglish   = "en"
	LocaleNorwegian = "nb"
)
