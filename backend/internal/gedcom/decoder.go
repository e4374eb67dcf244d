package gedcom

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SyntaxError describes a line that does not follow the GEDCOM line grammar
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("gedcom: line %d: %s", e.Line, e.Msg)
}

// Decoder reads a GEDCOM 5.5 stream into a Tree
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a decoder reading from r. Input is expected to be UTF-8.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

type line struct {
	num      int
	level    int
	xref     string
	tag      string
	value    string
	children []*line
}

// Decode reads the whole stream and resolves every cross-reference.
func (d *Decoder) Decode() (*Tree, error) {
	data, err := io.ReadAll(d.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gedcom: %w", err)
	}

	records, err := parseLines(string(data))
	if err != nil {
		return nil, err
	}

	t := &Tree{
		families:    make(map[string]*Family),
		individuals: make(map[string]*Individual),
		sources:     make(map[string]*Source),
		notes:       make(map[string]*Note),
	}

	// Register records first so pointers resolve regardless of file order.
	// A repeated FAM xref still yields its own Family; any other repeated
	// record is ignored after its first occurrence.
	families := make(map[*line]*Family)
	first := make(map[string]*line)
	for _, rec := range records {
		if rec.xref == "" {
			continue
		}
		switch rec.tag {
		case "FAM":
			f := t.familyRef(rec.xref)
			if _, seen := families[f.record]; seen {
				f = &Family{Xref: rec.xref}
			}
			f.record = rec
			families[rec] = f
			t.Families = append(t.Families, f)
			continue
		case "INDI", "SOUR", "NOTE":
		default:
			continue
		}

		if _, seen := first[rec.tag+rec.xref]; seen {
			continue
		}
		first[rec.tag+rec.xref] = rec
		switch rec.tag {
		case "INDI":
			t.Individuals = append(t.Individuals, t.individualRef(rec.xref))
		case "SOUR":
			t.Sources = append(t.Sources, t.sourceRef(rec.xref))
		case "NOTE":
			t.Notes = append(t.Notes, t.noteRef(rec.xref))
		}
	}

	for _, rec := range records {
		if rec.xref == "" {
			continue
		}
		if rec.tag == "FAM" {
			t.decodeFamily(families[rec], rec)
			continue
		}
		if first[rec.tag+rec.xref] != rec {
			continue
		}
		switch rec.tag {
		case "INDI":
			t.decodeIndividual(t.individuals[rec.xref], rec)
		case "SOUR":
			t.decodeSource(t.sources[rec.xref], rec)
		case "NOTE":
			t.notes[rec.xref].Lines = text(rec)
		}
	}

	return t, nil
}

func parseLines(data string) ([]*line, error) {
	data = strings.TrimPrefix(data, "\uFEFF")
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")

	var records []*line
	var stack []*line

	for i, raw := range strings.Split(data, "\n") {
		num := i + 1
		raw = strings.TrimLeft(raw, " \t")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		l, err := parseLine(num, raw)
		if err != nil {
			return nil, err
		}

		if l.level == 0 {
			records = append(records, l)
			stack = append(stack[:0], l)
			continue
		}
		if len(stack) == 0 {
			return nil, &SyntaxError{Line: num, Msg: "first record must start at level 0"}
		}
		if l.level > len(stack) {
			return nil, &SyntaxError{Line: num, Msg: fmt.Sprintf("level %d follows level %d", l.level, len(stack)-1)}
		}
		stack = stack[:l.level]
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, l)
		stack = append(stack, l)
	}

	return records, nil
}

func parseLine(num int, raw string) (*line, error) {
	levelStr, rest, _ := strings.Cut(raw, " ")
	level, err := strconv.Atoi(levelStr)
	if err != nil || level < 0 {
		return nil, &SyntaxError{Line: num, Msg: fmt.Sprintf("invalid level %q", levelStr)}
	}

	l := &line{num: num, level: level}
	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, "@") {
		xref, after, _ := strings.Cut(rest, " ")
		if !isPointer(xref) {
			return nil, &SyntaxError{Line: num, Msg: fmt.Sprintf("invalid cross-reference %q", xref)}
		}
		l.xref = xref
		rest = strings.TrimLeft(after, " ")
	}

	tag, value, _ := strings.Cut(rest, " ")
	if tag == "" {
		return nil, &SyntaxError{Line: num, Msg: "missing tag"}
	}
	l.tag = strings.ToUpper(tag)
	l.value = value
	return l, nil
}

func isPointer(v string) bool {
	return len(v) > 2 && strings.HasPrefix(v, "@") && strings.HasSuffix(v, "@") && !strings.Contains(v, " ")
}

// text assembles a value continued by CONT and CONC sub-lines.
func text(l *line) []string {
	lines := []string{l.value}
	for _, c := range l.children {
		switch c.tag {
		case "CONT":
			lines = append(lines, c.value)
		case "CONC":
			lines[len(lines)-1] += c.value
		}
	}
	return lines
}

func (t *Tree) familyRef(xref string) *Family {
	f, ok := t.families[xref]
	if !ok {
		f = &Family{Xref: xref}
		t.families[xref] = f
	}
	return f
}

func (t *Tree) individualRef(xref string) *Individual {
	ind, ok := t.individuals[xref]
	if !ok {
		ind = &Individual{Xref: xref}
		t.individuals[xref] = ind
	}
	return ind
}

func (t *Tree) sourceRef(xref string) *Source {
	s, ok := t.sources[xref]
	if !ok {
		s = &Source{Xref: xref}
		t.sources[xref] = s
	}
	return s
}

func (t *Tree) noteRef(xref string) *Note {
	n, ok := t.notes[xref]
	if !ok {
		n = &Note{Xref: xref}
		t.notes[xref] = n
	}
	return n
}

func (t *Tree) decodeFamily(f *Family, rec *line) {
	for _, c := range rec.children {
		switch {
		case c.tag == "HUSB":
			f.Husband = t.member(c.value)
		case c.tag == "WIFE":
			f.Wife = t.member(c.value)
		case c.tag == "CHIL":
			f.Children = append(f.Children, t.member(c.value))
		case familyEventTags[c.tag]:
			f.Events = append(f.Events, t.decodeEvent(c, false))
		}
	}
}

// member resolves a HUSB, WIFE or CHIL value. A value that is not a pointer
// yields an unregistered Individual carrying the raw value as its Xref, so
// the reference is rejected when it is used rather than dropped here.
func (t *Tree) member(value string) *Individual {
	ref := strings.TrimSpace(value)
	if isPointer(ref) {
		return t.individualRef(ref)
	}
	return &Individual{Xref: ref}
}

func (t *Tree) decodeIndividual(ind *Individual, rec *line) {
	for _, c := range rec.children {
		switch {
		case c.tag == "NAME":
			ind.Names = append(ind.Names, t.decodeName(c))
		case c.tag == "SEX":
			ind.Sex = strings.TrimSpace(c.value)
		case c.tag == "NOTE":
			ind.Notes = append(ind.Notes, t.decodeNote(c))
		case c.tag == "SOUR":
			ind.Citations = append(ind.Citations, t.decodeCitation(c))
		case individualAttributeTags[c.tag]:
			ind.Attributes = append(ind.Attributes, t.decodeEvent(c, true))
		case individualEventTags[c.tag]:
			ind.Events = append(ind.Events, t.decodeEvent(c, false))
		}
	}
}

func (t *Tree) decodeName(l *line) *Name {
	n := &Name{Basic: l.value}
	for _, c := range l.children {
		if c.tag == "SOUR" {
			n.Citations = append(n.Citations, t.decodeCitation(c))
		}
	}
	return n
}

// decodeEvent reads an event or attribute structure. For events a bare "Y"
// only asserts that the event happened and is not a description.
func (t *Tree) decodeEvent(l *line, attribute bool) *Event {
	e := &Event{Tag: l.tag}
	desc := strings.Join(text(l), " ")
	if attribute || desc != "Y" {
		e.Description = desc
	}
	for _, c := range l.children {
		switch c.tag {
		case "DATE":
			e.Date = c.value
		case "PLAC":
			e.Place = c.value
		case "NOTE":
			e.Notes = append(e.Notes, t.decodeNote(c))
		case "SOUR":
			e.Citations = append(e.Citations, t.decodeCitation(c))
		}
	}
	return e
}

func (t *Tree) decodeNote(l *line) *Note {
	if isPointer(l.value) {
		return t.noteRef(l.value)
	}
	return &Note{Lines: text(l)}
}

func (t *Tree) decodeCitation(l *line) *Citation {
	c := &Citation{}
	if isPointer(l.value) {
		c.Source = t.sourceRef(l.value)
	}
	for _, sub := range l.children {
		switch sub.tag {
		case "PAGE":
			c.Locator = strings.Join(text(sub), " ")
		case "QUAY":
			c.Certainty = sub.value
		}
	}
	return c
}

func (t *Tree) decodeSource(s *Source, rec *line) {
	for _, c := range rec.children {
		switch c.tag {
		case "TITL":
			s.Title = text(c)
		case "PUBL":
			s.PublicationFacts = text(c)
		case "AUTH":
			s.Authors = text(c)
		case "NOTE":
			s.Notes = append(s.Notes, t.decodeNote(c))
		}
	}
}
