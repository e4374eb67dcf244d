package importer

import (
	"fmt"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
)

// EventTypes maps GEDCOM event and attribute tags to descriptive labels.
// The tables are fixed and built once; codes outside a table pass through
// unchanged.
type EventTypes struct {
	locale string
	labels map[string]string
}

var englishEventTypes = EventTypes{
	locale: constants.LocaleEnglish,
	labels: map[string]string{
		"EVEN": "Event",
		"BIRT": "Birth",
		"DEAT": "Death",
		"OCCU": "Occupation",
		"RESI": "Residence",
		"BAPM": "Baptism",
		"ADOP": "Adoption",
		"CENS": "Census",
		"MARR": "Marriage",
		"BURI": "Burial",
		"PROB": "Probate",
		"CONF": "Confirmation",
		"ENGA": "Engagement",
		"NATI": "Nationality",
		"IMMI": "Immigration",
		"NATU": "Naturalization",
		"DIV":  "Divorce",
		"DIVF": "Divorce filed",
		"RELI": "Religion",
		"RETI": "Retirement",
	},
}

var norwegianEventTypes = EventTypes{
	locale: constants.LocaleNorwegian,
	labels: map[string]string{
		"EVEN": "Hendelse",
		"BIRT": "Fødsel",
		"DEAT": "Død",
		"OCCU": "Yrke",
		"RESI": "Bosted",
		"BAPM": "Dåp",
		"ADOP": "Adopsjon",
		"CENS": "Folketelling",
		"MARR": "Ekteskap",
		"BURI": "Begravelse",
		"PROB": "Skifte",
		"CONF": "Konfirmasjon",
		"ENGA": "Forlovelse",
		"NATI": "Nasjonalitet",
		"IMMI": "Immigrasjon",
		"NATU": "Statsborgerskap",
		"DIV":  "Skilsmisse",
		"DIVF": "Separasjon",
		"RELI": "Religion",
		"RETI": "Pensjon",
	},
}

// EventTypesFor returns the table for locale
func EventTypesFor(locale string) (EventTypes, error) {
	switch locale {
	case "", constants.LocaleEnglish:
		return englishEventTypes, nil
	case constants.LocaleNorwegian:
		return norwegianEventTypes, nil
	default:
		return EventTypes{}, fmt.Errorf("unsupported locale %q", locale)
	}
}

// Label returns the label for code, or code itself when it is not mapped
func (t EventTypes) Label(code string) string {
	if label, ok := t.labels[code]; ok {
		return label
	}
	return code
}

// Locale returns the locale the table belongs to
func (t EventTypes) Locale() string {
	return t.locale
}
