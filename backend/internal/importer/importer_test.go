package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/gedcom"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
)

const smithFamily = `0 HEAD
1 CHAR UTF-8
0 @I1@ INDI
1 NAME John /Smith/
1 SEX M
1 BIRT
2 DATE 1 JAN 1900
2 PLAC Oslo, Norway
2 SOUR @S1@
3 PAGE p. 12
3 QUAY 3
1 OCCU Farmer
1 NOTE Worked the land
2 CONT all his life
0 @I2@ INDI
1 NAME  Mary /Jones/
2 SOUR @S1@
1 SEX F
0 @I3@ INDI
1 NAME Peter /Smith/
1 SEX M
1 DEAT
2 PLAC Oslo
0 @F1@ FAM
1 HUSB @I1@
1 WIFE @I2@
1 CHIL @I3@
1 MARR
2 DATE 1925
2 PLAC Oslo, Norway
0 @S1@ SOUR
1 TITL Parish register
1 AUTH Church of Norway
0 TRLR
`

func decode(t *testing.T, src string) *gedcom.Tree {
	t.Helper()
	tree, err := gedcom.NewDecoder(strings.NewReader(src)).Decode()
	require.NoError(t, err)
	return tree
}

func newStore(t *testing.T) *graph.BadgerStore {
	t.Helper()
	store, err := graph.OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func newImporter(t *testing.T, store graph.Store, opts Options) *Importer {
	t.Helper()
	opts.Logger = zap.NewNop()
	im, err := New(store, opts)
	require.NoError(t, err)
	return im
}

// readTx opens a transaction for assertions and discards it afterwards
func readTx(t *testing.T, store graph.Store) graph.Tx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

func findOne(t *testing.T, tx graph.Tx, label, key, value string) *graph.Node {
	t.Helper()
	ctx := context.Background()
	ids, err := tx.FindNodes(ctx, label, key, value)
	require.NoError(t, err)
	require.Len(t, ids, 1, "%s %s=%s", label, key, value)
	n, err := tx.Node(ctx, ids[0])
	require.NoError(t, err)
	return n
}

func outgoing(t *testing.T, tx graph.Tx, from graph.NodeID, relType string) []graph.Relationship {
	t.Helper()
	rels, err := tx.OutgoingRelationships(context.Background(), from, relType)
	require.NoError(t, err)
	return rels
}

func TestImport_SingleFamily(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	result, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.DryRun)
	assert.Equal(t, 1, result.Families)
	assert.Equal(t, 3, result.PersonsCreated)
	assert.Equal(t, 0, result.PersonsReused)
	assert.Equal(t, 1, result.SourcesCreated)
	assert.Equal(t, 1, result.SourcesReused)
	assert.Equal(t, 3, result.PlacesCreated)
	assert.Equal(t, 1, result.PlacesReused)
	assert.Equal(t, 4, result.Events)
	assert.Equal(t, 15, result.Relationships)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPerson])
	assert.Equal(t, int64(1), stats.NodesByLabel[constants.LabelFamily])
	assert.Equal(t, int64(4), stats.NodesByLabel[constants.LabelEvent])
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPlace])
	assert.Equal(t, int64(1), stats.NodesByLabel[constants.LabelSource])
	assert.Equal(t, int64(15), stats.EdgeCount)
	assert.Equal(t, int64(1), stats.EdgesByType[constants.RelMother])
	assert.Equal(t, int64(1), stats.EdgesByType[constants.RelFather])
	assert.Equal(t, int64(1), stats.EdgesByType[constants.RelContains])
}

func TestImport_PersonProperties(t *testing.T) {
	store := newStore(t)
	im := newImporter(t, store, Options{})
	_, err := im.Import(context.Background(), decode(t, smithFamily))
	require.NoError(t, err)

	tx := readTx(t, store)

	john := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")
	assert.Equal(t, []string{"John /Smith/"}, graph.GetStringSlice(john, constants.PropName))
	assert.Equal(t, "M", graph.GetString(john, constants.PropSex))
	assert.Equal(t, []string{"Worked the land all his life"}, graph.GetStringSlice(john, constants.PropNotes))

	mary := findOne(t, tx, constants.LabelPerson, constants.PropID, "I2")
	assert.Equal(t, []string{"Mary /Jones/"}, graph.GetStringSlice(mary, constants.PropName))
	assert.NotContains(t, mary.Properties, constants.PropNotes)

	nameCitations := outgoing(t, tx, mary.ID, constants.RelNameCitation)
	require.Len(t, nameCitations, 1)
	source, err := tx.Node(context.Background(), nameCitations[0].To)
	require.NoError(t, err)
	assert.Equal(t, "S1", graph.GetString(source, constants.PropID))
	assert.Equal(t, []string{"Parish register"}, graph.GetStringSlice(source, constants.PropTitle))
	assert.Equal(t, []string{"Church of Norway"}, graph.GetStringSlice(source, constants.PropAuthor))
	assert.NotContains(t, source.Properties, constants.PropPublicationFacts)
	assert.NotContains(t, source.Properties, constants.PropNotes)
}

func TestImport_EventsAndCitations(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})
	_, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)

	tx := readTx(t, store)
	john := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")

	// attributes come before life events
	events := outgoing(t, tx, john.ID, constants.RelEvent)
	require.Len(t, events, 2)
	occupation, err := tx.Node(ctx, events[0].To)
	require.NoError(t, err)
	assert.Equal(t, "Occupation", graph.GetString(occupation, constants.PropType))
	assert.Equal(t, "Farmer", graph.GetString(occupation, constants.PropDescription))

	birth, err := tx.Node(ctx, events[1].To)
	require.NoError(t, err)
	assert.Equal(t, "Birth", graph.GetString(birth, constants.PropType))
	assert.Equal(t, "1 JAN 1900", graph.GetString(birth, constants.PropDate))
	assert.NotContains(t, birth.Properties, constants.PropDescription)

	citations := outgoing(t, tx, birth.ID, constants.RelCitation)
	require.Len(t, citations, 1)
	assert.Equal(t, "p. 12", citations[0].Properties[constants.PropLocator])
	assert.Equal(t, "3", citations[0].Properties[constants.PropCertainty])

	places := outgoing(t, tx, birth.ID, constants.RelPlace)
	require.Len(t, places, 1)
	chain, err := tx.TraverseOutgoing(ctx, places[0].To, constants.RelContains)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "Oslo", graph.GetString(&chain[0], constants.PropName))
	assert.Equal(t, "Norway", graph.GetString(&chain[1], constants.PropName))
}

func TestImport_PlaceChains(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})
	_, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)

	tx := readTx(t, store)

	// "Oslo, Norway" and a bare "Oslo" are different places
	oslos, err := tx.FindNodes(ctx, constants.LabelPlace, constants.PropName, "Oslo")
	require.NoError(t, err)
	assert.Len(t, oslos, 2)

	norways, err := tx.FindNodes(ctx, constants.LabelPlace, constants.PropName, "Norway")
	require.NoError(t, err)
	assert.Len(t, norways, 1)

	// birth and marriage share the "Oslo, Norway" chain
	family := findOne(t, tx, constants.LabelFamily, constants.PropID, "F1")
	familyEvents := outgoing(t, tx, family.ID, constants.RelEvent)
	require.Len(t, familyEvents, 1)
	marriage, err := tx.Node(ctx, familyEvents[0].To)
	require.NoError(t, err)
	assert.Equal(t, "Marriage", graph.GetString(marriage, constants.PropType))

	john := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")
	johnEvents := outgoing(t, tx, john.ID, constants.RelEvent)
	birthPlace := outgoing(t, tx, johnEvents[1].To, constants.RelPlace)
	marriagePlace := outgoing(t, tx, marriage.ID, constants.RelPlace)
	require.Len(t, birthPlace, 1)
	require.Len(t, marriagePlace, 1)
	assert.Equal(t, birthPlace[0].To, marriagePlace[0].To)
}

func TestImport_ChainTailReuse(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 BIRT
2 PLAC Oslo, Norway
1 DEAT
2 PLAC Bergen, Norway
0 @F1@ FAM
1 HUSB @I1@
`
	result, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)
	assert.Equal(t, 3, result.PlacesCreated)
	assert.Equal(t, 1, result.PlacesReused)

	tx := readTx(t, store)
	norway := findOne(t, tx, constants.LabelPlace, constants.PropName, "Norway")
	for _, city := range []string{"Oslo", "Bergen"} {
		n := findOne(t, tx, constants.LabelPlace, constants.PropName, city)
		contains := outgoing(t, tx, n.ID, constants.RelContains)
		require.Len(t, contains, 1)
		assert.Equal(t, norway.ID, contains[0].To)
	}
}

func TestImport_ShorterChainFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 BIRT
2 PLAC Oslo
1 DEAT
2 PLAC Oslo, Norway
0 @F1@ FAM
1 HUSB @I1@
`
	result, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)
	assert.Equal(t, 3, result.PlacesCreated)
	assert.Zero(t, result.PlacesReused)

	tx := readTx(t, store)
	oslos, err := tx.FindNodes(ctx, constants.LabelPlace, constants.PropName, "Oslo")
	require.NoError(t, err)
	require.Len(t, oslos, 2)

	person := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")
	events := outgoing(t, tx, person.ID, constants.RelEvent)
	require.Len(t, events, 2)
	birthPlace := outgoing(t, tx, events[0].To, constants.RelPlace)
	deathPlace := outgoing(t, tx, events[1].To, constants.RelPlace)
	require.Len(t, birthPlace, 1)
	require.Len(t, deathPlace, 1)
	assert.NotEqual(t, birthPlace[0].To, deathPlace[0].To)

	// the bare Oslo stays a chain of one
	assert.Empty(t, outgoing(t, tx, birthPlace[0].To, constants.RelContains))
	chain, err := tx.TraverseOutgoing(ctx, deathPlace[0].To, constants.RelContains)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "Norway", graph.GetString(&chain[1], constants.PropName))
}

func TestImport_FullChainReuse(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 BIRT
2 PLAC Springfield, Sangamon, Illinois
1 DEAT
2 PLAC Springfield, Sangamon, Illinois
0 @F1@ FAM
1 HUSB @I1@
`
	result, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)
	assert.Equal(t, 3, result.PlacesCreated)
	assert.Equal(t, 1, result.PlacesReused)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPlace])
	assert.Equal(t, int64(2), stats.EdgesByType[constants.RelContains])

	tx := readTx(t, store)
	person := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")
	events := outgoing(t, tx, person.ID, constants.RelEvent)
	require.Len(t, events, 2)
	birthPlace := outgoing(t, tx, events[0].To, constants.RelPlace)
	deathPlace := outgoing(t, tx, events[1].To, constants.RelPlace)
	assert.Equal(t, birthPlace[0].To, deathPlace[0].To)

	chain, err := tx.TraverseOutgoing(ctx, birthPlace[0].To, constants.RelContains)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	for i, name := range []string{"Springfield", "Sangamon", "Illinois"} {
		assert.Equal(t, name, graph.GetString(&chain[i], constants.PropName))
	}

	// a later import naming the same place adds no places and no edges
	second, err := im.Import(ctx, decode(t, `0 @I2@ INDI
1 BURI
2 PLAC Springfield, Sangamon, Illinois
0 @F2@ FAM
1 WIFE @I2@
`))
	require.NoError(t, err)
	assert.Zero(t, second.PlacesCreated)
	assert.Equal(t, 1, second.PlacesReused)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPlace])
	assert.Equal(t, int64(2), stats.EdgesByType[constants.RelContains])
}

func TestImport_Twice(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})
	tree := decode(t, smithFamily)

	_, err := im.Import(ctx, tree)
	require.NoError(t, err)
	second, err := im.Import(ctx, tree)
	require.NoError(t, err)

	assert.Equal(t, 0, second.PersonsCreated)
	assert.Equal(t, 3, second.PersonsReused)
	assert.Equal(t, 0, second.PlacesCreated)
	assert.Equal(t, 1, second.Events)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPerson])
	assert.Equal(t, int64(2), stats.NodesByLabel[constants.LabelFamily])
	assert.Equal(t, int64(5), stats.NodesByLabel[constants.LabelEvent])
	assert.Equal(t, int64(3), stats.NodesByLabel[constants.LabelPlace])
	assert.Equal(t, int64(1), stats.NodesByLabel[constants.LabelSource])
	assert.Equal(t, int64(2), stats.EdgesByType[constants.RelMother])
	assert.Equal(t, int64(2), stats.EdgesByType[constants.RelFather])

	tx := readTx(t, store)
	families, err := tx.FindNodes(ctx, constants.LabelFamily, constants.PropID, "F1")
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestImport_ExistingPersonNotUpdated(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	existing, err := tx.CreateNode(ctx, constants.LabelPerson)
	require.NoError(t, err)
	require.NoError(t, tx.SetNodeProperty(ctx, existing, constants.PropID, "I1"))
	require.NoError(t, tx.SetNodeProperty(ctx, existing, constants.PropName, []string{"Someone Else"}))
	require.NoError(t, tx.Commit(ctx))

	im := newImporter(t, store, Options{})
	result, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PersonsReused)
	assert.Equal(t, 2, result.PersonsCreated)

	read := readTx(t, store)
	john := findOne(t, read, constants.LabelPerson, constants.PropID, "I1")
	assert.Equal(t, existing, john.ID)
	assert.Equal(t, []string{"Someone Else"}, graph.GetStringSlice(john, constants.PropName))
	assert.Empty(t, outgoing(t, read, john.ID, constants.RelEvent))
}

func TestImport_ChildInTwoFamilies(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 NAME Child
0 @I2@ INDI
1 NAME Birth mother
0 @I3@ INDI
1 NAME Adoptive mother
0 @I4@ INDI
1 NAME Adoptive father
0 @F1@ FAM
1 WIFE @I2@
1 CHIL @I1@
0 @F2@ FAM
1 HUSB @I4@
1 WIFE @I3@
1 CHIL @I1@
`
	_, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)

	tx := readTx(t, store)
	child := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")

	mothers := outgoing(t, tx, child.ID, constants.RelMother)
	require.Len(t, mothers, 2)
	assert.Equal(t, "F1", mothers[0].Properties[constants.PropFamily])
	assert.Equal(t, "F2", mothers[1].Properties[constants.PropFamily])

	fathers := outgoing(t, tx, child.ID, constants.RelFather)
	require.Len(t, fathers, 1)
	assert.Equal(t, "F2", fathers[0].Properties[constants.PropFamily])
}

func TestImport_FamilyWithoutSpouses(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 NAME Orphan
0 @F1@ FAM
1 CHIL @I1@
`
	result, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Relationships)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EdgesByType[constants.RelChild])
	assert.Zero(t, stats.EdgesByType[constants.RelMother])
	assert.Zero(t, stats.EdgesByType[constants.RelFather])
}

func TestImport_UnmappedEventTypePassesThrough(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	src := `0 @I1@ INDI
1 EMIG
2 DATE 1880
0 @F1@ FAM
1 HUSB @I1@
`
	_, err := im.Import(ctx, decode(t, src))
	require.NoError(t, err)

	tx := readTx(t, store)
	person := findOne(t, tx, constants.LabelPerson, constants.PropID, "I1")
	events := outgoing(t, tx, person.ID, constants.RelEvent)
	require.Len(t, events, 1)
	event, err := tx.Node(ctx, events[0].To)
	require.NoError(t, err)
	assert.Equal(t, "EMIG", graph.GetString(event, constants.PropType))
}

func TestImport_NorwegianLabels(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{Locale: constants.LocaleNorwegian})

	_, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)

	tx := readTx(t, store)
	family := findOne(t, tx, constants.LabelFamily, constants.PropID, "F1")
	events := outgoing(t, tx, family.ID, constants.RelEvent)
	require.Len(t, events, 1)
	marriage, err := tx.Node(ctx, events[0].To)
	require.NoError(t, err)
	assert.Equal(t, "Ekteskap", graph.GetString(marriage, constants.PropType))
}

func TestImport_RollbackOnMalformedFamily(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{})

	// the second family holds a person with an inline citation, which has
	// no source to point at
	src := smithFamily + `0 @I9@ INDI
1 NAME Broken
1 SOUR Some book without a record
0 @F2@ FAM
1 HUSB @I9@
`
	result, err := im.Import(ctx, decode(t, src))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRecord))

	var malformed *apperrors.ErrMalformedRecord
	assert.True(t, errors.As(err, &malformed))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
	assert.Zero(t, stats.EdgeCount)
}

func TestImport_RollbackOnBrokenMemberReference(t *testing.T) {
	tests := []struct {
		name   string
		member string
	}{
		{"empty pointer", "1 WIFE @@"},
		{"missing value", "1 HUSB"},
		{"not a pointer", "1 CHIL I7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			im := newImporter(t, store, Options{})

			src := smithFamily + "0 @F2@ FAM\n1 HUSB @I1@\n" + tt.member + "\n"
			result, err := im.Import(ctx, decode(t, src))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRecord))

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.NodeCount)
			assert.Zero(t, stats.EdgeCount)
		})
	}
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im := newImporter(t, store, Options{DryRun: true})

	result, err := im.Import(ctx, decode(t, smithFamily))
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 3, result.PersonsCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
}

func TestImport_CancelledContext(t *testing.T) {
	store := newStore(t)
	im := newImporter(t, store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Import(ctx, decode(t, smithFamily))
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
}

func TestImport_EmptyTree(t *testing.T) {
	store := newStore(t)
	im := newImporter(t, store, Options{})

	result, err := im.Import(context.Background(), decode(t, "0 HEAD\n0 TRLR\n"))
	require.NoError(t, err)
	assert.Zero(t, result.Families)
}

func TestNew_UnknownLocale(t *testing.T) {
	_, err := New(newStore(t), Options{Locale: "de"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestMakeID(t *testing.T) {
	tests := []struct {
		xref    string
		want    string
		wantErr bool
	}{
		{xref: "@I42@", want: "I42"},
		{xref: " @I42@ ", want: "I42"},
		{xref: "@@", wantErr: true},
		{xref: "", wantErr: true},
		{xref: "I7", wantErr: true},
		{xref: "@I7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.xref, func(t *testing.T) {
			id, err := makeID("individual", tt.xref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRecord))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
