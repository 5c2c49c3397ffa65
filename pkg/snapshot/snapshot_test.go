package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dkerrors "github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/resource"
)

func testDeck(t *testing.T) *resource.Node {
	t.Helper()
	ctx := context.Background()
	deck := resource.NewDeck("deck", 1360, 653.5, 900)
	carrier := resource.NewCarrier("plate_carrier", 135, 497, 130, 5, 96.5)
	require.NoError(t, deck.Assign(ctx, carrier, resource.Coordinate{X: 257.5, Y: 63, Z: 100}))
	plate := resource.NewPlate("plate1", 2, 3, 9, 360)
	require.NoError(t, carrier.Child(1).Assign(ctx, plate, resource.Coordinate{X: 4, Y: 8.5, Z: 1}))
	require.NoError(t, plate.Child(0).AddLiquid(ctx, "Compound A", 30))
	require.NoError(t, plate.Child(0).AddLiquid(ctx, "Compound B", 70))
	return deck
}

func TestSerializeAbsoluteLocation(t *testing.T) {
	deck := testDeck(t)

	s, err := Serialize(deck)
	require.NoError(t, err)

	carrier := s.Find("plate_carrier")
	require.NotNil(t, carrier)
	assert.Equal(t, resource.Coordinate{X: 257.5, Y: 63, Z: 100}, carrier.Location)

	holder := s.Find("plate_carrier-1")
	require.NotNil(t, holder)
	assert.Equal(t, resource.Coordinate{X: 257.5, Y: 63 + 96.5, Z: 100}, holder.Location)

	plate := s.Find("plate1")
	require.NotNil(t, plate)
	assert.Equal(t, resource.Coordinate{X: 261.5, Y: 63 + 96.5 + 8.5, Z: 101}, plate.Location)

	well := s.Find("plate1_well_A1")
	require.NotNil(t, well)
	assert.Equal(t, resource.Coordinate{X: 261.5 + 9, Y: 63 + 96.5 + 8.5 + 9, Z: 101}, well.Location)
	assert.Equal(t, resource.TypeWell, well.Type)
	assert.Equal(t, []any{[]any{"Compound A", 30.0}, []any{"Compound B", 70.0}}, well.State["liquids"])
}

func TestSerializeChildOrderAndNullState(t *testing.T) {
	s, err := Serialize(testDeck(t))
	require.NoError(t, err)

	assert.Nil(t, s.State)
	require.Len(t, s.Children, 1)
	carrier := s.Children[0]
	require.Len(t, carrier.Children, 5)
	for i, h := range carrier.Children {
		assert.Equal(t, resource.TypeResourceHolder, h.Type)
		assert.Equal(t, "plate_carrier-"+string(rune('0'+i)), h.Name)
	}
	assert.NotNil(t, carrier.Children[0].Children, "leaf children must be an empty list, not null")
	assert.Equal(t, 1+1+5+1+6, s.Count())
}

func TestSerializeIsDeterministic(t *testing.T) {
	deck := testDeck(t)

	a, err := Serialize(deck)
	require.NoError(t, err)
	b, err := Serialize(deck)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)
}

type brokenWell struct{ resource.Resource }

func (brokenWell) SerializeState() (map[string]any, error) {
	return nil, errors.New("tracker locked")
}

type wrappingRoot struct {
	*resource.Node
	child resource.Resource
}

func (w wrappingRoot) Children() []resource.Resource { return []resource.Resource{w.child} }

func TestSerializeFailure(t *testing.T) {
	well := resource.NewPlate("p", 1, 1, 9, 100).Child(0)
	root := wrappingRoot{Node: resource.NewDeck("deck", 10, 10, 10), child: brokenWell{well}}

	_, err := Serialize(root)
	require.Error(t, err)
	assert.True(t, dkerrors.Is(err, dkerrors.ErrCodeSerialization))
	assert.Contains(t, err.Error(), "deck/p_well_A1")
	assert.Contains(t, err.Error(), "tracker locked")

	_, err = Serialize(nil)
	assert.True(t, dkerrors.Is(err, dkerrors.ErrCodeSerialization))
}

func TestFrameRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Serialize(testDeck(t))
	require.NoError(t, err)

	path, err := WriteFrame(dir, 3, "operation_aspirate", s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_0003_operation_aspirate.json"), path)

	f, err := ReadFrame(path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Index)
	assert.Equal(t, "operation_aspirate", f.Label)
	assert.Equal(t, s, f.Snapshot)
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_0000_initial_state.json", FrameName(0, "initial_state"))
	assert.Equal(t, "frame_0012_assign_tip_rack1.json", FrameName(12, "assign_tip_rack1"))
	assert.Equal(t, "frame_0001_state_update_Compound_A.json", FrameName(1, "state_update_Compound A"))
	assert.Equal(t, "frame_10000_x.json", FrameName(10000, "x"))

	idx, label, err := ParseFrameName("/tmp/frames/frame_0042_operation_dispense96.json")
	require.NoError(t, err)
	assert.Equal(t, 42, idx)
	assert.Equal(t, "operation_dispense96", label)

	_, _, err = ParseFrameName("notes.json")
	assert.True(t, dkerrors.Is(err, dkerrors.ErrCodeInvalidFrame))
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "assign_plate_1", SanitizeLabel("assign_plate 1"))
	assert.Equal(t, "a_b", SanitizeLabel("a/:b"))
	assert.Equal(t, "state_update_well.A1", SanitizeLabel("state_update_well.A1"))
	assert.Equal(t, "_", SanitizeLabel(""))
}

func TestListFramesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"frame_0002_operation_dispense.json",
		"frame_0000_initial_state.json",
		"frame_0001_operation_aspirate.json",
		"protocol.gif",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	paths, err := ListFrames(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, "frame_0000_initial_state.json", filepath.Base(paths[0]))
	assert.Equal(t, "frame_0002_operation_dispense.json", filepath.Base(paths[2]))

	_, err = ListFrames(filepath.Join(dir, "missing"))
	assert.True(t, dkerrors.Is(err, dkerrors.ErrCodeFileNotFound))
}

func TestValidateRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing children", `{"name":"d","type":"deck","location":{"x":0,"y":0,"z":0},"size_x":1,"size_y":1,"size_z":1,"state":null}`},
		{"string size", `{"name":"d","type":"deck","location":{"x":0,"y":0,"z":0},"size_x":"1","size_y":1,"size_z":1,"state":null,"children":[]}`},
		{"bad liquid pair", `{"name":"w","type":"well","location":{"x":0,"y":0,"z":0},"size_x":1,"size_y":1,"size_z":1,"state":{"liquids":[["A"]]},"children":[]}`},
		{"bad child", `{"name":"d","type":"deck","location":{"x":0,"y":0,"z":0},"size_x":1,"size_y":1,"size_z":1,"state":null,"children":[{"name":"c"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate([]byte(tt.doc)))
		})
	}

	ok := `{"name":"w","type":"well","location":{"x":0,"y":0,"z":0},"size_x":1,"size_y":1,"size_z":1,"state":{"liquids":[["A",1.5]],"max_volume":10},"children":[]}`
	assert.NoError(t, Validate([]byte(ok)))
}

func TestReadFrameInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0007_operation_drop_tips.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0644))

	_, err := ReadFrame(path)
	require.Error(t, err)
	assert.True(t, dkerrors.Is(err, dkerrors.ErrCodeInvalidFrame))
	assert.Equal(t, 7, dkerrors.FrameOf(err))
	assert.Contains(t, err.Error(), "event=operation_drop_tips")
}

func TestCheckSequence(t *testing.T) {
	frames := []*Frame{{Index: 0}, {Index: 1}, {Index: 2}}
	assert.NoError(t, CheckSequence(frames))

	gap := []*Frame{{Index: 0}, {Index: 2, Path: "frame_0002_x.json", Label: "x"}}
	err := CheckSequence(gap)
	require.Error(t, err)
	assert.Equal(t, 2, dkerrors.FrameOf(err))
}
