// Package snapshot serializes a resource tree into immutable point-in-time
// records and reads and writes them as frame files.
//
// # Serialization
//
// [Serialize] walks a [resource.Resource] tree and produces a [Snapshot] tree
// with absolute locations: each node's location is the sum of the
// parent-relative offsets on the path from the root. The function is pure;
// serializing an unchanged tree twice yields equal snapshots.
//
// # Frame files
//
// One snapshot is persisted per frame, as pretty-printed JSON:
//
//	{
//	  "name": "deck",
//	  "type": "deck",
//	  "location": {"x": 0, "y": 0, "z": 0},
//	  "size_x": 1360, "size_y": 653.5, "size_z": 900,
//	  "state": null,
//	  "children": [...]
//	}
//
// Files are named frame_<4-digit index>_<event label>.json, so a
// lexicographic directory listing is also index order. See [FrameName],
// [WriteFrame], [ReadFrame] and [ListFrames].
package snapshot

import (
	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/resource"
)

// Snapshot is the serialized record of one resource subtree at one instant.
// Snapshots are never mutated after creation.
type Snapshot struct {
	Name     string              `json:"name"`
	Type     resource.Type       `json:"type"`
	Location resource.Coordinate `json:"location"`
	SizeX    float64             `json:"size_x"`
	SizeY    float64             `json:"size_y"`
	SizeZ    float64             `json:"size_z"`
	State    map[string]any      `json:"state"`
	Children []*Snapshot         `json:"children"`
}

// Serialize captures root and its descendants. A resource whose state cannot
// be serialized fails the whole capture with a SERIALIZATION_FAILURE naming
// the resource path.
func Serialize(root resource.Resource) (*Snapshot, error) {
	if root == nil {
		return nil, errors.New(errors.ErrCodeSerialization, "nil root resource")
	}
	return serialize(root, resource.Coordinate{}, "")
}

func serialize(r resource.Resource, origin resource.Coordinate, parentPath string) (*Snapshot, error) {
	path := r.Name()
	if parentPath != "" {
		path = parentPath + "/" + path
	}

	state, err := r.SerializeState()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerialization, err, "state of %s", path)
	}

	abs := origin.Add(r.Location())
	x, y, z := r.Size()
	s := &Snapshot{
		Name:     r.Name(),
		Type:     r.Type(),
		Location: abs,
		SizeX:    x,
		SizeY:    y,
		SizeZ:    z,
		State:    state,
	}

	children := r.Children()
	s.Children = make([]*Snapshot, 0, len(children))
	for _, c := range children {
		cs, err := serialize(c, abs, path)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, cs)
	}
	return s, nil
}

// Walk calls fn for s and every descendant, parents before children, in
// child order. It stops early when fn returns false.
func (s *Snapshot) Walk(fn func(*Snapshot) bool) bool {
	if !fn(s) {
		return false
	}
	for _, c := range s.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in s.
func (s *Snapshot) Count() int {
	n := 0
	s.Walk(func(*Snapshot) bool { n++; return true })
	return n
}

// Find returns the first node named name, or nil.
func (s *Snapshot) Find(name string) *Snapshot {
	var found *Snapshot
	s.Walk(func(n *Snapshot) bool {
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}
