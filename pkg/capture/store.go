package capture

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// DirStore writes each snapshot as a frame file in a directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store writing into dir. The directory is created on
// the first Put if it does not exist.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the frame directory.
func (s *DirStore) Dir() string { return s.dir }

// Put implements [Store].
func (s *DirStore) Put(ctx context.Context, index int, label string, snap *snapshot.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "frame directory %s", s.dir)
	}
	return snapshot.WriteFrame(s.dir, index, label, snap)
}

// MemoryStore keeps snapshots in memory.
type MemoryStore struct {
	mu     sync.Mutex
	frames map[int]*snapshot.Frame
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{frames: make(map[int]*snapshot.Frame)}
}

// Put implements [Store].
func (s *MemoryStore) Put(_ context.Context, index int, label string, snap *snapshot.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := snapshot.FrameName(index, label)
	if _, ok := s.frames[index]; ok {
		return "", fmt.Errorf("frame %d already stored", index)
	}
	s.frames[index] = &snapshot.Frame{Index: index, Label: label, Path: name, Snapshot: snap}
	return name, nil
}

// Frames returns the stored frames in index order.
func (s *MemoryStore) Frames() []*snapshot.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*snapshot.Frame, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
