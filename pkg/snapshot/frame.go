package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/deckreel/pkg/errors"
)

// FrameExt is the extension of frame files.
const FrameExt = ".json"

// Frame is one persisted snapshot together with its sequence position.
type Frame struct {
	Index    int
	Label    string
	Path     string
	Snapshot *Snapshot
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeLabel makes an event label safe to embed in a filename. Runs of
// characters outside [A-Za-z0-9._-] collapse to one underscore.
func SanitizeLabel(label string) string {
	s := unsafeLabel.ReplaceAllString(label, "_")
	if s == "" {
		return "_"
	}
	return s
}

// FrameName returns the filename of frame index with the given event label.
func FrameName(index int, label string) string {
	return fmt.Sprintf("frame_%04d_%s%s", index, SanitizeLabel(label), FrameExt)
}

var frameNameRe = regexp.MustCompile(`^frame_(\d{4,})_(.+)\.json$`)

// ParseFrameName recovers the index and label from a frame filename.
func ParseFrameName(name string) (index int, label string, err error) {
	m := frameNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, "", errors.New(errors.ErrCodeInvalidFrame, "not a frame filename: %s", name)
	}
	index, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", errors.Wrap(errors.ErrCodeInvalidFrame, err, "frame index in %s", name)
	}
	return index, m[2], nil
}

// Encode writes s to w as indented JSON.
func Encode(s *Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Decode reads one snapshot from r.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &s, nil
}

// WriteFrame persists s as frame index in dir and returns the file path.
// The file is written to a temporary name and renamed into place, so a
// reader never observes a partial frame.
func WriteFrame(dir string, index int, label string, s *Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := Encode(s, &buf); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FrameName(index, label))
	tmp, err := os.CreateTemp(dir, ".frame-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// ReadFrame reads and schema-validates the frame file at path.
func ReadFrame(path string) (*Frame, error) {
	index, label, err := ParseFrameName(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "frame %s", path).WithFrame(index).WithEvent(label)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := Validate(data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFrame, err, "frame %s", filepath.Base(path)).WithFrame(index).WithEvent(label)
	}

	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFrame, err, "frame %s", filepath.Base(path)).WithFrame(index).WithEvent(label)
	}
	return &Frame{Index: index, Label: label, Path: path, Snapshot: s}, nil
}

// ListFrames returns the paths of all *.json files in dir, sorted
// lexicographically. Because indices are zero-padded this is index order.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "frame directory %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FrameExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadSequence lists and reads every frame in dir, in filename order.
func LoadSequence(dir string) ([]*Frame, error) {
	paths, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	frames := make([]*Frame, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFrame(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// CheckSequence verifies that frames carry exactly the indices 0..N-1 in
// order.
func CheckSequence(frames []*Frame) error {
	for i, f := range frames {
		if f.Index != i {
			return errors.New(errors.ErrCodeInvalidFrame, "expected frame %d, found %s", i, filepath.Base(f.Path)).
				WithFrame(f.Index).WithEvent(f.Label)
		}
	}
	return nil
}
