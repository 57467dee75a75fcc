package inspector

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// sourceIndex maps engine script ids to the path reported in scriptParsed.
// Entries are never removed for the life of the device.
type sourceIndex struct {
	fs      afero.Fs
	root    string
	scripts map[string]string
}

func newSourceIndex(fs afero.Fs, root string) *sourceIndex {
	return &sourceIndex{fs: fs, root: root, scripts: make(map[string]string)}
}

func (s *sourceIndex) record(scriptID, sourcePath string) {
	s.scripts[scriptID] = sourcePath
}

func (s *sourceIndex) lookup(scriptID string) (string, bool) {
	p, ok := s.scripts[scriptID]
	return p, ok
}

// resolvePath joins relative paths onto the project root; absolute paths are
// used as-is.
func (s *sourceIndex) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.root, p)
}

// source returns the file contents for scriptID, or a readable placeholder
// when the id is unknown or the file cannot be read.
func (s *sourceIndex) source(scriptID string) string {
	p, ok := s.lookup(scriptID)
	if !ok {
		return fmt.Sprintf("Source for script with id '%s' was not found.", scriptID)
	}
	data, err := afero.ReadFile(s.fs, s.resolvePath(p))
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func (s *sourceIndex) len() int {
	return len(s.scripts)
}
