// Package artifacts persists screenshots and recordings under a shared directory
package artifacts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind is a category of artifact, stored in its own subdirectory
type Kind string

const (
	// Screenshot is a PNG captured from a browser session
	Screenshot Kind = "screenshots"
	// Recording is a screen recording produced by an external recorder
	Recording Kind = "recordings"
)

// Ext returns the file extension for artifacts of this kind
func (k Kind) Ext() string {
	switch k {
	case Screenshot:
		return ".png"
	case Recording:
		// the recorder decides the actual container, the extension is only a hint
		return ".AVI"
	default:
		return ""
	}
}

// ParseKind returns the Kind matching 's'
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Screenshot, Recording:
		return Kind(s), nil
	default:
		return "", errors.Errorf("Unknown artifact kind: %q", s)
	}
}

// Store writes write-once artifact files named <testName>_<epochMillis>.<ext>
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a Store rooted at 'root'. Directories are created on demand.
func NewStore(root string) *Store {
	return &Store{
		root: filepath.Clean(root),
		now:  time.Now,
	}
}

// Root returns the store's base directory
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding artifacts of 'kind'
func (s *Store) Dir(kind Kind) string {
	return filepath.Join(s.root, string(kind))
}

// Path returns a new file path for an artifact captured now. The kind's directory is created if absent.
func (s *Store) Path(kind Kind, testName string) (string, error) {
	dir := s.Dir(kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "Failed to create artifact directory %q", dir)
	}
	name := fmt.Sprintf("%s_%d%s", sanitize(testName), s.now().UnixNano()/int64(time.Millisecond), kind.Ext())
	return filepath.Join(dir, name), nil
}

// Save writes 'data' to a new artifact file and returns its path.
// Two saves for the same test within one millisecond share a name, the later one wins.
func (s *Store) Save(kind Kind, testName string, data []byte) (path string, returnErr error) {
	path, err := s.Path(kind, testName)
	if err != nil {
		return "", err
	}
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "Failed to create artifact")
	}
	defer func() {
		closeErr := file.Close()
		rmErr := os.Remove(file.Name()) // clean up tmp file, if it wasn't renamed
		if returnErr == nil {
			if rmErr != nil && !os.IsNotExist(rmErr) {
				returnErr = rmErr
			}
			if closeErr != nil {
				returnErr = closeErr
			}
		}
		if returnErr != nil {
			path = ""
		}
	}()
	if _, err := file.Write(data); err != nil {
		return "", errors.Wrap(err, "Failed to write artifact")
	}
	if err := file.Sync(); err != nil {
		return "", errors.Wrap(err, "Failed to write artifact")
	}
	return path, errors.Wrap(os.Rename(file.Name(), path), "Failed to save artifact")
}

// Read returns the contents at 'path'. A missing or unreadable file reads as empty.
func (s *Store) Read(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return []byte{}
	}
	return data
}

// Remove deletes the file at 'path'. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the artifact file names of 'kind', newest first
func (s *Store) List(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(kind))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(a, b int) bool {
		return infos[a].ModTime().After(infos[b].ModTime())
	})
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Open resolves 'name' inside the kind's directory. Names must not contain path separators.
func (s *Store) Open(kind Kind, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errors.Errorf("Invalid artifact name: %q", name)
	}
	return filepath.Join(s.Dir(kind), name), nil
}

// sanitize keeps test names from escaping the artifact directory
func sanitize(testName string) string {
	testName = strings.TrimSpace(testName)
	if testName == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, testName)
}
