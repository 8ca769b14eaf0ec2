package certificate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DownloadPath is the URL path the output directory is served under.
const DownloadPath = "/output"

// Store writes rendered certificates to a local directory and builds the
// public URLs they are downloaded from.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates dir if needed. publicURL is the externally reachable
// base URL of the service, for example http://localhost:5002.
func NewStore(dir, publicURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create certificate output dir: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// NewName returns a fresh file name for a certificate.
func (s *Store) NewName() string {
	return uuid.NewString() + ".pdf"
}

// URL returns the download URL of the named certificate.
func (s *Store) URL(name string) string {
	return s.baseURL + DownloadPath + "/" + name
}

// Save writes data under name in the output directory.
func (s *Store) Save(name string, data []byte) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid certificate name %q", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}
