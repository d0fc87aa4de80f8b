package content

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"photoshelf/internal/database"
	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
)

var (
	// ErrChecksum wraps failures to read the bytes being digested.
	ErrChecksum = errors.New("checksum failed")
	// ErrStorage wraps failures to place an original in the store.
	ErrStorage = errors.New("storage failed")
)

// Lookup finds records by content checksum.
type Lookup interface {
	FindByChecksum(ctx context.Context, checksum, excludeID string) (*database.Photo, error)
}

// Existing describes the stored file of a digest that is already known.
type Existing struct {
	// Name is the canonical file name in the big directory.
	Name   string
	Path   string
	Thumb  string
	Medium bool
	Small  bool
	// Width and Height are the stored, normalized dimensions.
	Width  int
	Height int
}

// Origin says how an incoming file reached the server.
type Origin int

const (
	// Uploaded files live in a temporary upload location and are moved.
	Uploaded Origin = iota
	// Imported files belong to someone else's directory and are copied.
	Imported
)

// Store places originals under BigDir.
type Store struct {
	BigDir string
	// DeleteImported removes an imported source after it was copied.
	DeleteImported bool

	lookup Lookup

	mu     sync.Mutex
	claims map[string]*claim
}

type claim struct {
	mu   sync.Mutex
	refs int
}

// NewStore returns a Store writing into bigDir.
func NewStore(bigDir string, lookup Lookup, deleteImported bool) *Store {
	return &Store{
		BigDir:         bigDir,
		DeleteImported: deleteImported,
		lookup:         lookup,
		claims:         make(map[string]*claim),
	}
}

// Digest returns the hex SHA-1 of everything r yields.
func Digest(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestFile is Digest over the file at path.
func DigestFile(path string) (string, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()
	return Digest(f)
}

// CanonicalName derives the stored file name of a record: the MD5 of its id
// followed by the lower-cased original extension.
func CanonicalName(id, ext string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:]) + strings.ToLower(ext)
}

// Path returns the canonical path of a stored file name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.BigDir, name)
}

// FindExisting reports the stored file for digest, ignoring the record
// excludeID. It returns nil when the digest is new.
func (s *Store) FindExisting(ctx context.Context, digest, excludeID string) (*Existing, error) {
	p, err := s.lookup.FindByChecksum(ctx, digest, excludeID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return &Existing{
		Name:   p.URL,
		Path:   s.Path(p.URL),
		Thumb:  p.ThumbURL,
		Medium: p.Medium,
		Small:  p.Small,
		Width:  p.Width,
		Height: p.Height,
	}, nil
}

// Materialize places src at canonicalPath. Uploaded files are moved;
// imported files are copied and, with DeleteImported, removed afterwards.
func (s *Store) Materialize(src string, origin Origin, canonicalPath string) error {
	var err error
	switch origin {
	case Uploaded:
		err = filesystem.MoveFile(src, canonicalPath)
	case Imported:
		err = filesystem.CopyFile(src, canonicalPath)
	default:
		err = fmt.Errorf("unknown origin %d", origin)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if origin == Imported && s.DeleteImported {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			logging.Warn("imported %s but could not delete the source: %v", src, err)
		}
	}
	return nil
}

// Claim enters the critical section for digest and returns the function
// that leaves it. Callers hold the claim from the duplicate lookup until
// the record is stored.
func (s *Store) Claim(digest string) (release func()) {
	s.mu.Lock()
	c, ok := s.claims[digest]
	if !ok {
		c = &claim{}
		s.claims[digest] = c
	}
	c.refs++
	s.mu.Unlock()

	c.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Unlock()

			s.mu.Lock()
			c.refs--
			if c.refs == 0 {
				delete(s.claims, digest)
			}
			s.mu.Unlock()
		})
	}
}
