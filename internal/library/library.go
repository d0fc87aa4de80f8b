package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"photoshelf/internal/content"
	"photoshelf/internal/database"
	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/media"

	"github.com/google/uuid"
)

var (
	// ErrInvalidLicense is returned for license identifiers outside Licenses.
	ErrInvalidLicense = errors.New("invalid license")
	// ErrInvalidKind is returned for unknown archive kinds.
	ErrInvalidKind = errors.New("invalid archive kind")
	// ErrFileMissing is returned when a record points at a file that is gone.
	ErrFileMissing = errors.New("file is missing")
)

// Licenses are the accepted license identifiers. "none" defers to the
// album and then the library default.
var Licenses = []string{
	"none", "reserved", "CC0",
	"CC-BY", "CC-BY-ND", "CC-BY-SA",
	"CC-BY-NC", "CC-BY-NC-ND", "CC-BY-NC-SA",
}

const (
	maxTitleLength       = 100
	maxDescriptionLength = 1000
	maxTagsLength        = 1000
)

// Repository is the record store the library operates on.
type Repository interface {
	Get(ctx context.Context, id string) (*database.Photo, error)
	GetAlbum(ctx context.Context, id int64) (*database.Album, error)
	FindByChecksum(ctx context.Context, checksum, excludeID string) (*database.Photo, error)
	SetTitle(ctx context.Context, id, title string) error
	SetDescription(ctx context.Context, id, description string) error
	SetTags(ctx context.Context, id, tags string) error
	SetLicense(ctx context.Context, id, license string) error
	SetAlbum(ctx context.Context, id string, albumID int64) error
	ToggleStar(ctx context.Context, id string) (bool, error)
	TogglePublic(ctx context.Context, id string) (bool, error)
	Duplicate(ctx context.Context, id, newID string, albumID int64) (*database.Photo, error)
	Delete(ctx context.Context, id string) error
	RecomputeAlbumTakestamps(ctx context.Context, albumID int64) error
}

// Dirs are the upload directories files are served from.
type Dirs struct {
	Big    string
	Medium string
	Small  string
	Thumb  string
}

// Library implements the operations on stored photos.
type Library struct {
	repo           Repository
	store          *content.Store
	dirs           Dirs
	defaultLicense string
}

// New returns a Library. store provides the digest claims shared with the
// ingestion pipeline.
func New(repo Repository, store *content.Store, dirs Dirs, defaultLicense string) *Library {
	if defaultLicense == "" {
		defaultLicense = "none"
	}
	return &Library{repo: repo, store: store, dirs: dirs, defaultLicense: defaultLicense}
}

// View is a photo as presented to clients: file references resolved to
// URLs and the effective license filled in.
type View struct {
	*database.Photo
	License     string `json:"license"`
	FullURL     string `json:"fullUrl"`
	MediumURL   string `json:"mediumUrl"`
	SmallURL    string `json:"smallUrl"`
	ThumbURL    string `json:"thumbUrl"`
	Thumb2xURL  string `json:"thumb2xUrl"`
	AlbumPublic bool   `json:"albumPublic"`
}

// Get returns the view of photo id.
func (l *Library) Get(ctx context.Context, id string) (*View, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &View{
		Photo:   p,
		License: l.defaultLicense,
		FullURL: path.Join("/uploads/big", p.URL),
	}
	if p.Medium {
		v.MediumURL = path.Join("/uploads/medium", p.URL)
	}
	if p.Small {
		v.SmallURL = path.Join("/uploads/small", p.URL)
	}
	if p.ThumbURL != "" {
		v.ThumbURL = path.Join("/uploads/thumb", p.ThumbURL)
		v.Thumb2xURL = path.Join("/uploads/thumb", media.Thumb2xName(p.ThumbURL))
	}

	var album *database.Album
	if p.AlbumID != 0 {
		album, err = l.repo.GetAlbum(ctx, p.AlbumID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		if album != nil {
			v.AlbumPublic = album.Public
		}
	}

	switch {
	case licenseSet(p.License):
		v.License = p.License
	case album != nil && licenseSet(album.License):
		v.License = album.License
	}
	return v, nil
}

func licenseSet(license string) bool {
	return license != "" && license != "none"
}

// SetTitle replaces the title, trimmed and capped.
func (l *Library) SetTitle(ctx context.Context, id, title string) error {
	return l.repo.SetTitle(ctx, id, truncate(strings.TrimSpace(title), maxTitleLength))
}

// SetDescription replaces the description, trimmed and capped.
func (l *Library) SetDescription(ctx context.Context, id, description string) error {
	return l.repo.SetDescription(ctx, id, truncate(strings.TrimSpace(description), maxDescriptionLength))
}

// SetTags replaces the tag list after NormalizeTags.
func (l *Library) SetTags(ctx context.Context, id, tags string) error {
	return l.repo.SetTags(ctx, id, NormalizeTags(tags))
}

// NormalizeTags removes the blanks around commas, empty tags and leading
// or trailing commas: " a , b,,c, " becomes "a,b,c".
func NormalizeTags(tags string) string {
	parts := strings.Split(tags, ",")
	out := parts[:0]
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return truncate(strings.Join(out, ","), maxTagsLength)
}

// SetLicense replaces the license after checking it against Licenses.
func (l *Library) SetLicense(ctx context.Context, id, license string) error {
	if !ValidLicense(license) {
		logging.Op("library.SetLicense").Warn("Could not find specified license %q", license)
		return fmt.Errorf("%w: %q", ErrInvalidLicense, license)
	}
	return l.repo.SetLicense(ctx, id, license)
}

// ValidLicense reports whether license is one of Licenses.
func ValidLicense(license string) bool {
	for _, known := range Licenses {
		if known == license {
			return true
		}
	}
	return false
}

// ToggleStar flips the star flag and returns the new value.
func (l *Library) ToggleStar(ctx context.Context, id string) (bool, error) {
	return l.repo.ToggleStar(ctx, id)
}

// TogglePublic flips the public flag and returns the new value.
func (l *Library) TogglePublic(ctx context.Context, id string) (bool, error) {
	return l.repo.TogglePublic(ctx, id)
}

// SetAlbum moves the photo and recomputes the capture time range of the
// album it left and the one it joined.
func (l *Library) SetAlbum(ctx context.Context, id string, albumID int64) error {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if albumID != 0 {
		if _, err := l.repo.GetAlbum(ctx, albumID); err != nil {
			return err
		}
	}
	if err := l.repo.SetAlbum(ctx, id, albumID); err != nil {
		return err
	}
	return l.recompute(ctx, p.AlbumID, albumID)
}

func (l *Library) recompute(ctx context.Context, albumIDs ...int64) error {
	var errs []error
	seen := make(map[int64]bool, len(albumIDs))
	for _, albumID := range albumIDs {
		if albumID == 0 || seen[albumID] {
			continue
		}
		seen[albumID] = true
		if err := l.repo.RecomputeAlbumTakestamps(ctx, albumID); err != nil {
			errs = append(errs, fmt.Errorf("album %d: %w", albumID, err))
		}
	}
	return errors.Join(errs...)
}

// Duplicate copies the record under a new id in the same album. The copy
// shares the stored files.
func (l *Library) Duplicate(ctx context.Context, id string) (*database.Photo, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	newID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	return l.repo.Duplicate(ctx, id, newID.String(), p.AlbumID)
}

// Delete removes the record. Its files are removed only when no other
// record shares the checksum. The album's capture time range is recomputed.
func (l *Library) Delete(ctx context.Context, id string) error {
	log := logging.Op("library.Delete")

	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	release := l.store.Claim(p.Checksum)
	defer release()

	other, err := l.repo.FindByChecksum(ctx, p.Checksum, p.ID)
	if err != nil {
		return err
	}

	if err := l.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := l.recompute(ctx, p.AlbumID); err != nil {
		log.Warn("could not recompute takestamps: %v", err)
	}

	if other != nil {
		log.Debug("keeping files of %s, still used by %s", p.ID, other.ID)
		return nil
	}
	if fileErrs := l.removeFiles(p); len(fileErrs) > 0 {
		return fmt.Errorf("delete files of %s: %w", id, errors.Join(fileErrs...))
	}
	return nil
}

func (l *Library) removeFiles(p *database.Photo) []error {
	paths := []string{
		filepath.Join(l.dirs.Big, p.URL),
		filepath.Join(l.dirs.Medium, p.URL),
		filepath.Join(l.dirs.Small, p.URL),
	}
	if p.ThumbURL != "" {
		paths = append(paths,
			filepath.Join(l.dirs.Thumb, p.ThumbURL),
			filepath.Join(l.dirs.Thumb, media.Thumb2xName(p.ThumbURL)))
	}

	var errs []error
	for _, path := range paths {
		if _, err := filesystem.RemoveIfExists(path); err != nil {
			logging.Op("library.Delete").Error("Could not delete %s: %v", path, err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Archive kinds.
const (
	KindFull   = "FULL"
	KindMedium = "MEDIUM"
	KindSmall  = "SMALL"
)

// Download is an opened file ready to be sent as an attachment.
type Download struct {
	File     *os.File
	Filename string
	Size     int64
}

// Archive opens the FULL, MEDIUM or SMALL file of photo id. The caller
// closes Download.File.
func (l *Library) Archive(ctx context.Context, id, kind string) (*Download, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var dir string
	switch kind {
	case KindFull:
		dir = l.dirs.Big
	case KindMedium:
		dir = l.dirs.Medium
	case KindSmall:
		dir = l.dirs.Small
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	ext := filepath.Ext(p.URL)
	if ext == "" {
		return nil, fmt.Errorf("photo %s has no file extension", id)
	}

	full := filepath.Join(dir, p.URL)
	f, err := filesystem.OpenWithRetry(full, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			logging.Op("library.Archive").Error("File is missing: %s", full)
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, full)
		}
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Download{
		File:     f,
		Filename: ArchiveFilename(p.Title, kind, ext),
		Size:     st.Size(),
	}, nil
}

// ArchiveFilename builds "{title}_{KIND}{ext}" with control characters
// and characters reserved in file names removed.
func ArchiveFilename(title, kind, ext string) string {
	if title == "" {
		title = "Untitled"
	}
	title = strings.Map(func(r rune) rune {
		if r < 32 || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, title)
	return title + "_" + kind + ext
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
