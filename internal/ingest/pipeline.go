package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"photoshelf/internal/content"
	"photoshelf/internal/database"
	"photoshelf/internal/logging"
	"photoshelf/internal/media"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/metadata"
	"photoshelf/internal/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// titleLength caps the title derived from the file name.
const titleLength = 30

// Upload is one file handed to the pipeline.
type Upload struct {
	// Path is the uploaded temp file or the file to import.
	Path string
	// Uploaded is true for transport temp files (moved into the library)
	// and false for imports from the filesystem (copied).
	Uploaded bool
	// MimeType is the type declared by the client.
	MimeType string
	// Filename is the name declared by the client.
	Filename       string
	TransportError TransportError
}

// Repository stores photo records.
type Repository interface {
	Insert(ctx context.Context, p *database.Photo) error
	FindByChecksum(ctx context.Context, checksum, excludeID string) (*database.Photo, error)
	UpdateAlbumTakestampBounds(ctx context.Context, albumID, ts int64) error
	Delete(ctx context.Context, id string) error
}

// Config is the ingestion policy.
type Config struct {
	SkipDuplicates bool
	Medium         media.Variant
	Small          media.Variant
}

// Options apply to a single Add.
type Options struct {
	Target Target
	// Soft reports failures in the Result instead of returning them, so a
	// batch can carry on.
	Soft bool
}

// Target is where a new record lands.
type Target struct {
	AlbumID int64
	Public  bool
	Star    bool
}

// ParseTarget reads an upload target: an album id, or one of the shortcuts
// "s" (public), "f" (starred) and "r" (recent), which all mean album 0.
func ParseTarget(s string) (Target, error) {
	switch s = strings.TrimSpace(s); s {
	case "", "0", "r":
		return Target{}, nil
	case "s":
		return Target{Public: true}, nil
	case "f":
		return Target{Star: true}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return Target{}, &Error{Kind: KindValidation, Op: "ingest.ParseTarget", msg: "Unknown album " + strconv.Quote(s), Err: err}
	}
	return Target{AlbumID: id}, nil
}

// Result describes a finished ingestion. In soft mode a failed ingestion
// has OK false and Err set.
type Result struct {
	ID       string
	Photo    *database.Photo
	DedupHit bool
	OK       bool
	Err      *Error
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Store        *content.Store
	Repo         Repository
	Extractor    *metadata.Extractor
	Normalizer   *media.Normalizer
	Thumbnailers media.Thumbnailers
	Scaler       *media.Scaler
}

// Pipeline turns uploads into stored records. It is safe for concurrent
// use; identical content is serialized by the store's digest claims.
type Pipeline struct {
	cfg  Config
	deps Deps

	now   func() time.Time
	newID func() (string, error)
}

// New returns a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		newID: newID,
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ingestion carries one upload through the stages.
type ingestion struct {
	up       Upload
	opts     Options
	kind     mediatypes.Kind
	mimeType string
	ext      string

	checksum string
	id       string
	name     string
	path     string
	existing *content.Existing

	info   *metadata.Info
	thumb  string
	medium bool
	small  bool
}

// Add runs the pipeline for one upload.
func (p *Pipeline) Add(ctx context.Context, up Upload, opts Options) (*Result, error) {
	metrics.IngestInProgress.Inc()
	defer metrics.IngestInProgress.Dec()

	in := &ingestion{up: up, opts: opts, kind: mediatypes.KindOf(up.MimeType)}

	res, err := p.add(ctx, in)
	if err != nil {
		var ie *Error
		if !errors.As(err, &ie) {
			ie = fail("ingest.Add", KindStorage, "Ingestion failed", err)
		}
		metrics.IngestTotal.WithLabelValues(string(in.kind), string(ie.Kind)).Inc()
		if opts.Soft {
			return &Result{ID: in.id, Err: ie}, nil
		}
		return nil, ie
	}

	outcome := "success"
	if res.DedupHit {
		outcome = "dedup_hit"
	}
	metrics.IngestTotal.WithLabelValues(string(in.kind), outcome).Inc()
	return res, nil
}

func (p *Pipeline) add(ctx context.Context, in *ingestion) (*Result, error) {
	if err := p.stage("validating", func() error { return p.validate(in) }); err != nil {
		return nil, err
	}

	var err error
	err = p.stage("deduping", func() error {
		in.checksum, err = content.DigestFile(in.up.Path)
		if err != nil {
			return fail("ingest.Dedup", KindChecksum, "Could not calculate checksum for photo", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Held until the record is stored so identical uploads serialize.
	release := p.deps.Store.Claim(in.checksum)
	defer release()

	if err := p.stage("deduping", func() error { return p.dedup(ctx, in) }); err != nil {
		return nil, err
	}

	if in.existing == nil {
		if err := p.stage("importing", func() error { return p.materialize(in) }); err != nil {
			return nil, err
		}
	}

	if err := p.stage("metadata", func() error { return p.readMetadata(ctx, in) }); err != nil {
		return nil, err
	}

	if in.existing == nil {
		_ = p.stage("orientation", func() error { p.fixOrientation(in); return nil })

		if err := p.stage("derive", func() error { return p.derive(ctx, in) }); err != nil {
			return nil, err
		}
	}

	var photo *database.Photo
	if err := p.stage("persist", func() error {
		photo, err = p.persist(ctx, in)
		return err
	}); err != nil {
		return nil, err
	}

	return &Result{ID: photo.ID, Photo: photo, DedupHit: in.existing != nil, OK: true}, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.IngestStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (p *Pipeline) validate(in *ingestion) error {
	const op = "ingest.Validate"

	if in.up.TransportError != TransportOK {
		return fail(op, KindTransport, in.up.TransportError.message(), nil)
	}

	in.ext = mediatypes.Extension(in.up.Filename)
	if !mediatypes.ValidExtensions[in.ext] {
		return fail(op, KindValidation, "Photo format not supported", nil)
	}

	if in.kind == mediatypes.KindVideo {
		in.mimeType = strings.ToLower(strings.TrimSpace(in.up.MimeType))
		return nil
	}

	detected, err := mimetype.DetectFile(in.up.Path)
	if err != nil {
		return fail(op, KindValidation, "Photo type not supported", err)
	}
	for _, accepted := range []string{mediatypes.MimeJPEG, mediatypes.MimePNG, mediatypes.MimeGIF} {
		if detected.Is(accepted) {
			in.mimeType = accepted
			return nil
		}
	}
	return fail(op, KindValidation, "Photo type not supported! "+in.up.MimeType, nil)
}

func (p *Pipeline) dedup(ctx context.Context, in *ingestion) error {
	const op = "ingest.Dedup"

	existing, err := p.deps.Store.FindExisting(ctx, in.checksum, "")
	if err != nil {
		return fail(op, KindStorage, "Could not look up existing photos", err)
	}

	id, err := p.newID()
	if err != nil {
		return fail(op, KindStorage, "Could not generate photo id", err)
	}
	in.id = id

	if existing != nil {
		if p.cfg.SkipDuplicates {
			return fail(op, KindDuplicateSkipped, "This photo has been skipped because it's already in your library.", nil)
		}
		logging.Op(op).Debug("content %s already stored as %s", in.checksum, existing.Name)
		in.existing = existing
		in.name = existing.Name
		in.path = existing.Path
		in.thumb = existing.Thumb
		in.medium = existing.Medium
		in.small = existing.Small
		return nil
	}

	in.name = content.CanonicalName(in.id, in.ext)
	in.path = p.deps.Store.Path(in.name)
	return nil
}

func (p *Pipeline) materialize(in *ingestion) error {
	origin := content.Imported
	if in.up.Uploaded {
		origin = content.Uploaded
	}
	if err := p.deps.Store.Materialize(in.up.Path, origin, in.path); err != nil {
		msg := "Could not copy photo to uploads"
		if origin == content.Uploaded {
			msg = "Could not move photo to uploads"
		}
		return fail("ingest.Import", KindStorage, msg, err)
	}
	return nil
}

func (p *Pipeline) readMetadata(ctx context.Context, in *ingestion) error {
	info, err := p.deps.Extractor.Extract(ctx, in.path, in.mimeType)
	if err != nil {
		return fail("ingest.Metadata", KindUnreadableImage, "Could not read photo", err)
	}
	if info.Title == "" {
		info.Title = titleFromFilename(in.up.Filename, in.ext)
	}
	in.info = info
	return nil
}

// titleFromFilename is the base name without extension, cut to
// titleLength bytes on a rune boundary.
func titleFromFilename(filename, ext string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ext) {
		base = base[:len(base)-len(ext)]
	}
	if len(base) <= titleLength {
		return base
	}
	base = base[:titleLength]
	for !utf8.ValidString(base) {
		base = base[:len(base)-1]
	}
	return base
}

// fixOrientation normalizes new JPEGs. Failures keep the original bytes
// and dimensions.
func (p *Pipeline) fixOrientation(in *ingestion) {
	log := logging.Op("ingest.Orientation")

	if in.mimeType == mediatypes.MimeJPEG && in.info.Orientation != 0 {
		dims, err := p.deps.Normalizer.Normalize(in.path, in.info)
		switch {
		case err != nil:
			log.Warn("Skipped adjustment of photo (%s): %v", in.info.Title, err)
		case dims != nil:
			in.info.Width = dims.Width
			in.info.Height = dims.Height
			in.info.Orientation = 1
		}
	}

	if in.info.Takestamp != 0 {
		t := time.Unix(in.info.Takestamp, 0)
		if err := os.Chtimes(in.path, t, t); err != nil {
			log.Debug("could not set mtime of %s: %v", in.path, err)
		}
	}
}

// derive writes the thumbnail pair and, for images, the medium and small
// variants concurrently. Only a thumbnail failure aborts.
func (p *Pipeline) derive(ctx context.Context, in *ingestion) error {
	log := logging.Op("ingest.Derive")

	src := media.Source{
		Path:   in.path,
		Name:   in.name,
		Type:   in.info.Type,
		Width:  in.info.Width,
		Height: in.info.Height,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		thumb, err := p.deps.Thumbnailers.For(in.kind).Thumbnail(gctx, src)
		if errors.Is(err, media.ErrVideoThumbUnavailable) {
			log.Info("Could not create thumbnail for video because ffmpeg is not available")
			in.thumb = ""
			return nil
		}
		if err != nil {
			msg := "Could not create thumbnail for photo"
			if in.kind == mediatypes.KindVideo {
				msg = "Could not create thumbnail for video"
			}
			return fail("ingest.Derive", KindDerivation, msg, err)
		}
		in.thumb = thumb
		return nil
	})

	if in.kind == mediatypes.KindImage {
		g.Go(func() error {
			ok, err := p.deps.Scaler.ScaledVariant(gctx, src, p.cfg.Medium)
			if err != nil {
				log.Warn("medium variant of %s failed: %v", in.name, err)
			}
			in.medium = ok
			return nil
		})
		g.Go(func() error {
			ok, err := p.deps.Scaler.ScaledVariant(gctx, src, p.cfg.Small)
			if err != nil {
				log.Warn("small variant of %s failed: %v", in.name, err)
			}
			in.small = ok
			return nil
		})
	}

	return g.Wait()
}

func (p *Pipeline) persist(ctx context.Context, in *ingestion) (*database.Photo, error) {
	info := in.info
	photo := &database.Photo{
		ID:          in.id,
		Title:       info.Title,
		Description: info.Description,
		Tags:        info.Tags,
		Public:      in.opts.Target.Public,
		Star:        in.opts.Target.Star,
		Type:        in.mimeType,
		Width:       info.Width,
		Height:      info.Height,
		Size:        info.Size,
		ISO:         info.ISO,
		Aperture:    info.Aperture,
		Make:        info.Make,
		Model:       info.Model,
		Lens:        info.Lens,
		Shutter:     info.Shutter,
		Focal:       info.Focal,
		Takestamp:   info.Takestamp,
		Position:    info.Position,
		Latitude:    info.Latitude,
		Longitude:   info.Longitude,
		Altitude:    info.Altitude,
		Checksum:    in.checksum,
		URL:         in.name,
		ThumbURL:    in.thumb,
		Medium:      in.medium,
		Small:       in.small,
		AlbumID:     in.opts.Target.AlbumID,
	}
	if in.kind == mediatypes.KindVideo {
		// Videos carry no capture metadata; the upload time stands in.
		photo.Width, photo.Height = 0, 0
		photo.Takestamp = p.now().Unix()
	}

	if err := p.deps.Repo.Insert(ctx, photo); err != nil {
		return nil, fail("ingest.Persist", KindPersist, "Could not save photo in database", err)
	}

	if err := p.deps.Repo.UpdateAlbumTakestampBounds(ctx, photo.AlbumID, photo.Takestamp); err != nil {
		logging.Op("ingest.Persist").Warn("could not update takestamps of album %d: %v", photo.AlbumID, err)
	}

	logging.Op("ingest.Persist").Debug("stored %s as %s (dedup=%v)", in.up.Filename, photo.ID, in.existing != nil)
	return photo, nil
}
