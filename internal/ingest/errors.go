package ingest

import (
	"errors"
	"fmt"

	"photoshelf/internal/logging"
)

// Kind classifies why an ingestion did not complete.
type Kind string

const (
	// KindTransport means the upload itself failed before it reached us.
	KindTransport Kind = "transport"
	// KindValidation means the file name or content is not an accepted type.
	KindValidation Kind = "validation"
	// KindChecksum means the content digest could not be computed.
	KindChecksum Kind = "checksum"
	// KindStorage means the original could not be placed in the library.
	KindStorage Kind = "storage"
	// KindUnreadableImage means the mandatory geometry probe failed.
	KindUnreadableImage Kind = "unreadable_image"
	// KindDerivation means the thumbnail could not be produced.
	KindDerivation Kind = "derivation"
	// KindDuplicateSkipped means identical content exists and duplicates
	// are configured to be skipped. It is a warning, not a failure.
	KindDuplicateSkipped Kind = "duplicate_skipped"
	// KindPersist means the record could not be written.
	KindPersist Kind = "persist"
)

// Error is returned for every ingestion that stops before a record is
// written. Op and Site locate the stage that gave up.
type Error struct {
	Kind Kind
	Op   string
	Site string
	msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to the uploader.
func (e *Error) Message() string { return e.msg }

// Warning reports whether the outcome should be presented as a warning.
func (e *Error) Warning() bool { return e.Kind == KindDuplicateSkipped }

// fail builds an Error for the calling stage and logs it once.
func fail(op string, kind Kind, msg string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Site: logging.CallSite(2), msg: msg, Err: err}
	log := logging.Op(op).At(e.Site)
	if e.Warning() {
		log.Warn("%s", msg)
	} else if err != nil {
		log.Error("%s: %v", msg, err)
	} else {
		log.Error("%s", msg)
	}
	return e
}

// KindOf returns the Kind of an ingestion error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// TransportError is the status the upload transport reported for a file.
type TransportError int

const (
	TransportOK TransportError = iota
	// TransportTooLarge: the request exceeded the upload size limit.
	TransportTooLarge
	// TransportPartial: the file arrived incomplete.
	TransportPartial
	// TransportWriteFailed: the temporary file could not be written.
	TransportWriteFailed
	// TransportStopped: the upload was stopped by a request filter.
	TransportStopped
	// TransportOther covers any other transport failure.
	TransportOther
)

var transportMessages = map[TransportError]string{
	TransportTooLarge:    "The uploaded file exceeds the maximum upload size",
	TransportPartial:     "The uploaded file was only partially uploaded",
	TransportWriteFailed: "Failed to write photo to disk",
	TransportStopped:     "The upload was stopped before it completed",
	TransportOther:       "Upload failed",
}

func (t TransportError) message() string {
	if m, ok := transportMessages[t]; ok {
		return m
	}
	return fmt.Sprintf("Upload failed (code %d)", int(t))
}
