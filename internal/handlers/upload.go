package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"photoshelf/internal/ingest"
	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
)

// multipartMemory is the part of a multipart body kept in memory; larger
// files spill to temp files.
const multipartMemory = 8 << 20

// UploadResult is the outcome of one uploaded file.
type UploadResult struct {
	Filename string `json:"filename"`
	ID       string `json:"id,omitempty"`
	Dedup    bool   `json:"dedup,omitempty"`
	Error    string `json:"error,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Upload ingests the files of a multipart request. Every "file" part is
// run through the pipeline; the "albumID" field selects the target.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.rejectTransport(w, r, transportErrorOf(err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("Upload: could not remove multipart temp files: %v", err)
		}
	}()

	target, err := ingest.ParseTarget(r.FormValue("albumID"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeJSONError(w, "No file uploaded", http.StatusBadRequest)
		return
	}

	if h.gate != nil {
		if err := h.gate.WaitIfPaused(r.Context()); err != nil {
			logging.Warn("Upload: gave up waiting for memory: %v", err)
			writeJSONError(w, "Server busy, try again", http.StatusServiceUnavailable)
			return
		}
	}

	results := make([]UploadResult, 0, len(files))
	status := http.StatusOK
	for _, fh := range files {
		res := h.ingestPart(r, fh, target)
		if res.status != http.StatusOK && len(files) == 1 {
			status = res.status
		}
		results = append(results, res.UploadResult)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(results) == 1 {
		writeJSON(w, results[0])
		return
	}
	writeJSON(w, results)
}

type partResult struct {
	UploadResult
	status int
}

func (h *Handlers) ingestPart(r *http.Request, fh *multipart.FileHeader, target ingest.Target) partResult {
	up := ingest.Upload{
		Uploaded: true,
		MimeType: fh.Header.Get("Content-Type"),
		Filename: fh.Filename,
	}

	tmp, err := spool(fh)
	if err != nil {
		logging.Error("Upload: could not spool %q: %v", fh.Filename, err)
		up.TransportError = ingest.TransportWriteFailed
	} else {
		up.Path = tmp
		defer func() {
			if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
				logging.Warn("Upload: could not remove %s: %v", tmp, err)
			}
		}()
	}

	res, err := h.pipeline.Add(r.Context(), up, ingest.Options{Target: target})
	if err != nil {
		return failedPart(fh.Filename, err)
	}
	return partResult{
		UploadResult: UploadResult{Filename: fh.Filename, ID: res.ID, Dedup: res.DedupHit},
		status:       http.StatusOK,
	}
}

// spool copies the part into a temp file the pipeline can move into the
// library.
func spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "photoshelf-upload-*"+mediatypes.Extension(filepath.Base(fh.Filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func failedPart(filename string, err error) partResult {
	res := partResult{UploadResult: UploadResult{Filename: filename}, status: http.StatusInternalServerError}

	var ie *ingest.Error
	if !errors.As(err, &ie) {
		res.Error = "Upload failed"
		return res
	}

	res.Kind = string(ie.Kind)
	if ie.Warning() {
		res.Warning = ie.Message()
	} else {
		res.Error = ie.Message()
	}
	res.status = statusForKind(ie.Kind)
	return res
}

func statusForKind(kind ingest.Kind) int {
	switch kind {
	case ingest.KindTransport:
		return http.StatusBadRequest
	case ingest.KindValidation:
		return http.StatusUnsupportedMediaType
	case ingest.KindUnreadableImage:
		return http.StatusUnprocessableEntity
	case ingest.KindDuplicateSkipped:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectTransport reports a request whose body could not be read. It still
// goes through the pipeline so the failure is logged and counted like any
// other rejected upload.
func (h *Handlers) rejectTransport(w http.ResponseWriter, r *http.Request, te ingest.TransportError) {
	_, err := h.pipeline.Add(r.Context(), ingest.Upload{TransportError: te}, ingest.Options{})
	res := failedPart("", err)
	if te == ingest.TransportTooLarge {
		res.status = http.StatusRequestEntityTooLarge
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	writeJSON(w, res.UploadResult)
}

func transportErrorOf(err error) ingest.TransportError {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return ingest.TransportTooLarge
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ingest.TransportPartial
	default:
		return ingest.TransportOther
	}
}
