package handlers

import (
	"net/http"

	"photoshelf/internal/startup"
)

// Features reports the optional capabilities this instance started with.
type Features struct {
	ImageBackend    string `json:"imageBackend"`
	Exiftool        bool   `json:"exiftool"`
	VideoThumbnails bool   `json:"videoThumbnails"`
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	startup.BuildInfo
	Features Features `json:"features"`
}

// GetVersion returns the build information and enabled features.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{BuildInfo: startup.GetBuildInfo(), Features: h.features})
}
