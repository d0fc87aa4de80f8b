package database

import "time"

// Photo is one stored photo or video record. Several records may share a
// checksum and with it the canonical file and its derived variants.
type Photo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Public      bool   `json:"public"`
	Star        bool   `json:"star"`
	Type        string `json:"type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        string `json:"size"`
	ISO         string `json:"iso"`
	Aperture    string `json:"aperture"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Lens        string `json:"lens"`
	Shutter     string `json:"shutter"`
	Focal       string `json:"focal"`
	Takestamp   int64  `json:"takestamp"`
	Position    string `json:"position"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Altitude    string `json:"altitude"`
	Checksum    string `json:"checksum"`
	// URL is the canonical file name under the big directory.
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
	Medium   bool   `json:"medium"`
	Small    bool   `json:"small"`
	AlbumID  int64  `json:"album"`
	// License is empty when the library default applies.
	License   string    `json:"license"`
	CreatedAt time.Time `json:"createdAt"`
}

// Album groups photos and tracks the range of their capture times.
// A zero takestamp bound means unset.
type Album struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Public       bool      `json:"public"`
	License      string    `json:"license"`
	MinTakestamp int64     `json:"minTakestamp"`
	MaxTakestamp int64     `json:"maxTakestamp"`
	CreatedAt    time.Time `json:"createdAt"`
}
