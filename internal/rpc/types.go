package rpc

import (
	"go.klb.dev/snaphub/internal/hub"
	"go.klb.dev/snaphub/internal/store"
)

// Image is the wire form of a store record. Path is a file-system path;
// AssetURL is the same path in the UI's asset:// scheme.
type Image struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	AssetURL  string  `json:"asset_url"`
	CreatedAt int64   `json:"created_at"`
	OCRResult *string `json:"ocr_result,omitempty"`
}

func imageOf(rec store.Record) Image {
	return Image{
		ID:        rec.ID,
		Path:      rec.Path,
		AssetURL:  AssetURL(rec.Path),
		CreatedAt: rec.CreatedAt,
		OCRResult: rec.OCRResult,
	}
}

// Event announces a newly stored image on the Watch stream.
type Event struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	AssetURL  string `json:"asset_url"`
	CreatedAt int64  `json:"created_at"`
}

func eventOf(ev hub.Event) *Event {
	return &Event{ID: ev.ID, Path: ev.Path, AssetURL: AssetURL(ev.Path), CreatedAt: ev.CreatedAt}
}

type Empty struct{}

type ListResponse struct {
	Images []Image `json:"images"`
}

type DeleteRequest struct {
	ID string `json:"id"`
}

type SaveRequest struct {
	Data []byte `json:"data"`
}

type SaveResponse struct {
	Image     Image `json:"image"`
	Duplicate bool  `json:"duplicate"`
}

type CleanupRequest struct {
	Hours int64 `json:"hours"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}

// FileRequest names a file by path or asset:// URL.
type FileRequest struct {
	Path string `json:"path"`
}

type ReadFileResponse struct {
	Data []byte `json:"data"`
}

type SetOCRRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ImageResponse struct {
	Image Image `json:"image"`
}

type StatusResponse struct {
	Version     string `json:"version"`
	StorageDir  string `json:"storage_dir"`
	Images      int    `json:"images"`
	Backend     string `json:"backend"`
	Polling     bool   `json:"polling"`
	LastHash    string `json:"last_hash,omitempty"`
	LastSeenMS  int64  `json:"last_detection_ms,omitempty"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
}
