package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/corsac-s/immich-tools/internal/shared"
)

// SourceNameDelimiter separates the Nextcloud file id prefix from the original filename.
const SourceNameDelimiter = "-"

// SourceAlbum is an album directory on the WebDAV share.
type SourceAlbum struct {
	Name  string       // Directory name without trailing slash
	Path  string       // Listing path relative to the share root
	Files []SourceFile // Populated by the source lister
}

// SourceFile is one file of a [SourceAlbum].
type SourceFile struct {
	Path     string    // Full listing path
	Name     string    // Basename as stored on the share, "<id>-<original name>"
	Modified time.Time // Last-modified time reported by the share
}

// OriginalName strips the numeric prefix and delimiter from the stored basename.
func (f SourceFile) OriginalName() (string, error) {
	base := f.Name
	if base == "" {
		base = path.Base(f.Path)
	}

	_, name, ok := strings.Cut(base, SourceNameDelimiter)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %q has no %q delimiter", shared.ErrMalformedFilename, base, SourceNameDelimiter)
	}
	return name, nil
}

// DestinationAlbum is an Immich album.
type DestinationAlbum struct {
	ID         string
	Name       string
	AssetCount int
	AssetIDs   []string // Only filled by album detail lookups
}

// DestinationAsset is an Immich asset as returned by a metadata search.
type DestinationAsset struct {
	ID               string
	OriginalFileName string
	TakenAt          time.Time
	DuplicateID      string // Parsed for reporting, never used to pick a candidate
}

// MatchResult holds the candidates returned by one metadata search, in server order.
type MatchResult struct {
	Count  int
	Assets []DestinationAsset
}

// First returns the first candidate in server order.
func (m *MatchResult) First() (DestinationAsset, bool) {
	if m == nil || len(m.Assets) == 0 {
		return DestinationAsset{}, false
	}
	return m.Assets[0], true
}

// AddResult is the outcome of adding one asset to an album.
type AddResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Failed reports a real failure. Assets that were already members are not failures.
func (r AddResult) Failed() bool {
	return !r.Success && r.Error != shared.DuplicateError
}
