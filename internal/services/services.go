package services

import (
	"context"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
)

// Source enumerates albums and their files on the system albums are copied from.
type Source interface {
	// ListAlbums returns the album directories under the share root, excluding the root entry itself.
	ListAlbums(ctx context.Context) ([]models.SourceAlbum, error)

	// ListFiles returns the files of one album in listing order, excluding the album entry itself.
	ListFiles(ctx context.Context, album models.SourceAlbum) ([]models.SourceFile, error)

	// Name returns the name of the service (e.g., "Nextcloud")
	Name() string
}

// Destination is the photo library albums are reproduced in.
type Destination interface {
	// ListAlbums returns every album visible to the API key.
	ListAlbums(ctx context.Context) ([]models.DestinationAlbum, error)

	// GetAlbum returns one album with its member asset ids.
	GetAlbum(ctx context.Context, albumID string) (*models.DestinationAlbum, error)

	// CreateAlbum creates an empty album with the given name.
	CreateAlbum(ctx context.Context, name string) (*models.DestinationAlbum, error)

	// SearchAssets runs a metadata search by original filename and capture time window.
	SearchAssets(ctx context.Context, query AssetQuery) (*models.MatchResult, error)

	// AddAssetsToAlbum adds ids to an album in one call. Results are aligned with ids.
	AddAssetsToAlbum(ctx context.Context, albumID string, ids []string) ([]models.AddResult, error)

	// Name returns the name of the service (e.g., "Immich")
	Name() string
}

// AssetQuery selects assets by exact original filename captured within [TakenAfter, TakenBefore].
type AssetQuery struct {
	OriginalFileName string
	TakenAfter       time.Time
	TakenBefore      time.Time
}

// TimestampLayout is the UTC, microsecond precision format Immich expects for search bounds.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in [TimestampLayout] after converting it to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
