// Nextcloud [Source] implementation
//
// Albums are the collections directly under the configured WebDAV root and their members are the non-collection
// entries one level below. Listings use PROPFIND with depth 1 through gowebdav.
package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/studio-b12/gowebdav"
)

const defaultWebDAVTimeout = 30 * time.Second

// WebDAVOptions configures a [WebDAVService].
type WebDAVOptions struct {
	URL      string // Albums root, e.g. https://cloud.example.com/remote.php/dav/photos/alice/albums
	Login    string
	Password string
	Timeout  time.Duration
}

// WebDAVService implements [Source] for a Nextcloud photos share.
type WebDAVService struct {
	client *gowebdav.Client
}

// NewWebDAVService creates a WebDAV client with basic auth credentials.
func NewWebDAVService(opts WebDAVOptions) *WebDAVService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebDAVTimeout
	}

	client := gowebdav.NewClient(opts.URL, opts.Login, opts.Password)
	client.SetTimeout(opts.Timeout)
	return &WebDAVService{client: client}
}

// Name returns the service name.
func (s *WebDAVService) Name() string {
	return "Nextcloud"
}

// ListAlbums lists the root collection. The root entry itself and plain files are skipped.
func (s *WebDAVService) ListAlbums(ctx context.Context) ([]models.SourceAlbum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.client.ReadDir("/")
	if err != nil {
		return nil, fmt.Errorf("%w: PROPFIND /: %v", shared.ErrAPIRequest, err)
	}

	albums := make([]models.SourceAlbum, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), "/")
		albums = append(albums, models.SourceAlbum{
			Name: name,
			Path: "/" + name + "/",
		})
	}
	return albums, nil
}

// ListFiles lists the members of album in listing order. Nested collections are skipped.
func (s *WebDAVService) ListFiles(ctx context.Context, album models.SourceAlbum) ([]models.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := album.Path
	if dir == "" {
		if album.Name == "" {
			return nil, fmt.Errorf("%w: album has neither name nor path", shared.ErrInvalidArgument)
		}
		dir = "/" + album.Name + "/"
	}

	entries, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: PROPFIND %s: %v", shared.ErrAPIRequest, dir, err)
	}

	files := make([]models.SourceFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, models.SourceFile{
			Path:     path.Join(dir, entry.Name()),
			Name:     entry.Name(),
			Modified: entry.ModTime().UTC(),
		})
	}
	return files, nil
}
