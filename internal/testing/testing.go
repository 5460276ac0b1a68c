// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/services"
	"github.com/corsac-s/immich-tools/internal/shared"
)

// MockSource is a test double for [services.Source] serving fixed albums and files.
type MockSource struct {
	Albums   []models.SourceAlbum
	Files    map[string][]models.SourceFile // Keyed by album name
	AlbumErr error
	FilesErr map[string]error

	mu     sync.Mutex
	Listed []string // Album names whose files were listed, in call order
}

func (m *MockSource) ListAlbums(ctx context.Context) ([]models.SourceAlbum, error) {
	if m.AlbumErr != nil {
		return nil, m.AlbumErr
	}
	return append([]models.SourceAlbum(nil), m.Albums...), nil
}

func (m *MockSource) ListFiles(ctx context.Context, album models.SourceAlbum) ([]models.SourceFile, error) {
	m.mu.Lock()
	m.Listed = append(m.Listed, album.Name)
	m.mu.Unlock()

	if err := m.FilesErr[album.Name]; err != nil {
		return nil, err
	}
	return append([]models.SourceFile(nil), m.Files[album.Name]...), nil
}

func (m *MockSource) Name() string { return "mock source" }

// AddCall records one AddAssetsToAlbum request
type AddCall struct {
	AlbumID string
	IDs     []string
}

// MockDestination is an in-memory [services.Destination].
//
// SearchAssets matches Assets by exact filename with TakenAt inside the inclusive window, like the metadata search.
// AddAssetsToAlbum answers with AddResults when set, otherwise every id succeeds.
type MockDestination struct {
	Albums     []models.DestinationAlbum
	Assets     []models.DestinationAsset
	AddResults map[string]models.AddResult // Keyed by asset id

	ListErr   error
	CreateErr error
	SearchErr error
	AddErr    error

	mu       sync.Mutex
	Created  []string
	Searches []services.AssetQuery
	Adds     []AddCall
}

func (m *MockDestination) ListAlbums(ctx context.Context) ([]models.DestinationAlbum, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DestinationAlbum(nil), m.Albums...), nil
}

func (m *MockDestination) GetAlbum(ctx context.Context, albumID string) (*models.DestinationAlbum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, album := range m.Albums {
		if album.ID == albumID {
			return &album, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrAlbumNotFound, albumID)
}

func (m *MockDestination) CreateAlbum(ctx context.Context, name string) (*models.DestinationAlbum, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Created = append(m.Created, name)
	album := models.DestinationAlbum{ID: fmt.Sprintf("created-%d", len(m.Created)), Name: name}
	m.Albums = append(m.Albums, album)
	return &album, nil
}

func (m *MockDestination) SearchAssets(ctx context.Context, query services.AssetQuery) (*models.MatchResult, error) {
	m.mu.Lock()
	m.Searches = append(m.Searches, query)
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	result := &models.MatchResult{}
	for _, asset := range m.Assets {
		if asset.OriginalFileName != query.OriginalFileName {
			continue
		}
		if asset.TakenAt.Before(query.TakenAfter) || asset.TakenAt.After(query.TakenBefore) {
			continue
		}
		result.Assets = append(result.Assets, asset)
	}
	result.Count = len(result.Assets)
	return result, nil
}

func (m *MockDestination) AddAssetsToAlbum(ctx context.Context, albumID string, ids []string) ([]models.AddResult, error) {
	m.mu.Lock()
	m.Adds = append(m.Adds, AddCall{AlbumID: albumID, IDs: append([]string(nil), ids...)})
	m.mu.Unlock()

	if m.AddErr != nil {
		return nil, m.AddErr
	}

	results := make([]models.AddResult, len(ids))
	for i, id := range ids {
		if r, ok := m.AddResults[id]; ok {
			r.ID = id
			results[i] = r
			continue
		}
		results[i] = models.AddResult{ID: id, Success: true}
	}
	return results, nil
}

func (m *MockDestination) Name() string { return "mock destination" }

// SearchesFor returns the recorded queries for one filename in call order.
func (m *MockDestination) SearchesFor(name string) []services.AssetQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []services.AssetQuery
	for _, q := range m.Searches {
		if q.OriginalFileName == name {
			out = append(out, q)
		}
	}
	return out
}

// MutatingCalls counts create and add requests.
func (m *MockDestination) MutatingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created) + len(m.Adds)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustParseTime parses an RFC 3339 timestamp or fails the test
func MustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("Failed to parse time %s: %v", value, err)
	}
	return parsed
}
