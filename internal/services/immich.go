// Immich [Destination] implementation
//
// Talks to the Immich REST API under <base URL>/api, authenticated with a static x-api-key header.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"golang.org/x/time/rate"
)

const defaultImmichTimeout = 30 * time.Second

// immichAlbum is the subset of AlbumResponseDto the sync reads.
type immichAlbum struct {
	ID         string `json:"id"`
	AlbumName  string `json:"albumName"`
	AssetCount int    `json:"assetCount"`
	Assets     []struct {
		ID string `json:"id"`
	} `json:"assets,omitempty"`
}

// immichAsset is the subset of AssetResponseDto the sync reads.
type immichAsset struct {
	ID               string     `json:"id"`
	OriginalFileName string     `json:"originalFileName"`
	FileCreatedAt    *time.Time `json:"fileCreatedAt,omitempty"`
	LocalDateTime    *time.Time `json:"localDateTime,omitempty"`
	DuplicateID      *string    `json:"duplicateId,omitempty"`
}

type immichSearchRequest struct {
	OriginalFileName string `json:"originalFileName"`
	TakenAfter       string `json:"takenAfter"`
	TakenBefore      string `json:"takenBefore"`
}

type immichSearchResponse struct {
	Assets *struct {
		Total int           `json:"total"`
		Count int           `json:"count"`
		Items []immichAsset `json:"items"`
	} `json:"assets"`
}

type immichBulkIDResponse struct {
	ID      string  `json:"id"`
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

type immichError struct {
	Message    any    `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// ImmichOptions configures an [ImmichService].
type ImmichOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // Requests per second, 0 disables pacing
	HTTPClient *http.Client
}

// ImmichService implements [Destination] for an Immich server.
type ImmichService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewImmichService creates a new Immich client. The base URL may or may not end with a slash.
func NewImmichService(opts ImmichOptions) *ImmichService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultImmichTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	svc := &ImmichService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: opts.HTTPClient,
	}
	if opts.RateLimit > 0 {
		svc.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return svc
}

// Name returns the service name.
func (s *ImmichService) Name() string {
	return "Immich"
}

func (s *ImmichService) newRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *ImmichService) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// doRequest sends payload as JSON and decodes a 2xx response into result.
//
// Transport failures and non-2xx statuses wrap [shared.ErrAPIRequest]; undecodable bodies wrap [shared.ErrMalformedResponse].
func (s *ImmichService) doRequest(ctx context.Context, method, endpoint string, payload, result any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if err := s.wait(ctx); err != nil {
		return err
	}

	req, err := s.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: failed to read response: %v", shared.ErrAPIRequest, method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp immichError
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != nil {
			return fmt.Errorf("%w: %s %s: status %d: %v", shared.ErrAPIRequest, method, endpoint, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: %s %s: %v", shared.ErrMalformedResponse, method, endpoint, err)
		}
	}

	return nil
}

func (a immichAlbum) toModel() (models.DestinationAlbum, error) {
	if a.ID == "" {
		return models.DestinationAlbum{}, fmt.Errorf("%w: album %q has no id", shared.ErrMalformedResponse, a.AlbumName)
	}

	album := models.DestinationAlbum{
		ID:         a.ID,
		Name:       a.AlbumName,
		AssetCount: a.AssetCount,
	}
	if len(a.Assets) > 0 {
		album.AssetIDs = make([]string, len(a.Assets))
		for i, asset := range a.Assets {
			album.AssetIDs[i] = asset.ID
		}
	}
	return album, nil
}

// ListAlbums retrieves all albums.
//
// Calls GET /api/albums.
func (s *ImmichService) ListAlbums(ctx context.Context) ([]models.DestinationAlbum, error) {
	var raw []immichAlbum
	if err := s.doRequest(ctx, http.MethodGet, "/api/albums", nil, &raw); err != nil {
		return nil, err
	}

	albums := make([]models.DestinationAlbum, 0, len(raw))
	for _, a := range raw {
		album, err := a.toModel()
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// GetAlbum retrieves one album with its assets.
//
// Calls GET /api/albums/{id}.
func (s *ImmichService) GetAlbum(ctx context.Context, albumID string) (*models.DestinationAlbum, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id is empty", shared.ErrInvalidArgument)
	}

	var raw immichAlbum
	if err := s.doRequest(ctx, http.MethodGet, "/api/albums/"+url.PathEscape(albumID), nil, &raw); err != nil {
		return nil, err
	}

	album, err := raw.toModel()
	if err != nil {
		return nil, err
	}
	return &album, nil
}

// CreateAlbum creates an empty album.
//
// Calls POST /api/albums with {albumName}.
func (s *ImmichService) CreateAlbum(ctx context.Context, name string) (*models.DestinationAlbum, error) {
	payload := struct {
		AlbumName string `json:"albumName"`
	}{AlbumName: name}

	var raw immichAlbum
	if err := s.doRequest(ctx, http.MethodPost, "/api/albums", payload, &raw); err != nil {
		return nil, err
	}

	album, err := raw.toModel()
	if err != nil {
		return nil, err
	}
	return &album, nil
}

// SearchAssets runs a metadata search.
//
// Calls POST /api/search/metadata with {originalFileName, takenAfter, takenBefore}.
func (s *ImmichService) SearchAssets(ctx context.Context, query AssetQuery) (*models.MatchResult, error) {
	payload := immichSearchRequest{
		OriginalFileName: query.OriginalFileName,
		TakenAfter:       FormatTimestamp(query.TakenAfter),
		TakenBefore:      FormatTimestamp(query.TakenBefore),
	}

	var raw immichSearchResponse
	if err := s.doRequest(ctx, http.MethodPost, "/api/search/metadata", payload, &raw); err != nil {
		return nil, err
	}
	if raw.Assets == nil {
		return nil, fmt.Errorf("%w: search response has no assets section", shared.ErrMalformedResponse)
	}

	result := &models.MatchResult{
		Count:  raw.Assets.Count,
		Assets: make([]models.DestinationAsset, 0, len(raw.Assets.Items)),
	}
	for _, item := range raw.Assets.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: search item %q has no id", shared.ErrMalformedResponse, item.OriginalFileName)
		}

		asset := models.DestinationAsset{
			ID:               item.ID,
			OriginalFileName: item.OriginalFileName,
		}
		switch {
		case item.FileCreatedAt != nil:
			asset.TakenAt = item.FileCreatedAt.UTC()
		case item.LocalDateTime != nil:
			asset.TakenAt = item.LocalDateTime.UTC()
		}
		if item.DuplicateID != nil {
			asset.DuplicateID = *item.DuplicateID
		}
		result.Assets = append(result.Assets, asset)
	}

	return result, nil
}

// AddAssetsToAlbum adds assets to an album in one request.
//
// Calls PUT /api/albums/{id}/assets with {ids}.
func (s *ImmichService) AddAssetsToAlbum(ctx context.Context, albumID string, ids []string) ([]models.AddResult, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id is empty", shared.ErrInvalidArgument)
	}

	payload := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	var raw []immichBulkIDResponse
	endpoint := fmt.Sprintf("/api/albums/%s/assets", url.PathEscape(albumID))
	if err := s.doRequest(ctx, http.MethodPut, endpoint, payload, &raw); err != nil {
		return nil, err
	}
	if len(raw) != len(ids) {
		return nil, fmt.Errorf("%w: sent %d ids, got %d results", shared.ErrMalformedResponse, len(ids), len(raw))
	}

	results := make([]models.AddResult, len(raw))
	for i, r := range raw {
		result := models.AddResult{ID: r.ID, Success: r.Success}
		if result.ID == "" {
			result.ID = ids[i]
		}
		if r.Error != nil {
			result.Error = *r.Error
		}
		results[i] = result
	}
	return results, nil
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Raw performs an authenticated request against any API path and returns the undecoded response.
//
// Non-2xx statuses are not errors here; callers inspect StatusCode.
func (s *ImmichService) Raw(ctx context.Context, method, path string, body []byte) (*APIResponse, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
