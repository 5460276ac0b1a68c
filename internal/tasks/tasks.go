// package tasks reproduces Nextcloud albums in Immich.
//
// The core abstraction is AlbumEngine, which resolves albums, matches files to assets and attaches them.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/services"
	"github.com/corsac-s/immich-tools/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Default search windows around a file's modification time.
const (
	DefaultNarrowWindow = time.Second
	DefaultWideWindow   = 21 * 24 * time.Hour
)

// MatchPhase names the search window that produced a match.
type MatchPhase string

const (
	MatchNarrow MatchPhase = "narrow"
	MatchWide   MatchPhase = "wide"
)

// AssetMatch is a source file resolved to a destination asset.
type AssetMatch struct {
	File  models.SourceFile
	Asset models.DestinationAsset
	Phase MatchPhase // Window that matched
}

// UnresolvedFile is a source file with no matching asset.
type UnresolvedFile struct {
	File models.SourceFile
	Err  error // Wraps [shared.ErrAssetNotFound] or [shared.ErrMalformedFilename]
}

// AlbumResult contains everything that happened to one source album.
type AlbumResult struct {
	Name        string                   // Source album name
	Destination *models.DestinationAlbum // Resolved or created album; empty ID in dry-run
	Created     bool                     // Album did not exist before this run
	Files       int                      // Files listed on the share
	Matches     []AssetMatch             // Resolved files in source order
	Unresolved  []UnresolvedFile         // Files with no asset, in source order
	Failures    []models.AddResult       // Non-duplicate add failures, in attach order
}

// SyncResult contains all data from a full sync run.
type SyncResult struct {
	RunID       string // History id, empty when history is disabled
	DryRun      bool
	StartedAt   time.Time
	CompletedAt time.Time
	Albums      []AlbumResult
}

// Totals aggregates counters across albums.
type Totals struct {
	Albums     int `json:"albums"`
	Created    int `json:"created"`
	Files      int `json:"files"`
	Matched    int `json:"matched"`
	Attached   int `json:"attached"` // Matched minus failures; zero in dry-run
	Unresolved int `json:"unresolved"`
	Failed     int `json:"failed"`
}

// Totals sums the per-album counters.
func (r *SyncResult) Totals() Totals {
	var t Totals
	for _, a := range r.Albums {
		t.Albums++
		if a.Created {
			t.Created++
		}
		t.Files += a.Files
		t.Matched += len(a.Matches)
		t.Unresolved += len(a.Unresolved)
		t.Failed += len(a.Failures)
	}
	if !r.DryRun {
		t.Attached = t.Matched - t.Failed
	}
	return t
}

// Duration returns the wall time of the run.
func (r *SyncResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// SyncEngine defines the album sync operations.
type SyncEngine interface {
	// Run performs a full Nextcloud → Immich album sync.
	Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)

	// ResolveAlbum finds the destination album named name in existing or creates it.
	ResolveAlbum(ctx context.Context, name string, existing []models.DestinationAlbum) (*models.DestinationAlbum, bool, error)

	// ResolveAsset finds the asset for one source file with a narrow then a wide time window.
	ResolveAsset(ctx context.Context, album string, file models.SourceFile) (*AssetMatch, error)

	// AssembleAlbum attaches ids to album and returns the non-duplicate failures.
	AssembleAlbum(ctx context.Context, album *models.DestinationAlbum, ids []string) ([]models.AddResult, error)
}

// Recorder persists run history: a running entry when a run starts, completed with the result when it ends.
//
// Optional: recording errors are logged and never fail the sync.
type Recorder interface {
	Start(ctx context.Context, dryRun bool) (string, error)
	Record(ctx context.Context, runID string, result *SyncResult, runErr error) (string, error)
}

// EngineOptions tunes an [AlbumEngine]. Zero values select defaults.
type EngineOptions struct {
	Workers      int           // Concurrent asset searches per album (default: 1)
	DryRun       bool          // Search only; no album is created and nothing is attached
	Albums       []string      // Restrict the run to these source album names
	NarrowWindow time.Duration // Half-width of the first search window
	WideWindow   time.Duration // Half-width of the fallback search window
	Logger       *log.Logger
	Recorder     Recorder
}

// AlbumEngine implements SyncEngine.
// Contains dependencies on the source share and the destination library.
type AlbumEngine struct {
	source services.Source
	dest   services.Destination
	opts   EngineOptions
	logger *log.Logger
}

var _ SyncEngine = (*AlbumEngine)(nil)

// NewAlbumEngine creates a new AlbumEngine with the provided services.
func NewAlbumEngine(source services.Source, dest services.Destination, opts EngineOptions) *AlbumEngine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.NarrowWindow <= 0 {
		opts.NarrowWindow = DefaultNarrowWindow
	}
	if opts.WideWindow <= 0 {
		opts.WideWindow = DefaultWideWindow
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &AlbumEngine{source: source, dest: dest, opts: opts, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *AlbumEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// searchWindow builds the query for name captured within width of t.
func searchWindow(name string, t time.Time, width time.Duration) services.AssetQuery {
	return services.AssetQuery{
		OriginalFileName: name,
		TakenAfter:       t.Add(-width),
		TakenBefore:      t.Add(width),
	}
}

// isUnresolved reports errors that leave a file unmatched without aborting the run.
func isUnresolved(err error) bool {
	return errors.Is(err, shared.ErrAssetNotFound) || errors.Is(err, shared.ErrMalformedFilename)
}

// ResolveAlbum returns the first album in existing named exactly name.
//
// When none exists the album is created, or in dry-run a placeholder without an ID is returned.
// The boolean reports whether the album is new.
func (e *AlbumEngine) ResolveAlbum(ctx context.Context, name string, existing []models.DestinationAlbum) (*models.DestinationAlbum, bool, error) {
	var found *models.DestinationAlbum
	matches := 0
	for i := range existing {
		if existing[i].Name != name {
			continue
		}
		if found == nil {
			found = &existing[i]
		}
		matches++
	}

	if found != nil {
		if matches > 1 {
			e.logger.Warn("several destination albums share a name, using the first", "album", name, "id", found.ID, "count", matches)
		}
		album := *found
		return &album, false, nil
	}

	if e.opts.DryRun {
		e.logger.Info("would create album", "album", name)
		return &models.DestinationAlbum{Name: name}, true, nil
	}

	if e.dest == nil {
		return nil, false, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}

	created, err := e.dest.CreateAlbum(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create album %q: %w", name, err)
	}
	e.logger.Info("created album", "album", name, "id", created.ID)
	return created, true, nil
}

// ResolveAsset looks up the asset for file by its original filename.
//
// The first search spans the narrow window around the file's modification time and the second, only issued when the
// first is empty, spans the wide window. The first candidate in server order wins. A file with no candidate in either
// window, or whose name lacks the id delimiter, yields an error wrapping [shared.ErrAssetNotFound] or
// [shared.ErrMalformedFilename]; any other error is a transport failure.
func (e *AlbumEngine) ResolveAsset(ctx context.Context, album string, file models.SourceFile) (*AssetMatch, error) {
	name, err := file.OriginalName()
	if err != nil {
		return nil, fmt.Errorf("album %q: %w", album, err)
	}

	if e.dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}

	phases := []struct {
		phase MatchPhase
		width time.Duration
	}{
		{MatchNarrow, e.opts.NarrowWindow},
		{MatchWide, e.opts.WideWindow},
	}

	for _, p := range phases {
		result, err := e.dest.SearchAssets(ctx, searchWindow(name, file.Modified, p.width))
		if err != nil {
			return nil, fmt.Errorf("search %q in album %q: %w", name, album, err)
		}
		if asset, ok := result.First(); ok {
			if result.Count > 1 {
				e.logger.Debug("several candidates, using the first", "album", album, "file", name, "count", result.Count)
			}
			return &AssetMatch{File: file, Asset: asset, Phase: p.phase}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s/%s", shared.ErrAssetNotFound, album, name)
}

// AssembleAlbum adds all ids to album with a single request.
//
// Only results that failed for a reason other than "duplicate" are returned, in request order.
// No request is issued for an empty list or in dry-run.
func (e *AlbumEngine) AssembleAlbum(ctx context.Context, album *models.DestinationAlbum, ids []string) ([]models.AddResult, error) {
	if len(ids) == 0 || e.opts.DryRun {
		return nil, nil
	}
	if album == nil || album.ID == "" {
		return nil, fmt.Errorf("%w: album has no id", shared.ErrInvalidArgument)
	}
	if e.dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}

	results, err := e.dest.AddAssetsToAlbum(ctx, album.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to add assets to album %q: %w", album.Name, err)
	}

	var failures []models.AddResult
	for _, r := range results {
		if r.Failed() {
			failures = append(failures, r)
		}
	}
	return failures, nil
}

// Run performs a full sync of every selected source album.
//
// Only configuration and transport errors abort; unresolved and failed assets are collected in the result. The result
// returned alongside an error holds the albums completed before the failure.
func (e *AlbumEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (result *SyncResult, err error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if e.dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}

	result = &SyncResult{DryRun: e.opts.DryRun, StartedAt: time.Now().UTC()}
	runID := e.start(ctx)
	defer func() {
		result.CompletedAt = time.Now().UTC()
		e.record(ctx, runID, result, err)
		e.sendProgress(progress, doneUpdate(result, err))
	}()

	e.sendProgress(progress, fetchSourceUpdate(e.source.Name()))
	sourceAlbums, err := e.source.ListAlbums(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list source albums: %w", err)
	}

	sourceAlbums = e.selectAlbums(sourceAlbums)
	if err := checkDuplicateNames(sourceAlbums); err != nil {
		return result, err
	}

	e.sendProgress(progress, fetchDestUpdate(e.dest.Name()))
	destAlbums, err := e.dest.ListAlbums(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list destination albums: %w", err)
	}

	e.logger.Info("starting sync", "albums", len(sourceAlbums), "existing", len(destAlbums), "dry_run", e.opts.DryRun)

	total := len(sourceAlbums)
	for i, album := range sourceAlbums {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		albumResult, err := e.syncAlbum(ctx, progress, i+1, total, album, &destAlbums)
		if albumResult != nil {
			result.Albums = append(result.Albums, *albumResult)
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (e *AlbumEngine) start(ctx context.Context) string {
	if e.opts.Recorder == nil {
		return ""
	}
	id, err := e.opts.Recorder.Start(ctx, e.opts.DryRun)
	if err != nil {
		e.logger.Warn("failed to record run start", "err", err)
		return ""
	}
	return id
}

func (e *AlbumEngine) record(ctx context.Context, runID string, result *SyncResult, runErr error) {
	if e.opts.Recorder == nil {
		return
	}
	id, err := e.opts.Recorder.Record(context.WithoutCancel(ctx), runID, result, runErr)
	if err != nil {
		e.logger.Warn("failed to record run history", "err", err)
		return
	}
	result.RunID = id
}

// selectAlbums applies the album filter, keeping source order.
func (e *AlbumEngine) selectAlbums(albums []models.SourceAlbum) []models.SourceAlbum {
	if len(e.opts.Albums) == 0 {
		return albums
	}

	selected := make([]models.SourceAlbum, 0, len(e.opts.Albums))
	for _, album := range albums {
		if slices.Contains(e.opts.Albums, album.Name) {
			selected = append(selected, album)
		}
	}

	for _, name := range e.opts.Albums {
		if !slices.ContainsFunc(selected, func(a models.SourceAlbum) bool { return a.Name == name }) {
			e.logger.Warn("album not found on source", "album", name)
		}
	}
	return selected
}

// checkDuplicateNames rejects source listings where two albums map to the same destination name.
func checkDuplicateNames(albums []models.SourceAlbum) error {
	seen := make(map[string]struct{}, len(albums))
	var dupes []string
	for _, album := range albums {
		if _, ok := seen[album.Name]; ok {
			if !slices.Contains(dupes, album.Name) {
				dupes = append(dupes, album.Name)
			}
			continue
		}
		seen[album.Name] = struct{}{}
	}
	if len(dupes) > 0 {
		return fmt.Errorf("%w: %v", shared.ErrDuplicateAlbum, dupes)
	}
	return nil
}

func (e *AlbumEngine) syncAlbum(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	step, total int,
	album models.SourceAlbum,
	destAlbums *[]models.DestinationAlbum,
) (*AlbumResult, error) {
	logger := shared.WithLogger(e.logger, "album", album.Name)
	result := &AlbumResult{Name: album.Name}

	e.sendProgress(progress, resolveAlbumUpdate(step, total, album.Name))
	dest, created, err := e.ResolveAlbum(ctx, album.Name, *destAlbums)
	if err != nil {
		return result, err
	}
	result.Destination = dest
	result.Created = created
	if created {
		*destAlbums = append(*destAlbums, *dest)
	}

	files := album.Files
	if files == nil {
		files, err = e.source.ListFiles(ctx, album)
		if err != nil {
			return result, fmt.Errorf("failed to list files of album %q: %w", album.Name, err)
		}
	}
	result.Files = len(files)
	e.sendProgress(progress, listFilesUpdate(step, total, album.Name, len(files)))

	matches, unresolved, err := e.resolveFiles(ctx, progress, album.Name, files)
	if err != nil {
		return result, err
	}
	result.Matches = matches
	result.Unresolved = unresolved
	for _, u := range unresolved {
		logger.Warn("no matching asset", "file", u.File.Name, "err", u.Err)
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Asset.ID
	}

	e.sendProgress(progress, assembleAlbumUpdate(step, total, album.Name, len(ids)))
	failures, err := e.AssembleAlbum(ctx, dest, ids)
	if err != nil {
		return result, err
	}
	result.Failures = failures
	for _, f := range failures {
		logger.Error("failed to add asset", "id", f.ID, "error", f.Error)
	}

	logger.Info("album done",
		"files", result.Files,
		"matched", len(result.Matches),
		"unresolved", len(result.Unresolved),
		"failed", len(result.Failures),
		"created", result.Created,
	)
	return result, nil
}

type fileOutcome struct {
	match *AssetMatch
	err   error
}

// resolveFiles resolves files with at most Workers searches in flight.
//
// Outcomes are stored by source index so matches keep source order. The first transport error cancels the remaining
// searches.
func (e *AlbumEngine) resolveFiles(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	album string,
	files []models.SourceFile,
) ([]AssetMatch, []UnresolvedFile, error) {
	outcomes := make([]fileOutcome, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i, file := range files {
		g.Go(func() error {
			match, err := e.ResolveAsset(gctx, album, file)
			if err != nil && !isUnresolved(err) {
				return err
			}
			outcomes[i] = fileOutcome{match: match, err: err}
			e.sendProgress(progress, resolveAssetUpdate(int(done.Add(1)), len(files), album, file.Name, match))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var matches []AssetMatch
	var unresolved []UnresolvedFile
	for i, o := range outcomes {
		if o.match != nil {
			matches = append(matches, *o.match)
			continue
		}
		unresolved = append(unresolved, UnresolvedFile{File: files[i], Err: o.err})
	}
	return matches, unresolved, nil
}
