package tasks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	tu "github.com/corsac-s/immich-tools/internal/testing"
)

var base = time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(src *tu.MockSource, dest *tu.MockDestination, opts EngineOptions) (*AlbumEngine, *bytes.Buffer) {
	var buf bytes.Buffer
	opts.Logger = log.New(&buf)
	return NewAlbumEngine(src, dest, opts), &buf
}

type fakeRecorder struct {
	started   bool
	dryRun    bool
	startFail error
	runID     string
	result    *SyncResult
	err       error
	fail      error
}

func (f *fakeRecorder) Start(ctx context.Context, dryRun bool) (string, error) {
	f.started = true
	f.dryRun = dryRun
	if f.startFail != nil {
		return "", f.startFail
	}
	return "run-1", nil
}

func (f *fakeRecorder) Record(ctx context.Context, runID string, result *SyncResult, runErr error) (string, error) {
	f.runID = runID
	f.result = result
	f.err = runErr
	if f.fail != nil {
		return "", f.fail
	}
	if runID == "" {
		return "run-2", nil
	}
	return runID, nil
}

func TestNewAlbumEngine(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		e := NewAlbumEngine(nil, nil, EngineOptions{})
		if e.opts.Workers != 1 {
			t.Errorf("expected 1 worker, got %d", e.opts.Workers)
		}
		if e.opts.NarrowWindow != time.Second || e.opts.WideWindow != 21*24*time.Hour {
			t.Errorf("unexpected windows %v %v", e.opts.NarrowWindow, e.opts.WideWindow)
		}
		if e.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		e := NewAlbumEngine(nil, nil, EngineOptions{Workers: 4, NarrowWindow: 2 * time.Second, WideWindow: time.Hour})
		if e.opts.Workers != 4 || e.opts.NarrowWindow != 2*time.Second || e.opts.WideWindow != time.Hour {
			t.Errorf("unexpected options %+v", e.opts)
		}
	})
}

func TestResolveAsset(t *testing.T) {
	ctx := context.Background()
	file := models.SourceFile{Name: "1001-beach.jpg", Modified: base}

	t.Run("narrow window match issues one search", func(t *testing.T) {
		for _, offset := range []time.Duration{0, 500 * time.Millisecond, -time.Second, time.Second} {
			dest := &tu.MockDestination{Assets: []models.DestinationAsset{
				{ID: "A", OriginalFileName: "beach.jpg", TakenAt: base.Add(offset)},
			}}
			e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

			match, err := e.ResolveAsset(ctx, "Trip2023", file)
			if err != nil {
				t.Fatalf("offset %v: expected no error, got %v", offset, err)
			}
			if match.Asset.ID != "A" || match.Phase != MatchNarrow {
				t.Errorf("offset %v: unexpected match %+v", offset, match)
			}
			if n := len(dest.Searches); n != 1 {
				t.Errorf("offset %v: expected 1 search, got %d", offset, n)
			}
		}
	})

	t.Run("wide window fallback", func(t *testing.T) {
		for _, offset := range []time.Duration{2 * time.Second, -time.Hour, 20 * 24 * time.Hour, -21 * 24 * time.Hour} {
			dest := &tu.MockDestination{Assets: []models.DestinationAsset{
				{ID: "B", OriginalFileName: "beach.jpg", TakenAt: base.Add(offset)},
			}}
			e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

			match, err := e.ResolveAsset(ctx, "Trip2023", file)
			if err != nil {
				t.Fatalf("offset %v: expected no error, got %v", offset, err)
			}
			if match.Asset.ID != "B" || match.Phase != MatchWide {
				t.Errorf("offset %v: unexpected match %+v", offset, match)
			}

			searches := dest.SearchesFor("beach.jpg")
			if len(searches) != 2 {
				t.Fatalf("offset %v: expected 2 searches, got %d", offset, len(searches))
			}
			if !searches[0].TakenAfter.Equal(base.Add(-time.Second)) || !searches[0].TakenBefore.Equal(base.Add(time.Second)) {
				t.Errorf("unexpected narrow window %+v", searches[0])
			}
			if !searches[1].TakenAfter.Equal(base.Add(-DefaultWideWindow)) || !searches[1].TakenBefore.Equal(base.Add(DefaultWideWindow)) {
				t.Errorf("unexpected wide window %+v", searches[1])
			}
		}
	})

	t.Run("unresolved beyond wide window", func(t *testing.T) {
		dest := &tu.MockDestination{Assets: []models.DestinationAsset{
			{ID: "C", OriginalFileName: "beach.jpg", TakenAt: base.Add(22 * 24 * time.Hour)},
			{ID: "D", OriginalFileName: "other.jpg", TakenAt: base},
		}}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		match, err := e.ResolveAsset(ctx, "Trip2023", file)
		if !errors.Is(err, shared.ErrAssetNotFound) {
			t.Fatalf("expected ErrAssetNotFound, got %v", err)
		}
		if match != nil {
			t.Errorf("expected no match, got %+v", match)
		}
	})

	t.Run("first candidate wins", func(t *testing.T) {
		dest := &tu.MockDestination{Assets: []models.DestinationAsset{
			{ID: "first", OriginalFileName: "beach.jpg", TakenAt: base, DuplicateID: "g"},
			{ID: "second", OriginalFileName: "beach.jpg", TakenAt: base},
		}}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		match, err := e.ResolveAsset(ctx, "Trip2023", file)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if match.Asset.ID != "first" {
			t.Errorf("expected first candidate, got %s", match.Asset.ID)
		}
	})

	t.Run("malformed filename issues no search", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		_, err := e.ResolveAsset(ctx, "Trip2023", models.SourceFile{Name: "beach.jpg", Modified: base})
		if !errors.Is(err, shared.ErrMalformedFilename) {
			t.Fatalf("expected ErrMalformedFilename, got %v", err)
		}
		if len(dest.Searches) != 0 {
			t.Errorf("expected no searches, got %d", len(dest.Searches))
		}
	})

	t.Run("search failure is not unresolved", func(t *testing.T) {
		dest := &tu.MockDestination{SearchErr: shared.ErrAPIRequest}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		_, err := e.ResolveAsset(ctx, "Trip2023", file)
		if !errors.Is(err, shared.ErrAPIRequest) || isUnresolved(err) {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("custom windows", func(t *testing.T) {
		dest := &tu.MockDestination{Assets: []models.DestinationAsset{
			{ID: "E", OriginalFileName: "beach.jpg", TakenAt: base.Add(3 * time.Second)},
		}}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{NarrowWindow: 5 * time.Second, WideWindow: time.Minute})

		match, err := e.ResolveAsset(ctx, "Trip2023", file)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if match.Phase != MatchNarrow {
			t.Errorf("expected narrow match with 5s window, got %s", match.Phase)
		}
	})
}

func TestResolveAlbum(t *testing.T) {
	ctx := context.Background()

	t.Run("existing album is reused without create", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})
		existing := []models.DestinationAlbum{{ID: "X", Name: "Other"}, {ID: "T", Name: "Trip2023"}}

		for range 2 {
			album, created, err := e.ResolveAlbum(ctx, "Trip2023", existing)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if created || album.ID != "T" {
				t.Errorf("expected existing album T, got %+v created=%v", album, created)
			}
		}
		if len(dest.Created) != 0 {
			t.Errorf("expected no create calls, got %v", dest.Created)
		}
	})

	t.Run("match is exact and case-sensitive", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		album, created, err := e.ResolveAlbum(ctx, "Trip2023", []models.DestinationAlbum{{ID: "L", Name: "trip2023"}, {ID: "S", Name: "Trip2023 "}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !created || album.Name != "Trip2023" {
			t.Errorf("expected new album, got %+v created=%v", album, created)
		}
		if len(dest.Created) != 1 || dest.Created[0] != "Trip2023" {
			t.Errorf("expected one create for Trip2023, got %v", dest.Created)
		}
	})

	t.Run("duplicate destination names use the first", func(t *testing.T) {
		e, buf := newTestEngine(&tu.MockSource{}, &tu.MockDestination{}, EngineOptions{})

		album, _, err := e.ResolveAlbum(ctx, "Trip2023", []models.DestinationAlbum{{ID: "1", Name: "Trip2023"}, {ID: "2", Name: "Trip2023"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if album.ID != "1" {
			t.Errorf("expected first album, got %s", album.ID)
		}
		if !strings.Contains(buf.String(), "several destination albums") {
			t.Errorf("expected warning, got %q", buf.String())
		}
	})

	t.Run("dry-run returns placeholder", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{DryRun: true})

		album, created, err := e.ResolveAlbum(ctx, "Trip2023", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !created || album.ID != "" || album.Name != "Trip2023" {
			t.Errorf("unexpected placeholder %+v created=%v", album, created)
		}
		if dest.MutatingCalls() != 0 {
			t.Errorf("expected no mutating calls, got %d", dest.MutatingCalls())
		}
	})

	t.Run("create failure is returned", func(t *testing.T) {
		dest := &tu.MockDestination{CreateErr: shared.ErrAPIRequest}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		if _, _, err := e.ResolveAlbum(ctx, "Trip2023", nil); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestAssembleAlbum(t *testing.T) {
	ctx := context.Background()
	album := &models.DestinationAlbum{ID: "T", Name: "Trip2023"}

	t.Run("only non-duplicate failures in input order", func(t *testing.T) {
		dest := &tu.MockDestination{AddResults: map[string]models.AddResult{
			"a": {Success: false, Error: "duplicate"},
			"b": {Success: false, Error: "server_error"},
			"d": {Success: false, Error: "no_permission"},
		}}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		failures, err := e.AssembleAlbum(ctx, album, []string{"a", "b", "c", "d"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(failures) != 2 || failures[0].ID != "b" || failures[1].ID != "d" {
			t.Errorf("unexpected failures %+v", failures)
		}
		if len(dest.Adds) != 1 || dest.Adds[0].AlbumID != "T" || len(dest.Adds[0].IDs) != 4 {
			t.Errorf("expected a single add call, got %+v", dest.Adds)
		}
	})

	t.Run("duplicate and server error scenario", func(t *testing.T) {
		dest := &tu.MockDestination{AddResults: map[string]models.AddResult{
			"x": {Success: false, Error: "duplicate"},
			"y": {Success: false, Error: "server_error"},
		}}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		failures, err := e.AssembleAlbum(ctx, album, []string{"x", "y"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(failures) != 1 || failures[0].ID != "y" || failures[0].Error != "server_error" {
			t.Errorf("expected only the server_error entry, got %+v", failures)
		}
	})

	t.Run("empty list issues no call", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		failures, err := e.AssembleAlbum(ctx, album, nil)
		if err != nil || failures != nil {
			t.Fatalf("expected nil, nil; got %v, %v", failures, err)
		}
		if len(dest.Adds) != 0 {
			t.Errorf("expected no add call, got %d", len(dest.Adds))
		}
	})

	t.Run("dry-run issues no call", func(t *testing.T) {
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{DryRun: true})

		if _, err := e.AssembleAlbum(ctx, &models.DestinationAlbum{Name: "Trip2023"}, []string{"a"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(dest.Adds) != 0 {
			t.Errorf("expected no add call, got %d", len(dest.Adds))
		}
	})

	t.Run("transport failure aborts", func(t *testing.T) {
		dest := &tu.MockDestination{AddErr: shared.ErrAPIRequest}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{})

		if _, err := e.AssembleAlbum(ctx, album, []string{"a"}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("missing album id", func(t *testing.T) {
		e, _ := newTestEngine(&tu.MockSource{}, &tu.MockDestination{}, EngineOptions{})

		if _, err := e.AssembleAlbum(ctx, &models.DestinationAlbum{}, []string{"a"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func tripSource() *tu.MockSource {
	return &tu.MockSource{
		Albums: []models.SourceAlbum{{Name: "Trip2023", Path: "/Trip2023/"}},
		Files: map[string][]models.SourceFile{
			"Trip2023": {
				{Name: "1001-beach.jpg", Modified: time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)},
				{Name: "1002-sunset.jpg", Modified: time.Date(2023, 7, 1, 18, 0, 0, 0, time.UTC)},
			},
		},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Trip2023 scenario", func(t *testing.T) {
		dest := &tu.MockDestination{Assets: []models.DestinationAsset{
			{ID: "beach-id", OriginalFileName: "beach.jpg", TakenAt: time.Date(2023, 7, 1, 10, 0, 1, 0, time.UTC)},
		}}
		e, buf := newTestEngine(tripSource(), dest, EngineOptions{})
		progress := make(chan ProgressUpdate, 100)

		result, err := e.Run(ctx, progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(dest.Created) != 1 || dest.Created[0] != "Trip2023" {
			t.Errorf("expected Trip2023 to be created, got %v", dest.Created)
		}
		if len(dest.Adds) != 1 {
			t.Fatalf("expected one add call, got %d", len(dest.Adds))
		}
		if ids := dest.Adds[0].IDs; len(ids) != 1 || ids[0] != "beach-id" {
			t.Errorf("expected only beach-id attached, got %v", ids)
		}

		if len(result.Albums) != 1 {
			t.Fatalf("expected one album result, got %d", len(result.Albums))
		}
		album := result.Albums[0]
		if !album.Created || album.Files != 2 || len(album.Matches) != 1 || len(album.Unresolved) != 1 {
			t.Errorf("unexpected album result %+v", album)
		}
		if album.Matches[0].Phase != MatchNarrow {
			t.Errorf("expected narrow match, got %s", album.Matches[0].Phase)
		}
		if album.Unresolved[0].File.Name != "1002-sunset.jpg" {
			t.Errorf("expected sunset unresolved, got %s", album.Unresolved[0].File.Name)
		}
		warnings := 0
		for line := range strings.Lines(buf.String()) {
			if strings.Contains(line, "no matching asset") {
				warnings++
			}
		}
		if got := warnings; got != 1 {
			t.Errorf("expected one unresolved warning, got %d in %q", got, buf.String())
		}
		if len(dest.SearchesFor("beach.jpg")) != 1 || len(dest.SearchesFor("sunset.jpg")) != 2 {
			t.Errorf("unexpected searches %+v", dest.Searches)
		}

		totals := result.Totals()
		if totals.Albums != 1 || totals.Created != 1 || totals.Matched != 1 || totals.Attached != 1 || totals.Unresolved != 1 || totals.Failed != 0 {
			t.Errorf("unexpected totals %+v", totals)
		}
		if result.CompletedAt.Before(result.StartedAt) {
			t.Error("expected completion after start")
		}

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		if last.Phase != Done {
			t.Errorf("expected final Done update, got %s", last.Phase)
		}
	})

	t.Run("second run reuses created album", func(t *testing.T) {
		dest := &tu.MockDestination{}
		src := tripSource()

		for range 2 {
			e, _ := newTestEngine(src, dest, EngineOptions{})
			if _, err := e.Run(ctx, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if len(dest.Created) != 1 {
			t.Errorf("expected a single create across runs, got %v", dest.Created)
		}
	})

	t.Run("duplicate source names abort before any create", func(t *testing.T) {
		src := &tu.MockSource{Albums: []models.SourceAlbum{{Name: "Trip2023"}, {Name: "Family"}, {Name: "Trip2023"}}}
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(src, dest, EngineOptions{})

		_, err := e.Run(ctx, nil)
		if !errors.Is(err, shared.ErrDuplicateAlbum) {
			t.Fatalf("expected ErrDuplicateAlbum, got %v", err)
		}
		if dest.MutatingCalls() != 0 || len(src.Listed) != 0 {
			t.Errorf("expected no processing, got %d mutating calls and %v listed", dest.MutatingCalls(), src.Listed)
		}
	})

	t.Run("dry-run issues no mutating request", func(t *testing.T) {
		dest := &tu.MockDestination{Assets: []models.DestinationAsset{
			{ID: "beach-id", OriginalFileName: "beach.jpg", TakenAt: base},
		}}
		e, _ := newTestEngine(tripSource(), dest, EngineOptions{DryRun: true})

		result, err := e.Run(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dest.MutatingCalls() != 0 {
			t.Errorf("expected no mutating calls, got %d", dest.MutatingCalls())
		}
		totals := result.Totals()
		if totals.Matched != 1 || totals.Attached != 0 || totals.Created != 1 {
			t.Errorf("unexpected totals %+v", totals)
		}
	})

	t.Run("album filter", func(t *testing.T) {
		src := &tu.MockSource{Albums: []models.SourceAlbum{{Name: "Trip2023"}, {Name: "Family"}, {Name: "Work"}}}
		dest := &tu.MockDestination{}
		e, buf := newTestEngine(src, dest, EngineOptions{Albums: []string{"Work", "Family", "Missing"}})

		result, err := e.Run(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Albums) != 2 || result.Albums[0].Name != "Family" || result.Albums[1].Name != "Work" {
			t.Errorf("expected Family then Work in source order, got %+v", result.Albums)
		}
		if !strings.Contains(buf.String(), "Missing") {
			t.Error("expected warning for missing album")
		}
	})

	t.Run("transport error aborts with partial result", func(t *testing.T) {
		src := &tu.MockSource{
			Albums:   []models.SourceAlbum{{Name: "A"}, {Name: "B"}, {Name: "C"}},
			FilesErr: map[string]error{"B": shared.ErrAPIRequest},
		}
		dest := &tu.MockDestination{}
		e, _ := newTestEngine(src, dest, EngineOptions{})

		result, err := e.Run(ctx, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if len(result.Albums) != 2 || result.Albums[0].Name != "A" {
			t.Errorf("expected A and partial B, got %+v", result.Albums)
		}
		if len(src.Listed) != 2 {
			t.Errorf("expected C never listed, got %v", src.Listed)
		}
	})

	t.Run("source listing failure", func(t *testing.T) {
		e, _ := newTestEngine(&tu.MockSource{AlbumErr: shared.ErrAPIRequest}, &tu.MockDestination{}, EngineOptions{})

		if _, err := e.Run(ctx, nil); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("destination listing failure", func(t *testing.T) {
		e, _ := newTestEngine(tripSource(), &tu.MockDestination{ListErr: shared.ErrMalformedResponse}, EngineOptions{})

		if _, err := e.Run(ctx, nil); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("missing services", func(t *testing.T) {
		e := NewAlbumEngine(nil, &tu.MockDestination{}, EngineOptions{})
		if _, err := e.Run(ctx, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("records history", func(t *testing.T) {
		rec := &fakeRecorder{}
		e, _ := newTestEngine(tripSource(), &tu.MockDestination{}, EngineOptions{Recorder: rec})

		result, err := e.Run(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.started || rec.runID != "run-1" {
			t.Errorf("expected the run started as run-1 to be completed, got started=%v id=%q", rec.started, rec.runID)
		}
		if rec.result != result || result.RunID != "run-1" {
			t.Errorf("expected recorded result with run id, got %q", result.RunID)
		}
	})

	t.Run("start failure still records the result", func(t *testing.T) {
		rec := &fakeRecorder{startFail: errors.New("database locked")}
		e, buf := newTestEngine(tripSource(), &tu.MockDestination{}, EngineOptions{Recorder: rec, DryRun: true})

		result, err := e.Run(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.dryRun {
			t.Error("expected dry-run flag to reach the recorder")
		}
		if rec.runID != "" || result.RunID != "run-2" {
			t.Errorf("expected a fresh record, got runID=%q result=%q", rec.runID, result.RunID)
		}
		if !strings.Contains(buf.String(), "database locked") {
			t.Error("expected start failure to be logged")
		}
	})

	t.Run("recorder failure does not fail the run", func(t *testing.T) {
		rec := &fakeRecorder{fail: errors.New("disk full")}
		e, buf := newTestEngine(tripSource(), &tu.MockDestination{}, EngineOptions{Recorder: rec})

		result, err := e.Run(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.RunID != "" {
			t.Errorf("expected empty run id, got %q", result.RunID)
		}
		if !strings.Contains(buf.String(), "disk full") {
			t.Error("expected recorder failure to be logged")
		}
	})

	t.Run("recorder sees run error", func(t *testing.T) {
		rec := &fakeRecorder{}
		src := &tu.MockSource{Albums: []models.SourceAlbum{{Name: "A"}, {Name: "A"}}}
		e, _ := newTestEngine(src, &tu.MockDestination{}, EngineOptions{Recorder: rec})

		if _, err := e.Run(ctx, nil); err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(rec.err, shared.ErrDuplicateAlbum) {
			t.Errorf("expected recorded ErrDuplicateAlbum, got %v", rec.err)
		}
	})
}

func TestResolveFilesWorkers(t *testing.T) {
	ctx := context.Background()

	var files []models.SourceFile
	var assets []models.DestinationAsset
	for i := range 40 {
		name := "img" + string(rune('a'+i%26)) + string(rune('0'+i/26)) + ".jpg"
		files = append(files, models.SourceFile{Name: "1-" + name, Modified: base})
		if i%3 != 0 {
			assets = append(assets, models.DestinationAsset{ID: "id-" + name, OriginalFileName: name, TakenAt: base})
		}
	}

	for _, workers := range []int{1, 8} {
		dest := &tu.MockDestination{Assets: assets}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{Workers: workers})

		matches, unresolved, err := e.resolveFiles(ctx, nil, "Bulk", files)
		if err != nil {
			t.Fatalf("workers %d: expected no error, got %v", workers, err)
		}
		if len(matches)+len(unresolved) != len(files) {
			t.Fatalf("workers %d: lost files", workers)
		}

		prev := -1
		for _, m := range matches {
			idx := -1
			for i, f := range files {
				if f.Name == m.File.Name {
					idx = i
				}
			}
			if idx <= prev {
				t.Errorf("workers %d: matches out of source order at %s", workers, m.File.Name)
			}
			prev = idx
		}
	}

	t.Run("transport error cancels", func(t *testing.T) {
		dest := &tu.MockDestination{SearchErr: shared.ErrAPIRequest}
		e, _ := newTestEngine(&tu.MockSource{}, dest, EngineOptions{Workers: 4})

		if _, _, err := e.resolveFiles(ctx, nil, "Bulk", files); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestSendProgressNonBlocking(t *testing.T) {
	e := NewAlbumEngine(nil, nil, EngineOptions{})
	progress := make(chan ProgressUpdate, 1)

	e.sendProgress(progress, fetchSourceUpdate("a"))
	e.sendProgress(progress, fetchSourceUpdate("b"))
	e.sendProgress(nil, fetchSourceUpdate("c"))

	if got := <-progress; got.Message != fetchSourceUpdate("a").Message {
		t.Errorf("expected first update kept, got %q", got.Message)
	}
	select {
	case u := <-progress:
		t.Errorf("expected dropped update, got %q", u.Message)
	default:
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchSource, "fetch_source"},
		{FetchDest, "fetch_dest"},
		{MatchAlbum, "match_album"},
		{FetchFiles, "fetch_files"},
		{SearchAssets, "search_assets"},
		{AttachAssets, "attach_assets"},
		{Done, "done"},
		{Phase(99), ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.want {
				t.Errorf("Phase.String() = %q, want %q", got, tt.want)
			}
		})
	}
}
