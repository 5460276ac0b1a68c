package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Album   string // Source album being processed, if any
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchDest
	MatchAlbum
	FetchFiles
	SearchAssets
	AttachAssets
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchDest:
		return "fetch_dest"
	case MatchAlbum:
		return "match_album"
	case FetchFiles:
		return "fetch_files"
	case SearchAssets:
		return "search_assets"
	case AttachAssets:
		return "attach_assets"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchSourceUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listing albums on %s...", name),
	}
}

func fetchDestUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listing albums on %s...", name),
	}
}

func resolveAlbumUpdate(step, total int, album string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchAlbum,
		Step:    step,
		Total:   total,
		Album:   album,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, album),
	}
}

func listFilesUpdate(step, total int, album string, files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFiles,
		Step:    step,
		Total:   total,
		Album:   album,
		Message: fmt.Sprintf("[%d/%d] %s: %d files", step, total, album, files),
	}
}

func resolveAssetUpdate(step, total int, album, file string, match *AssetMatch) ProgressUpdate {
	mark := "✗"
	if match != nil {
		mark = "✓"
	}
	return ProgressUpdate{
		Phase:   SearchAssets,
		Step:    step,
		Total:   total,
		Album:   album,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, file),
		Data:    match,
	}
}

func assembleAlbumUpdate(step, total int, album string, ids int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AttachAssets,
		Step:    step,
		Total:   total,
		Album:   album,
		Message: fmt.Sprintf("[%d/%d] %s: attaching %d assets", step, total, album, ids),
	}
}

func doneUpdate(result *SyncResult, err error) ProgressUpdate {
	t := result.Totals()
	msg := fmt.Sprintf("Done: %d albums, %d matched, %d unresolved, %d failed", t.Albums, t.Matched, t.Unresolved, t.Failed)
	if err != nil {
		msg = fmt.Sprintf("Aborted: %v", err)
	}
	return ProgressUpdate{
		Phase:   Done,
		Step:    t.Albums,
		Total:   t.Albums,
		Message: msg,
		Data:    result,
	}
}
