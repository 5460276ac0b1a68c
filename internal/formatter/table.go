package formatter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Alignment of a table column
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable draws rows under headers with rounded borders. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// SummaryTable renders one row per album plus a totals row.
func SummaryTable(result *tasks.SyncResult) string {
	headers := []string{"Album", "Created", "Files", "Matched", "Unresolved", "Failed"}
	aligns := []Alignment{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight}

	rows := make([][]string, 0, len(result.Albums)+1)
	for _, a := range result.Albums {
		rows = append(rows, []string{
			a.Name,
			yesNo(a.Created),
			strconv.Itoa(a.Files),
			strconv.Itoa(len(a.Matches)),
			strconv.Itoa(len(a.Unresolved)),
			strconv.Itoa(len(a.Failures)),
		})
	}

	t := result.Totals()
	rows = append(rows, []string{
		fmt.Sprintf("Total (%d)", t.Albums),
		strconv.Itoa(t.Created),
		strconv.Itoa(t.Files),
		strconv.Itoa(t.Matched),
		strconv.Itoa(t.Unresolved),
		strconv.Itoa(t.Failed),
	})

	return RenderTable(headers, rows, aligns)
}

// DestinationAlbumsTable lists Immich albums.
func DestinationAlbumsTable(albums []models.DestinationAlbum) string {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{a.Name, a.ID, strconv.Itoa(a.AssetCount)})
	}
	return RenderTable([]string{"Name", "ID", "Assets"}, rows, []Alignment{AlignLeft, AlignLeft, AlignRight})
}

// SourceAlbumsTable lists WebDAV albums.
func SourceAlbumsTable(albums []models.SourceAlbum) string {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{a.Name, a.Path})
	}
	return RenderTable([]string{"Name", "Path"}, rows, nil)
}

// SourceFilesTable lists album members with the original filename used for matching.
func SourceFilesTable(files []models.SourceFile, now time.Time) string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		original, err := f.OriginalName()
		if err != nil {
			original = "(malformed)"
		}
		rows = append(rows, []string{
			f.Name,
			original,
			f.Modified.UTC().Format(time.RFC3339),
			humanize.RelTime(f.Modified, now, "ago", "from now"),
		})
	}
	return RenderTable([]string{"File", "Original", "Modified", ""}, rows, nil)
}

// HistoryTable lists past runs newest first.
func HistoryTable(runs []*models.SyncRun, now time.Time) string {
	headers := []string{"#", "ID", "Started", "Duration", "Status", "Albums", "Files", "Attached", "Unresolved", "Failed"}
	aligns := []Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := string(r.Status)
		if r.DryRun {
			status += " (dry-run)"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence()),
			shared.ShortID(r.ID()),
			humanize.RelTime(r.StartedAt(), now, "ago", "from now"),
			r.Duration().Round(time.Second).String(),
			status,
			strconv.Itoa(r.AlbumsTotal),
			strconv.Itoa(r.FilesTotal),
			strconv.Itoa(r.AssetsAttached),
			strconv.Itoa(r.Unresolved),
			strconv.Itoa(r.Failed),
		})
	}

	return RenderTable(headers, rows, aligns)
}

// IssuesTable lists a run's unresolved and failed files.
func IssuesTable(issues []models.SyncIssue) string {
	rows := make([][]string, 0, len(issues))
	for _, i := range issues {
		rows = append(rows, []string{i.Album, i.File, string(i.Kind), i.Detail})
	}
	return RenderTable([]string{"Album", "File", "Kind", "Detail"}, rows, nil)
}

// SearchTable lists metadata search candidates in server order.
func SearchTable(assets []models.DestinationAsset) string {
	rows := make([][]string, 0, len(assets))
	for i, a := range assets {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.ID,
			a.OriginalFileName,
			a.TakenAt.UTC().Format(time.RFC3339),
			a.DuplicateID,
		})
	}
	return RenderTable([]string{"#", "ID", "Filename", "Taken", "Duplicate"}, rows, []Alignment{AlignRight})
}
