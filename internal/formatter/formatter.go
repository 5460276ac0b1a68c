// package formatter renders sync results and run history as tables, CSV, JSON, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corsac-s/immich-tools/internal/tasks"
)

// Row status values used in file-level reports
const (
	StatusMatched    = "matched"
	StatusUnresolved = "unresolved"
	StatusFailed     = "failed"
)

// FileRow is one source file's outcome in a report.
type FileRow struct {
	Album   string `json:"album"`
	File    string `json:"file"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// AlbumReport summarizes one album in a report.
type AlbumReport struct {
	Name       string `json:"name"`
	ID         string `json:"id,omitempty"`
	Created    bool   `json:"created"`
	Files      int    `json:"files"`
	Matched    int    `json:"matched"`
	Unresolved int    `json:"unresolved"`
	Failed     int    `json:"failed"`
}

// Report is the serializable form of a [tasks.SyncResult].
type Report struct {
	RunID       string        `json:"run_id,omitempty"`
	DryRun      bool          `json:"dry_run"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Totals      tasks.Totals  `json:"totals"`
	Albums      []AlbumReport `json:"albums"`
	Files       []FileRow     `json:"files"`
}

// Rows flattens result into one row per file: matches first, then unresolved files, per album.
//
// A matched file whose add failed is reported as failed with the server's error.
func Rows(result *tasks.SyncResult) []FileRow {
	var rows []FileRow
	for _, album := range result.Albums {
		failed := make(map[string]string, len(album.Failures))
		for _, f := range album.Failures {
			failed[f.ID] = f.Error
		}

		for _, m := range album.Matches {
			row := FileRow{
				Album:   album.Name,
				File:    m.File.Name,
				Status:  StatusMatched,
				AssetID: m.Asset.ID,
				Phase:   string(m.Phase),
			}
			if reason, ok := failed[m.Asset.ID]; ok {
				row.Status = StatusFailed
				row.Detail = reason
			}
			rows = append(rows, row)
		}

		for _, u := range album.Unresolved {
			row := FileRow{Album: album.Name, File: u.File.Name, Status: StatusUnresolved}
			if u.Err != nil {
				row.Detail = u.Err.Error()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// NewReport builds the serializable report for result.
func NewReport(result *tasks.SyncResult) Report {
	report := Report{
		RunID:       result.RunID,
		DryRun:      result.DryRun,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Totals:      result.Totals(),
		Albums:      make([]AlbumReport, 0, len(result.Albums)),
		Files:       Rows(result),
	}
	for _, a := range result.Albums {
		ar := AlbumReport{
			Name:       a.Name,
			Created:    a.Created,
			Files:      a.Files,
			Matched:    len(a.Matches),
			Unresolved: len(a.Unresolved),
			Failed:     len(a.Failures),
		}
		if a.Destination != nil {
			ar.ID = a.Destination.ID
		}
		report.Albums = append(report.Albums, ar)
	}
	if report.Files == nil {
		report.Files = []FileRow{}
	}
	return report
}

// ExportToCSV converts a SyncResult to CSV format with columns: Album, File, Status, AssetID, Phase, Detail
func ExportToCSV(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Album", "File", "Status", "AssetID", "Phase", "Detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range Rows(result) {
		record := []string{row.Album, row.File, row.Status, row.AssetID, row.Phase, row.Detail}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a SyncResult to indented JSON
func ExportToJSON(result *tasks.SyncResult) ([]byte, error) {
	data, err := json.MarshalIndent(NewReport(result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToMarkdown converts a SyncResult to Markdown with one section per album
func ExportToMarkdown(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	t := result.Totals()

	buf.WriteString("# Album sync\n\n")
	if result.DryRun {
		buf.WriteString("**Mode**: dry-run\n")
	}
	buf.WriteString(fmt.Sprintf("**Albums**: %d (%d created)\n", t.Albums, t.Created))
	buf.WriteString(fmt.Sprintf("**Files**: %d, %d matched, %d unresolved, %d failed\n", t.Files, t.Matched, t.Unresolved, t.Failed))

	rows := Rows(result)
	for _, album := range result.Albums {
		buf.WriteString(fmt.Sprintf("\n## %s\n\n", album.Name))
		n := 0
		for _, row := range rows {
			if row.Album != album.Name || row.Status == StatusMatched {
				continue
			}
			n++
			buf.WriteString(fmt.Sprintf("%d. %s [%s]", n, row.File, row.Status))
			if row.Detail != "" {
				buf.WriteString(": " + row.Detail)
			}
			buf.WriteString("\n")
		}
		if n == 0 {
			buf.WriteString("All files matched.\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText lists unresolved and failed files, one per line
func ExportToText(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range Rows(result) {
		if row.Status == StatusMatched {
			continue
		}
		buf.WriteString(fmt.Sprintf("%s\t%s/%s", row.Status, row.Album, row.File))
		if row.Detail != "" {
			buf.WriteString("\t" + row.Detail)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// WriteReport writes result to path in the format implied by its extension: .json, .csv or .md.
// Any other extension gets the plain text report.
func WriteReport(result *tasks.SyncResult, path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = ExportToJSON(result)
	case ".csv":
		data, err = ExportToCSV(result)
	case ".md", ".markdown":
		data, err = ExportToMarkdown(result)
	default:
		data, err = ExportToText(result)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
