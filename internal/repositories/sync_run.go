package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
)

// ErrRunNotFound is returned when no live run matches an id or prefix.
var ErrRunNotFound = errors.New("sync run not found")

const runColumns = `
	id, sequence, dry_run, status, albums_total, albums_created, files_total,
	assets_attached, unresolved_count, failed_count, error_message, started_at,
	completed_at, created_at, updated_at, deleted_at
`

// SyncRunRepository implements models.Repository[*models.SyncRun] for run history.
//
// Handles run CRUD operations with soft delete support. Issues are written with their run and read separately.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a run and its issues in one transaction with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequenceTx(tx, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	run.SetSequence(sequence)

	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = tx.Exec(query,
		run.ID(),
		sequence,
		run.DryRun,
		string(run.Status),
		run.AlbumsTotal,
		run.AlbumsCreated,
		run.FilesTotal,
		run.AssetsAttached,
		run.Unresolved,
		run.Failed,
		nullString(run.ErrorMessage),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	if err := insertIssues(tx, run.ID(), run.Issues); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	return nil
}

func insertIssues(tx *sql.Tx, runID string, issues []models.SyncIssue) error {
	if len(issues) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO sync_issues (run_id, position, album, file, kind, detail) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer stmt.Close()

	for i, issue := range issues {
		if _, err := stmt.Exec(runID, i, issue.Album, issue.File, string(issue.Kind), issue.Detail); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}
	return nil
}

// Get retrieves a run by ID with its issues, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := r.scan(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if run.Issues, err = r.ListIssues(run.ID()); err != nil {
		return nil, err
	}
	return run, nil
}

// FindByPrefix retrieves the single live run whose id starts with prefix, as printed by the history list
func (r *SyncRunRepository) FindByPrefix(prefix string) (*models.SyncRun, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty run id", shared.ErrInvalidArgument)
	}

	rows, err := r.db.Query(`SELECT id FROM sync_runs WHERE id LIKE ? || '%' AND deleted_at IS NULL LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sync run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return r.Get(ids[0])
	default:
		return nil, fmt.Errorf("%w: run id prefix %q is ambiguous", shared.ErrInvalidArgument, prefix)
	}
}

// Update modifies an existing run's status and counters and replaces its issues
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sync_runs
		SET status = ?, albums_total = ?, albums_created = ?, files_total = ?,
			assets_attached = ?, unresolved_count = ?, failed_count = ?,
			error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		string(run.Status),
		run.AlbumsTotal,
		run.AlbumsCreated,
		run.FilesTotal,
		run.AssetsAttached,
		run.Unresolved,
		run.Failed,
		nullString(run.ErrorMessage),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID())
	}

	if _, err := tx.Exec(`DELETE FROM sync_issues WHERE run_id = ?`, run.ID()); err != nil {
		return fmt.Errorf("failed to clear issues: %w", err)
	}
	if err := insertIssues(tx, run.ID(), run.Issues); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs newest first, excluding soft-deleted runs.
//
// Criteria: "status" (string), "dry_run" (bool), "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if dryRun, ok := criteria["dry_run"].(bool); ok {
		query += " AND dry_run = ?"
		args = append(args, dryRun)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// ListIssues returns a run's issues in the order they were recorded
func (r *SyncRunRepository) ListIssues(runID string) ([]models.SyncIssue, error) {
	rows, err := r.db.Query(`SELECT album, file, kind, detail FROM sync_issues WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []models.SyncIssue
	for rows.Next() {
		var (
			issue  models.SyncIssue
			kind   string
			detail sql.NullString
		)
		if err := rows.Scan(&issue.Album, &issue.File, &kind, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Kind = models.IssueKind(kind)
		issue.Detail = detail.String
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return issues, nil
}

// scan reads one row of runColumns into a [models.SyncRun]
func (r *SyncRunRepository) scan(row rowScanner) (*models.SyncRun, error) {
	var (
		id             string
		sequence       int
		dryRun         bool
		status         string
		albumsTotal    int
		albumsCreated  int
		filesTotal     int
		assetsAttached int
		unresolved     int
		failed         int
		errorMessage   sql.NullString
		startedAt      time.Time
		completedAt    sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &dryRun, &status, &albumsTotal, &albumsCreated, &filesTotal,
		&assetsAttached, &unresolved, &failed, &errorMessage, &startedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	var completed, deleted *time.Time
	if completedAt.Valid {
		completed = &completedAt.Time
	}
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	run := models.RestoreSyncRun(id, sequence, createdAt, updatedAt, startedAt, completed, deleted)
	run.DryRun = dryRun
	run.Status = models.RunStatus(status)
	run.AlbumsTotal = albumsTotal
	run.AlbumsCreated = albumsCreated
	run.FilesTotal = filesTotal
	run.AssetsAttached = assetsAttached
	run.Unresolved = unresolved
	run.Failed = failed
	run.ErrorMessage = errorMessage.String

	return run, nil
}
