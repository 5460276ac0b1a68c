// Package repositories implements SQLite persistence for the sync run history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SyncRunRepository] : Run summaries and their issues, newest first
//   - [RunRecorder] : Adapter that lets the sync engine open a running row and complete it when the run ends
//
// History is write-only from the sync's point of view: nothing read here influences which albums or assets a later
// run touches.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// They are drawn from a per-table sequence row inside the same transaction as the insert, so a rolled back insert
// does not consume a number.
package repositories
