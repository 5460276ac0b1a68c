// Package tasks orchestrates the Nextcloud → Immich album sync with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines four operations:
//
//  1. [SyncEngine.Run] : Full sync
//     - Lists source albums and rejects duplicate names
//     - Lists destination albums once
//     - Resolves, lists, matches and attaches one album at a time
//     - Returns per-album results including unresolved files and failed adds
//
//  2. [SyncEngine.ResolveAlbum] : Find a destination album by exact name or create it
//
//  3. [SyncEngine.ResolveAsset] : Two-phase windowed search
//     - Searches by original filename within the narrow window of the modification time
//     - Falls back to the wide window only when the first search is empty
//     - Takes the first candidate in server order
//
//  4. [SyncEngine.AssembleAlbum] : One bulk add per album, "duplicate" results tolerated
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Concurrency
//
// Asset searches within one album run on an errgroup limited to [EngineOptions.Workers]. Outcomes are slotted by source
// index so the attach request keeps source order. Albums are always processed one after another.
//
// # Run History
//
// The optional [Recorder] interface persists each finished run. Recording failures are logged and ignored.
//
// # Implementation
//
// [AlbumEngine] implements [SyncEngine] with dependencies on:
//   - [services.Source] : Nextcloud WebDAV lister
//   - [services.Destination] : Immich API client
//   - [Recorder] : Optional persistence layer (repositories.RunRecorder)
package tasks
