// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for album sync:
//  1. [AlbumListView] : Browse source albums and pick one, or all of them
//  2. [ConfirmView] : Confirm the sync
//  3. [SyncView] : Spinner and progress bar fed by the engine's progress channel
//  4. [ResultView] : Totals plus unresolved files and failed attachments
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// [NewSyncModel] skips the picker and starts at [SyncView] when albums were chosen on the command line.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, a, esc, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
