// Package models defines the records exchanged between the album sync components.
//
// The package contains two categories of types:
//
// 1. Transfer records, parsed at the API boundary and rebuilt on every run:
//   - [SourceAlbum] : a Nextcloud album directory and its files
//   - [SourceFile] : one file of a source album with its last-modified time
//   - [DestinationAlbum] : an Immich album
//   - [DestinationAsset] : an Immich asset returned by a metadata search
//   - [MatchResult] : the candidates returned by one search
//   - [AddResult] : the per-asset outcome of adding assets to an album
//
// 2. Persistent entities for the optional run history:
//   - [SyncRun] : one sync invocation with its counters
//   - [SyncIssue] : an unresolved file or a failed attachment within a run
//
// Persistent entities implement the [Model] interface and are stored through a [Repository].
package models
