// Package services defines the [Source] and [Destination] interfaces for the two systems an album sync spans and
// implements them for Nextcloud and Immich.
//
// # Source
//
// [WebDAVService] reads a Nextcloud photos share through gowebdav. Each collection under the root is an album and
// each file inside it is a member. Member basenames are stored as "<id>-<original name>" and the last-modified
// property is the capture time used for matching.
//
// # Destination
//
// [ImmichService] calls the Immich REST API with a static x-api-key header. Requests are paced by an optional
// [rate.Limiter] and bounded by the HTTP client timeout.
//
// Endpoints used:
//   - GET  /api/albums
//   - GET  /api/albums/{id}
//   - POST /api/albums
//   - PUT  /api/albums/{id}/assets
//   - POST /api/search/metadata
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : transport failure or non-2xx status
//   - [shared.ErrMalformedResponse] : body could not be decoded or lacks required fields
//   - [shared.ErrInvalidArgument] : empty album id
//
// Responses are converted to models types at this boundary so nothing past it handles raw JSON.
package services
