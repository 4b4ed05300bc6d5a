// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package websocket pushes live indexing updates to connected browser
// clients. A single Hub fans messages out to every registered Client;
// the hub subscribes to the internal event bus and translates progress
// and thumbnail events into JSON frames:
//
//   - index_progress: a root changed state or advanced through a scan
//   - scan_completed: a root finished a full index cycle
//   - thumb_status:   a photo's thumbnail became ready or failed
//
// Clients are write-mostly. The only inbound frame the hub understands
// is {"type": "ping"}, answered with a pong; everything else is ignored.
// Slow consumers are disconnected rather than allowed to stall the fan-out.
package websocket
