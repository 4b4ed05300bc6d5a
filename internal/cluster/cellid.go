// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cluster

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// encodeCellID packs (zoom, x, y) into an opaque URL-safe token. Clients
// hand the token back verbatim to list a cluster's members; they never
// parse it.
func encodeCellID(zoom, x, y int) string {
	raw := fmt.Sprintf("%d/%d/%d", zoom, x, y)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCellID unpacks a cell token. The error only reports that the token
// is malformed; range checks against the live zoom limits are the caller's.
func decodeCellID(id string) (zoom, x, y int, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode cell id: %w", err)
	}
	parts := strings.Split(string(raw), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("decode cell id: want 3 fields, got %d", len(parts))
	}
	zoom, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode cell id zoom: %w", err)
	}
	x, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode cell id x: %w", err)
	}
	y, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode cell id y: %w", err)
	}
	return zoom, x, y, nil
}
