// Package server defines shared response types and utility helpers that are
// reused across client, hub and handler logic.
package server

import "strings"

// Stats is the body served by the /stats endpoint.
type Stats struct {
	Sessions      int    `json:"sessions"`
	Conversations int    `json:"conversations"`
	RSSBytes      uint64 `json:"rss_bytes"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
