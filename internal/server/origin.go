// Package server normalizes and validates HTTP origins for WebSocket and CORS
// requests to enforce configured access control.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// OriginPolicy is the origin allow-list shared by the WebSocket upgrader and
// the CORS middleware.
type OriginPolicy struct {
	log      *slog.Logger
	allowAll bool
	allowed  map[string]struct{}
}

// NewOriginPolicy builds a policy from configured origins. "*" allows any
// origin; invalid entries are logged and ignored.
func NewOriginPolicy(log *slog.Logger, origins []string) *OriginPolicy {
	normalized, allowAll := normalizeOrigins(log, origins)
	return &OriginPolicy{
		log:      log,
		allowAll: allowAll,
		allowed:  lo.SliceToMap(normalized, func(o string) (string, struct{}) { return o, struct{}{} }),
	}
}

func normalizeOrigins(log *slog.Logger, origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return lo.Uniq(normalized), allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// Allowed reports whether the request's Origin header passes the policy.
// With a wildcard policy every request passes, including ones without an
// Origin header (non-browser clients).
func (p *OriginPolicy) Allowed(r *http.Request) bool {
	if p.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalizedOrigin, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	_, exists := p.allowed[normalizedOrigin]
	return exists
}

// CheckOrigin is a websocket.Upgrader CheckOrigin function.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	if p.Allowed(r) {
		return true
	}

	p.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// CORSOrigins returns the allow-list in the form expected by the CORS middleware.
func (p *OriginPolicy) CORSOrigins() []string {
	if p.allowAll {
		return []string{"*"}
	}
	return lo.Keys(p.allowed)
}
