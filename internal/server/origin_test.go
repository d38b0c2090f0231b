package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	policy := NewOriginPolicy(logs.GetLoggerFromLevel(slog.LevelError), []string{"*"})

	require.True(t, policy.CheckOrigin(requestWithOrigin("http://anything.example")))
	require.True(t, policy.CheckOrigin(requestWithOrigin("")))
	require.Equal(t, []string{"*"}, policy.CORSOrigins())
}

func TestOriginPolicy_AllowList(t *testing.T) {
	policy := NewOriginPolicy(logs.GetLoggerFromLevel(slog.LevelError), []string{
		"http://localhost:3000",
		"HTTPS://Chat.Example.com",
		"https://chat.example.com",
		"not-an-origin",
		"",
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://chat.example.com", true},
		{"https://CHAT.example.com", true},
		{"https://chat.example.com/some/path", true},
		{"http://chat.example.com", false},
		{"http://localhost:3001", false},
		{"not-an-origin", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, policy.CheckOrigin(requestWithOrigin(tt.origin)), "origin %q", tt.origin)
	}

	require.ElementsMatch(t, []string{"http://localhost:3000", "https://chat.example.com"}, policy.CORSOrigins())
}

func TestOriginPolicy_EmptyConfigRejectsEverything(t *testing.T) {
	policy := NewOriginPolicy(logs.GetLoggerFromLevel(slog.LevelError), nil)

	require.False(t, policy.Allowed(requestWithOrigin("http://localhost:3000")))
	require.Empty(t, policy.CORSOrigins())
}
