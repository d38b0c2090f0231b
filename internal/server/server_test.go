package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServer_Shutdown_WithExpiredDeadline(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, nil)
	s.StartHub()

	// Given a context whose budget is already spent
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	// Then the hub is still given time to finish
	req.NoError(s.Shutdown(ctx))
	req.Zero(s.Hub().ClientCount())
}

func TestServer_Shutdown_WithoutHub(t *testing.T) {
	s := newTestServer(t, nil)

	require.NoError(t, s.Shutdown(context.Background()))
}
