package cfsync

import (
	"cfsync/config"
	"cfsync/log"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipServer(t *testing.T, status int, body string) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestResolverFallsThroughSources(t *testing.T) {
	ctx := log.Nop(context.Background())

	r, err := NewResolver(ctx, []config.IPSource{
		{Type: "simple", Source: ipServer(t, http.StatusServiceUnavailable, "")},
		{Type: "simple", Source: ipServer(t, http.StatusOK, "5.6.7.8\n")},
	})
	require.NoError(t, err)

	ip, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, ipB, ip)
}

func TestResolverAllFail(t *testing.T) {
	ctx := log.Nop(context.Background())

	r, err := NewResolver(ctx, []config.IPSource{
		{Type: "simple", Source: ipServer(t, http.StatusOK, "not an ip")},
	})
	require.NoError(t, err)

	ip, err := r.Resolve(ctx)
	assert.True(t, errors.Is(err, ErrResolution))
	assert.False(t, ip.IsValid())
}

func TestNewResolverErrors(t *testing.T) {
	ctx := log.Nop(context.Background())

	_, err := NewResolver(ctx, nil)
	assert.Error(t, err)

	_, err = NewResolver(ctx, []config.IPSource{{Type: "unknown", Source: "x"}})
	assert.Error(t, err)
}
