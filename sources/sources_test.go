package sources

import (
	"cfsync/config"
	"cfsync/log"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSimpleLookup(t *testing.T) {
	ctx := log.Nop(context.Background())

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "plain", status: http.StatusOK, body: "5.6.7.8", want: "5.6.7.8"},
		{name: "trailing newline", status: http.StatusOK, body: "1.2.3.4\n", want: "1.2.3.4"},
		{name: "mapped", status: http.StatusOK, body: "::ffff:9.9.9.9", want: "9.9.9.9"},
		{name: "not an address", status: http.StatusOK, body: "<html>oops</html>", wantErr: true},
		{name: "wrong family", status: http.StatusOK, body: "2001:db8::1", wantErr: true},
		{name: "server error", status: http.StatusBadGateway, body: "1.2.3.4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(ctx, config.IPSource{Type: "simple", Source: serve(t, tt.status, tt.body)})
			require.NoError(t, err)
			assert.Equal(t, "simple", s.Typename())

			ip, err := s.Lookup(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, ip.IsValid())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, netip.MustParseAddr(tt.want), ip)
		})
	}
}

func TestSimpleUnreachable(t *testing.T) {
	ctx := log.Nop(context.Background())
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := New(ctx, config.IPSource{Type: "simple", Source: url, Config: map[string]any{"timeout": "1s"}})
	require.NoError(t, err)

	_, err = s.Lookup(ctx)
	assert.ErrorContains(t, err, "connection failed")
}

func TestCloudflareTrace(t *testing.T) {
	ctx := log.Nop(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cdn-cgi/trace", r.URL.Path)
		io.WriteString(w, "fl=1\nh=www.cloudflare.com\nip=203.0.113.7\nts=1\n")
	}))
	defer srv.Close()

	s, err := New(ctx, config.IPSource{Type: "cf_trace", Source: srv.URL, Config: map[string]any{"type": "ipv4"}})
	require.NoError(t, err)

	ip, err := s.Lookup(ctx)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.7"), ip)
}

func TestNewBadConfig(t *testing.T) {
	ctx := log.Nop(context.Background())

	_, err := New(ctx, config.IPSource{Type: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = New(ctx, config.IPSource{Type: "simple", Source: "http://x", Config: map[string]any{"type": "ipv5"}})
	assert.Error(t, err)

	_, err = New(ctx, config.IPSource{Type: "simple"})
	assert.Error(t, err)
}

func TestNewRefusesIPv6(t *testing.T) {
	ctx := log.Nop(context.Background())

	for _, typ := range []string{"simple", "cf_trace"} {
		_, err := New(ctx, config.IPSource{Type: typ, Source: "http://x", Config: map[string]any{"type": "ipv6"}})
		assert.ErrorContains(t, err, "only IPv4", typ)

		_, err = New(ctx, config.IPSource{Type: typ, Source: "http://x", Config: map[string]any{"type": "ipv4"}})
		assert.NoError(t, err, typ)
	}
}
