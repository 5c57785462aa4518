package sources

import (
	"cfsync/common"
	"cfsync/log"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"reflect"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

type transportDialer func(ctx context.Context, network, addr string) (net.Conn, error)

func wrapClientDialer(ctx context.Context, client *http.Client, wrapperBuilder func(upstream transportDialer) transportDialer) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	transport := http.DefaultTransport.(*http.Transport)
	if client.Transport != nil {
		t, ok := client.Transport.(*http.Transport)
		if !ok {
			log.S(ctx).Errorw("found unknown custom http.Client.Transport",
				"transport_type", reflect.TypeOf(client.Transport).String())
			return nil, fmt.Errorf("unknown custom http.Client.Transport")
		}

		transport = t
	}

	transport = transport.Clone()
	transport.DialContext = wrapperBuilder(transport.DialContext)

	if transport.DialTLSContext != nil {
		transport.DialTLSContext = wrapperBuilder(transport.DialTLSContext)
	}

	clientCopy := *client
	clientCopy.Transport = transport
	return &clientCopy, nil
}

// familyDialer pins outbound connections to the requested address family.
func familyDialer(family common.Family) func(upstream transportDialer) transportDialer {
	return func(upstream transportDialer) transportDialer {
		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			if family == common.IPv4 {
				network += "4"
			}

			return upstream(ctx, network, addr)
		}
	}
}

// fetch performs one GET and returns at most limit bytes of a 200 response body.
func fetch(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return nil, fmt.Errorf("new request failed: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return nil, fmt.Errorf(`connection failed: %w`, err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.S(ctx).Warnw("unexpected status", "status", resp.Status)
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return nil, fmt.Errorf(`failed receiving response: %w`, err)
	}

	return data, nil
}

// requireIPv4 refuses source configs asking for another family: only A
// records are published.
func requireIPv4(family common.Family) error {
	if family != common.IPv4 {
		return fmt.Errorf("unsupported family %s: only IPv4 sources are supported", family)
	}
	return nil
}

// checkFamily normalises ip and rejects zoned or non-IPv4 addresses.
func checkFamily(ctx context.Context, ip netip.Addr) (netip.Addr, error) {
	switch {
	case ip.Zone() != "":
		log.S(ctx).Warnw("found zone in IP", log.IP(ip), "zone", ip.Zone())
		return netip.Addr{}, fmt.Errorf(`unsupported: found zone in IP`)

	case ip.Is4() || ip.Is4In6():
		return ip.Unmap(), nil

	default:
		log.S(ctx).Warnw("mismatched IP family", log.IP(ip))
		return netip.Addr{}, fmt.Errorf(`mismatched IP family`)
	}
}
