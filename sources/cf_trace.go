package sources

import (
	"cfsync/common"
	"cfsync/config"
	"cfsync/log"
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxReadCloudflareTrace = 1024
const defaultCloudflareDomain = "https://www.cloudflare.com"

// cloudflareTrace reads the "ip=" line of a Cloudflare /cdn-cgi/trace page.
type cloudflareTrace struct {
	config.IPSourceCloudflareTraceConfig `mapstructure:",squash"`

	base string
}

func (s *cloudflareTrace) Typename() string {
	return "cf_trace"
}

func (s *cloudflareTrace) wrapDialer(upstream transportDialer) transportDialer {
	upstream = familyDialer(s.Type)(upstream)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if s.ForceAddress != "" {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			addr = net.JoinHostPort(s.ForceAddress, port)
		}

		return upstream(ctx, network, addr)
	}
}

func (s *cloudflareTrace) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := time.Duration(s.Timeout)

	client, err := wrapClientDialer(ctx, common.HTTPClient(ctx), s.wrapDialer)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx,
		"base", s.base,
		"family", s.Type,
		"force_addr", s.ForceAddress,
		"timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := fetch(tCtx, client, s.base+"/cdn-cgi/trace", maxReadCloudflareTrace)
	if err != nil {
		return netip.Addr{}, err
	}

	ipString := ""
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ip=") {
			ipString = strings.TrimSpace(strings.TrimPrefix(line, "ip="))
			break
		}
	}

	if ipString == "" {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, ErrNoAddress
	}

	ip, err := netip.ParseAddr(ipString)
	if err != nil {
		log.S(ctx).Warnw("found bad IP", "ip", ipString, zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`found bad IP: %w`, err)
	}

	return checkFamily(ctx, ip)
}

func newCloudflareTrace(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "cf_trace")

	s := &cloudflareTrace{base: strings.TrimSuffix(config.Source, "/")}
	s.Timeout = common.Duration(defaultTimeout)

	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if err := requireIPv4(s.Type); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.base == "" {
		s.base = defaultCloudflareDomain
	}

	return s, nil
}
