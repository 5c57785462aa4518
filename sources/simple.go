package sources

import (
	"bytes"
	"cfsync/common"
	"cfsync/config"
	"cfsync/log"
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

const maxReadSimple = 4 * 1024

// simple asks a "what is my IP" service that answers with the address as plain text.
type simple struct {
	config.IPSourceSimpleConfig `mapstructure:",squash"`

	url string
}

func (s *simple) Typename() string {
	return "simple"
}

func (s *simple) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := time.Duration(s.Timeout)

	log.S(ctx).Debug("patching http.Client")

	client, err := wrapClientDialer(ctx, common.HTTPClient(ctx), familyDialer(s.Type))
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.url, "family", s.Type, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := fetch(tCtx, client, s.url, maxReadSimple)
	if err != nil {
		return netip.Addr{}, err
	}

	ip, ok := parseText(data)
	if !ok {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, ErrNoAddress
	}

	return checkFamily(ctx, ip)
}

// parseText returns the first whitespace separated token of data that parses as an address.
func parseText(data []byte) (netip.Addr, bool) {
	for _, field := range bytes.Fields(data) {
		if ip, err := netip.ParseAddr(string(field)); err == nil {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

func newSimple(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "simple")

	s := &simple{url: config.Source}
	s.Timeout = common.Duration(defaultTimeout)
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if err := requireIPv4(s.Type); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.url == "" {
		log.S(ctx).Errorw("missing source url")
		return nil, fmt.Errorf(`bad config: missing source url`)
	}

	return s, nil
}
