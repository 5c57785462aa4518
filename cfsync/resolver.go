package cfsync

import (
	"cfsync/config"
	"cfsync/log"
	"cfsync/sources"
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"
)

// ErrResolution is returned when no source produced an address.
var ErrResolution = errors.New("all sources failed")

type IPResolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// Resolver asks its sources in order and returns the first address found.
type Resolver struct {
	sources []sources.Interface
}

func (r *Resolver) Resolve(ctx context.Context) (ip netip.Addr, err error) {
	ctx = log.SWith(ctx, log.Stage("resolve"))

	var errs []error
	for _, source := range r.sources {
		ip, err = source.Lookup(ctx)
		if err != nil {
			log.S(ctx).Debugw("source failed", "source_type", source.Typename(), zap.Error(err))
			errs = append(errs, err)
			continue
		}

		log.S(ctx).Debugw("resolved ip", log.IP(ip), "source_type", source.Typename())
		return ip, nil
	}

	return netip.Addr{}, fmt.Errorf("%w: %w", ErrResolution, errors.Join(errs...))
}

func NewResolver(ctx context.Context, c []config.IPSource) (*Resolver, error) {
	r := &Resolver{}

	for _, s := range c {
		ctx := log.SWith(ctx, log.Stage("init:source"), "type", s.Type, "source", s.Source)

		source, err := sources.New(ctx, s)
		if err != nil {
			log.S(ctx).Errorw("failed creating source", zap.Error(err))
			return nil, fmt.Errorf("failed creating source: %w", err)
		}

		r.sources = append(r.sources, source)
	}

	if len(r.sources) == 0 {
		return nil, fmt.Errorf("no ip source configured")
	}

	return r, nil
}
