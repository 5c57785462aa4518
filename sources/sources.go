package sources

import (
	"cfsync/config"
	"context"
	"errors"
	"net/netip"
)

// ErrNoAddress is returned when a source answered but no usable address was found.
var ErrNoAddress = errors.New("no IP found in response")

type Interface interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	Typename() string
}

var Sources = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"simple":   newSimple,
	"cf_trace": newCloudflareTrace,
}

// New creates the source described by conf.
func New(ctx context.Context, conf config.IPSource) (Interface, error) {
	create, ok := Sources[conf.Type]
	if !ok {
		return nil, errors.New("unknown source type")
	}
	return create(ctx, conf)
}
