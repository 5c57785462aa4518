package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	S(ctx).Infow("hello", "k", "v")

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}

func TestSWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = SWith(ctx, Stage("sync"), "name", "host.example.com")

	// a derived context.Context still finds the logger through Value
	type key struct{}
	child := context.WithValue(ctx, key{}, 1)
	S(child).Warnw("skip")
	L(child).Info("done")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "sync", fields["stage"])
		assert.Equal(t, "host.example.com", fields["name"])
		assert.Equal(t, "sync", entries[1].ContextMap()["stage"])
	}
}

func TestFallbackToGlobal(t *testing.T) {
	assert.NotNil(t, S(context.Background()))
	assert.NotNil(t, L(context.Background()))
}
