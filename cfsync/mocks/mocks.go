// Package mocks holds testify mocks for the interfaces the sync loop depends on.
package mocks

import (
	"cfsync/audit"
	"cfsync/config"
	"cfsync/ddns"
	"context"
	"net/netip"

	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockIPResolver mocks cfsync.IPResolver.
type MockIPResolver struct {
	mock.Mock
}

func NewMockIPResolver(t testingT) *MockIPResolver {
	m := &MockIPResolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIPResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	args := m.Called(ctx)
	return args.Get(0).(netip.Addr), args.Error(1)
}

// MockSyncEngine mocks cfsync.SyncEngine.
type MockSyncEngine struct {
	mock.Mock
}

func NewMockSyncEngine(t testingT) *MockSyncEngine {
	m := &MockSyncEngine{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSyncEngine) Sync(ctx context.Context, ip netip.Addr, records []config.Record) []audit.Outcome {
	args := m.Called(ctx, ip, records)
	if out, ok := args.Get(0).([]audit.Outcome); ok {
		return out
	}
	return nil
}

// MockProvider mocks ddns.Interface.
type MockProvider struct {
	mock.Mock
}

func NewMockProvider(t testingT) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProvider) FindRecord(ctx context.Context, name string) ([]ddns.Record, error) {
	args := m.Called(ctx, name)
	if out, ok := args.Get(0).([]ddns.Record); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) UpsertRecord(ctx context.Context, r ddns.Record) ddns.Result {
	args := m.Called(ctx, r)
	return args.Get(0).(ddns.Result)
}

// MockAppender mocks audit.Appender.
type MockAppender struct {
	mock.Mock
}

func NewMockAppender(t testingT) *MockAppender {
	m := &MockAppender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAppender) Append(ctx context.Context, o *audit.Outcome) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}
