package cfsync

import (
	"cfsync/audit"
	"cfsync/common"
	"cfsync/config"
	"cfsync/ddns"
	"cfsync/log"
	"context"
	"net/netip"

	"go.uber.org/zap"
)

type SyncEngine interface {
	Sync(ctx context.Context, ip netip.Addr, records []config.Record) []audit.Outcome
}

// Syncer pushes an address to every configured record and audits each attempt.
type Syncer struct {
	provider ddns.Interface
	store    audit.Appender
	clock    Clock
}

func NewSyncer(provider ddns.Interface, store audit.Appender, clock Clock) *Syncer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Syncer{provider: provider, store: store, clock: clock}
}

// Sync upserts every valid record independently. A failure on one record
// never prevents the following ones; invalid records are skipped without an
// outcome.
func (s *Syncer) Sync(ctx context.Context, ip netip.Addr, records []config.Record) []audit.Outcome {
	ctx = log.SWith(ctx, log.Stage("update"), log.IP(ip))

	outcomes := make([]audit.Outcome, 0, len(records))
	for i, record := range records {
		if !record.Valid() {
			log.S(ctx).Warnw("record missing id or name, skipped", "index", i, log.Record(record.RecordID, record.RecordName))
			continue
		}

		outcomes = append(outcomes, s.syncOne(ctx, ip, record))
	}

	return outcomes
}

func (s *Syncer) syncOne(ctx context.Context, ip netip.Addr, record config.Record) audit.Outcome {
	ctx = log.With(ctx, log.Record(record.RecordID, record.RecordName))

	res := s.provider.UpsertRecord(ctx, ddns.Record{
		ID:      record.RecordID,
		Name:    record.RecordName,
		Type:    ddns.RecordTypeA,
		Content: ip.String(),
	})

	outcome := audit.Outcome{
		Timestamp:  s.clock.Now().UTC(),
		IP:         ip.String(),
		RecordName: record.RecordName,
		RecordID:   record.RecordID,
		Status:     res.Status,
		Summary:    res.Summary(),
	}

	switch res.Status {
	case common.StatusSuccess:
		log.S(ctx).Infow("dns record updated", log.Audit)
	case common.StatusFail:
		log.S(ctx).Warnw("provider rejected update", "status_code", res.StatusCode, "response", outcome.Summary, log.Audit)
	default:
		log.S(ctx).Warnw("update request failed", zap.Error(res.Err), log.Audit)
	}

	if err := s.store.Append(ctx, &outcome); err != nil {
		log.S(ctx).Errorw("failed writing audit log", zap.Error(err))
	}

	return outcome
}

// Inspect logs the provider's current view of each record. It never fails.
func (s *Syncer) Inspect(ctx context.Context, records []config.Record) {
	ctx = log.SWith(ctx, log.Stage("init:inspect"))

	for _, record := range records {
		if !record.Valid() {
			continue
		}
		ctx := log.SWith(ctx, log.Record(record.RecordID, record.RecordName))

		found, err := s.provider.FindRecord(ctx, record.RecordName)
		if err != nil {
			log.S(ctx).Warnw("failed read record info", zap.Error(err))
			continue
		}

		matched := false
		for _, r := range found {
			if r.ID == record.RecordID {
				matched = true
				log.S(ctx).Infow("found record", "address", r.Content, "ttl", r.TTL, "proxied", r.Proxied)
			}
		}

		if !matched {
			log.S(ctx).Warnw("no record with configured id found", "candidates", len(found))
		}
	}
}
