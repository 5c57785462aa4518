package cfsync

import (
	"cfsync/config"
	"cfsync/log"
	"context"
	"errors"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

type Phase int

const (
	Idle Phase = iota
	Syncing
)

func (p Phase) String() string {
	if p == Syncing {
		return "syncing"
	}
	return "idle"
}

// Cycle is the loop state carried from one tick to the next.
type Cycle struct {
	Phase Phase
	// LastKnown is the address of the last completed sync. Invalid until the
	// first sync, which makes any resolved address a change.
	LastKnown netip.Addr
}

type Scheduler struct {
	resolver IPResolver
	engine   SyncEngine
	records  []config.Record
	interval time.Duration
	clock    Clock

	// onPhase, when set, observes every phase transition.
	onPhase func(Phase)
}

func NewScheduler(resolver IPResolver, engine SyncEngine, records []config.Record, interval time.Duration, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		resolver: resolver,
		engine:   engine,
		records:  records,
		interval: interval,
		clock:    clock,
	}
}

func (s *Scheduler) enter(ctx context.Context, c *Cycle, p Phase) {
	log.S(ctx).Debugw("phase", "from", c.Phase, "to", p)
	c.Phase = p
	if s.onPhase != nil {
		s.onPhase(p)
	}
}

// Tick runs one cycle: resolve, and sync all records if the address changed.
// An unresolvable address is treated like an unchanged one.
func (s *Scheduler) Tick(ctx context.Context, c Cycle) Cycle {
	ctx = log.SWith(ctx, log.Stage("cycle"))

	ip, err := s.resolver.Resolve(ctx)
	if err != nil {
		log.S(ctx).Errorw("resolve failed, skip update", zap.Error(err))
		return c
	}

	if c.LastKnown.IsValid() && ip == c.LastKnown {
		log.S(ctx).Infow("IP unchanged", log.IP(ip))
		return c
	}

	if c.LastKnown.IsValid() {
		log.S(ctx).Infow("IP changed", log.IP(ip), "old_ip", c.LastKnown)
	} else {
		log.S(ctx).Infow("first IP resolved", log.IP(ip))
	}

	if len(s.records) == 0 {
		log.S(ctx).Warnw("no records configured, skip update")
		c.LastKnown = ip
		return c
	}

	took := log.Elapsed("took")
	s.enter(ctx, &c, Syncing)
	outcomes := s.engine.Sync(ctx, ip, s.records)

	c.LastKnown = ip
	s.enter(ctx, &c, Idle)

	log.S(ctx).Infow("sync cycle finished", log.IP(ip), "attempted", len(outcomes), took)
	return c
}

// Run ticks every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = log.SWith(ctx, "interval", s.interval, "records", len(s.records))
	log.S(ctx).Infow("scheduler started")

	c := Cycle{Phase: Idle}
	for {
		c = s.Tick(ctx, c)

		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.S(ctx).Infow("scheduler stopped", "last_ip", c.LastKnown)
				return nil
			}
			return err
		}
	}
}
