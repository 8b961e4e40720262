// Package syncer mirrors the registry to the external store and the local
// counters store.
//
// The store has no incremental primitive: every save overwrites a whole
// table from the current in-memory snapshot. Memory is authoritative. When
// a save keeps failing the mutation stays in memory, the store is left
// stale and the operator is told; the next successful save (or a reload at
// boot) reconciles them.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
)

// Store is the external two-table store.
type Store interface {
	ReadRegistrations(ctx context.Context) ([]model.RegistrationRecord, error)
	WriteRegistrations(ctx context.Context, records []model.RegistrationRecord) error
	ReadRooms(ctx context.Context) (model.RoomSheet, error)
	WriteRooms(ctx context.Context, sheet model.RoomSheet) error
}

// CounterStore persists the local counters structure wholesale.
type CounterStore interface {
	Load(ctx context.Context) (model.Counters, error)
	Save(ctx context.Context, c model.Counters) error
}

// Operator receives failures that need human attention.
type Operator interface {
	Alert(ctx context.Context, message string)
}

// Target selects what a save writes.
type Target uint32

const (
	TargetRegistrations Target = 1 << iota
	TargetRooms
	TargetCounters

	TargetAll = TargetRegistrations | TargetRooms | TargetCounters
)

func (t Target) String() string {
	var parts []string
	if t&TargetRegistrations != 0 {
		parts = append(parts, "registrations")
	}
	if t&TargetRooms != 0 {
		parts = append(parts, "rooms")
	}
	if t&TargetCounters != 0 {
		parts = append(parts, "counters")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Syncer is the sync layer.
type Syncer struct {
	reg      *registry.Registry
	store    Store
	counters CounterStore
	operator Operator
	policy   retry.Policy
	log      *zap.Logger

	// saveMu keeps two saves of the same table from interleaving.
	saveMu sync.Mutex

	pending atomic.Uint32
	wake    chan struct{}

	// held lists targets whose startup load failed. Saving them would
	// overwrite the store with partial memory.
	held atomic.Uint32
}

// New constructs a Syncer. Run must be started for Schedule to have any
// effect.
func New(reg *registry.Registry, store Store, counters CounterStore, operator Operator, policy retry.Policy, log *zap.Logger) *Syncer {
	return &Syncer{
		reg:      reg,
		store:    store,
		counters: counters,
		operator: operator,
		policy:   policy,
		log:      log,
		wake:     make(chan struct{}, 1),
	}
}

// Load replaces the registry with the stored state: counters first, then
// registrations, then rooms (rooms resolve names against registrations).
// Each part is retried on its own; a part that cannot be read leaves the
// corresponding registry state empty and is held: Save skips it until the
// process restarts. Rooms are held with registrations, since they cannot
// be resolved without them.
func (s *Syncer) Load(ctx context.Context) error {
	var (
		errs []error
		held Target
	)

	err := s.policy.Do(ctx, func(attempt int) error {
		c, err := s.counters.Load(ctx)
		if err != nil {
			s.logAttempt("load counters", attempt, err)
			return err
		}
		s.reg.RestoreCounters(c)
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("load counters: %w", err))
		held |= TargetCounters
	}

	err = s.policy.Do(ctx, func(attempt int) error {
		records, err := s.store.ReadRegistrations(ctx)
		if err != nil {
			s.logAttempt("load registrations", attempt, err)
			return err
		}
		n := s.reg.RestoreRegistrations(records)
		s.log.Info("registrations loaded", zap.Int("count", n))
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("load registrations: %w", err))
		held |= TargetRegistrations | TargetRooms
	}

	err = s.policy.Do(ctx, func(attempt int) error {
		sheet, err := s.store.ReadRooms(ctx)
		if err != nil {
			s.logAttempt("load rooms", attempt, err)
			return err
		}
		if dropped := s.reg.RestoreRooms(sheet); len(dropped) > 0 {
			s.log.Warn("room occupants dropped during load", zap.Strings("names", dropped))
		}
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("load rooms: %w", err))
		held |= TargetRooms
	}

	if err := errors.Join(errs...); err != nil {
		s.held.Store(uint32(held))
		s.operator.Alert(ctx, fmt.Sprintf(
			"startup load failed: %v. Saving %s is disabled until restart so the store is not overwritten.",
			err, held))
		return fmt.Errorf("%w: %w", model.ErrExternalStore, err)
	}
	return nil
}

// Save writes the selected targets now, retrying each with backoff. A
// failing target does not stop the others. The registry is never rolled
// back. Targets held by a failed Load are skipped.
func (s *Syncer) Save(ctx context.Context, targets Target) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if skipped := targets & Target(s.held.Load()); skipped != 0 {
		s.log.Warn("save skipped, store was not loaded", zap.Stringer("targets", skipped))
		targets &^= skipped
	}

	var errs []error
	if targets&TargetRegistrations != 0 {
		errs = append(errs, s.saveOne(ctx, "registrations", func() error {
			return s.store.WriteRegistrations(ctx, s.reg.RegistrationRecords())
		}))
	}
	if targets&TargetRooms != 0 {
		errs = append(errs, s.saveOne(ctx, "rooms", func() error {
			return s.store.WriteRooms(ctx, s.reg.RoomSheet())
		}))
	}
	if targets&TargetCounters != 0 {
		errs = append(errs, s.saveOne(ctx, "counters", func() error {
			return s.counters.Save(ctx, s.reg.Counters())
		}))
	}
	return errors.Join(errs...)
}

// saveOne takes a fresh snapshot on every attempt so a retry never writes
// older data than memory holds.
func (s *Syncer) saveOne(ctx context.Context, what string, write func() error) error {
	err := s.policy.Do(ctx, func(attempt int) error {
		if err := write(); err != nil {
			s.logAttempt("save "+what, attempt, err)
			return err
		}
		return nil
	})
	if err != nil {
		s.log.Error("save failed, store left stale", zap.String("target", what), zap.Error(err))
		s.operator.Alert(ctx, fmt.Sprintf("saving %s failed: %v", what, err))
		return fmt.Errorf("save %s: %w: %w", what, model.ErrExternalStore, err)
	}
	s.log.Debug("saved", zap.String("target", what))
	return nil
}

func (s *Syncer) logAttempt(op string, attempt int, err error) {
	s.log.Warn(op+" failed",
		zap.Int("attempt", attempt+1),
		zap.Int("attempts", max(s.policy.Attempts, 1)),
		zap.Error(err),
	)
}
