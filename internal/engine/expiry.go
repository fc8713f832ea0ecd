package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/store"
)

// DefaultSweepInterval is how often the sweeper runs unless configured
// otherwise.
const DefaultSweepInterval = 60 * time.Second

// EventDispatcher is an interface for publishing reservation expiry
// notifications from the engine layer without depending on the service
// layer directly.
type EventDispatcher interface {
	DispatchReservationExpired(r *domain.Reservation)
}

// ExpiryManager periodically expires ACTIVE holds whose deadline has
// passed. It takes the same per-product ledger lock as request-driven
// operations, one product at a time.
type ExpiryManager struct {
	interval     time.Duration
	ledgers      *LedgerManager
	reservations *store.ReservationStore
	clock        domain.Clock
	dispatcher   EventDispatcher
	logger       *slog.Logger
}

// NewExpiryManager creates a new ExpiryManager with the given dependencies.
// dispatcher may be nil.
func NewExpiryManager(
	interval time.Duration,
	ledgers *LedgerManager,
	reservations *store.ReservationStore,
	clock domain.Clock,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *ExpiryManager {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryManager{
		interval:     interval,
		ledgers:      ledgers,
		reservations: reservations,
		clock:        clock,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// Start launches a background goroutine that sweeps at the configured
// interval. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep(e.clock.Now())
			}
		}
	}()
}

// Sweep expires every ACTIVE hold with expires_at <= now and returns how
// many it transitioned. Each product's lock is held only while that
// product's stale holds are processed; notifications go out after the
// lock is released.
func (e *ExpiryManager) Sweep(now time.Time) int {
	total := 0
	for _, ledger := range e.ledgers.Snapshot() {
		expired := e.sweepLedger(ledger, now)
		total += len(expired)

		if e.dispatcher != nil {
			for _, r := range expired {
				e.dispatcher.DispatchReservationExpired(r)
			}
		}
	}

	if total > 0 {
		e.logger.Info("reservations expired",
			slog.Int("count", total),
			slog.Time("now", now),
		)
	}
	return total
}

// sweepLedger expires one product's stale holds and returns detached
// copies of the expired reservations.
func (e *ExpiryManager) sweepLedger(ledger *ProductLedger, now time.Time) []*domain.Reservation {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	var expired []*domain.Reservation
	for _, res := range ledger.stale(now) {
		// The ledger only holds ACTIVE reservations; anything else is a
		// stale index entry. Drop it and keep going.
		if res.Status != domain.ReservationStatusActive {
			e.logger.Warn("skipping non-active hold in sweep",
				slog.String("reservation_id", res.ID),
				slog.String("status", string(res.Status)),
			)
			ledger.remove(res)
			continue
		}
		expireHold(ledger, e.reservations, res)
		expired = append(expired, res.Clone())
	}
	return expired
}
