package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/store"
)

// DefaultHoldDuration is how long a hold lasts unless configured otherwise.
const DefaultHoldDuration = 15 * time.Minute

// Catalog is the read-mostly product source the engine reserves against.
// DecrementStock is only ever called with the product's ledger lock held.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	DecrementStock(ctx context.Context, id string, qty int64) (int64, error)
}

// CreateRequest describes a new hold.
type CreateRequest struct {
	ProductID    string
	Quantity     int64
	SalesChannel domain.SalesChannel
	Metadata     map[string]any
}

// ReleaseResult is the outcome of a release. For an already EXPIRED or
// RELEASED reservation the call is a no-op and PriorStatus equals the
// reservation's current status.
type ReleaseResult struct {
	Reservation *domain.Reservation
	PriorStatus domain.ReservationStatus
	WasLive     bool // the hold still counted against availability
}

// Released reports whether this call performed the transition.
func (r *ReleaseResult) Released() bool {
	return r.PriorStatus == domain.ReservationStatusActive
}

// Availability is the sellable quantity of a product at CheckedAt.
type Availability struct {
	ProductID        string
	AvailabilityType domain.AvailabilityType
	Quantity         *int64 // nil unless STOCK
	EstimatedDays    *int
	Available        bool
	CheckedAt        time.Time
}

// Reserver places, confirms and releases holds. All work on a product's
// holds and stock happens under that product's ledger lock, which makes
// the operations serializable per product without a global lock.
type Reserver struct {
	ledgers        *LedgerManager
	catalog        Catalog
	reservations   *store.ReservationStore
	clock          domain.Clock
	holdDuration   time.Duration
	catalogTimeout time.Duration
	logger         *slog.Logger
}

// NewReserver creates a Reserver. A zero holdDuration falls back to
// DefaultHoldDuration; a zero catalogTimeout disables the per-call
// catalog deadline.
func NewReserver(
	ledgers *LedgerManager,
	catalog Catalog,
	reservations *store.ReservationStore,
	clock domain.Clock,
	holdDuration time.Duration,
	catalogTimeout time.Duration,
	logger *slog.Logger,
) *Reserver {
	if holdDuration <= 0 {
		holdDuration = DefaultHoldDuration
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reserver{
		ledgers:        ledgers,
		catalog:        catalog,
		reservations:   reservations,
		clock:          clock,
		holdDuration:   holdDuration,
		catalogTimeout: catalogTimeout,
		logger:         logger,
	}
}

// HoldDuration returns how long new holds last.
func (r *Reserver) HoldDuration() time.Duration {
	return r.holdDuration
}

// Create validates req and, if enough stock is free, inserts an ACTIVE
// hold expiring HoldDuration from now. The availability check and the
// insert happen under one ledger lock.
func (r *Reserver) Create(ctx context.Context, req CreateRequest) (*domain.Reservation, error) {
	if req.ProductID == "" {
		return nil, &domain.ValidationError{Message: "product_id is required"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if !req.SalesChannel.Valid() {
		return nil, &domain.ValidationError{
			Message: "sales_channel must be one of: IN_STORE, ONLINE, PHONE",
		}
	}

	ctx, cancel := r.catalogContext(ctx)
	defer cancel()

	product, err := r.lookup(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Reservable() {
		return nil, domain.ErrNotReservable
	}

	ledger := r.ledgers.GetOrCreate(req.ProductID)
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	// Stock may have dropped between the lookup and taking the lock.
	product, err = r.lookup(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	available := max(0, product.StockQuantity-ledger.liveReserved(now))
	if available < req.Quantity {
		return nil, &domain.InsufficientStockError{
			Requested: req.Quantity,
			Available: available,
		}
	}

	res := &domain.Reservation{
		ID:           uuid.New().String(),
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		Status:       domain.ReservationStatusActive,
		SalesChannel: req.SalesChannel,
		Metadata:     maps.Clone(req.Metadata),
		CreatedAt:    now,
		ExpiresAt:    now.Add(r.holdDuration),
	}
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	r.reservations.Create(res)
	ledger.insert(res)

	r.logger.Info("reservation created",
		slog.String("reservation_id", res.ID),
		slog.String("product_id", res.ProductID),
		slog.Int64("quantity", res.Quantity),
		slog.Time("expires_at", res.ExpiresAt),
	)
	return res.Clone(), nil
}

// Confirm turns an ACTIVE hold into a sale: it decrements the product's
// stock by the held quantity and marks the reservation CONFIRMED. A hold
// whose deadline has been reached is expired instead and
// domain.ErrReservationExpired is returned.
func (r *Reserver) Confirm(ctx context.Context, reservationID, saleID, confirmedBy string) (*domain.Reservation, error) {
	res, err := r.reservations.Get(reservationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.catalogContext(ctx)
	defer cancel()

	ledger := r.ledgers.GetOrCreate(res.ProductID)
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	if res.Status != domain.ReservationStatusActive {
		return nil, &domain.InvalidStateError{Status: res.Status, Op: "confirm"}
	}

	now := r.clock.Now()
	if !res.ExpiresAt.After(now) {
		expireHold(ledger, r.reservations, res)
		r.logger.Info("reservation expired on confirm",
			slog.String("reservation_id", res.ID),
			slog.Time("expires_at", res.ExpiresAt),
		)
		return nil, domain.ErrReservationExpired
	}

	// Decrement first so a catalog failure leaves the hold ACTIVE.
	stock, err := r.catalog.DecrementStock(ctx, res.ProductID, res.Quantity)
	if err != nil {
		return nil, fmt.Errorf("decrement stock for %s: %w", res.ProductID, err)
	}

	r.reservations.Transition(res, domain.ReservationStatusConfirmed, func(res *domain.Reservation) {
		res.SaleID = saleID
		res.ConfirmedBy = confirmedBy
		res.ConfirmedAt = &now
	})
	ledger.remove(res)

	r.logger.Info("reservation confirmed",
		slog.String("reservation_id", res.ID),
		slog.String("product_id", res.ProductID),
		slog.String("sale_id", saleID),
		slog.Int64("quantity", res.Quantity),
		slog.Int64("stock", stock),
	)
	return res.Clone(), nil
}

// Release returns an ACTIVE hold's quantity to the pool. Releasing an
// EXPIRED or RELEASED reservation is a no-op; releasing a CONFIRMED one
// fails with domain.ErrInvalidState. Stock is never touched.
func (r *Reserver) Release(ctx context.Context, reservationID string) (*ReleaseResult, error) {
	res, err := r.reservations.Get(reservationID)
	if err != nil {
		return nil, err
	}

	ledger := r.ledgers.GetOrCreate(res.ProductID)
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	prior := res.Status
	switch prior {
	case domain.ReservationStatusConfirmed:
		return nil, &domain.InvalidStateError{Status: prior, Op: "release"}
	case domain.ReservationStatusExpired, domain.ReservationStatusReleased:
		return &ReleaseResult{Reservation: res.Clone(), PriorStatus: prior}, nil
	}

	now := r.clock.Now()
	wasLive := res.ExpiresAt.After(now)
	r.reservations.Transition(res, domain.ReservationStatusReleased, func(res *domain.Reservation) {
		res.ReleasedAt = &now
	})
	ledger.remove(res)

	r.logger.Info("reservation released",
		slog.String("reservation_id", res.ID),
		slog.String("product_id", res.ProductID),
		slog.Bool("was_active", wasLive),
	)
	return &ReleaseResult{Reservation: res.Clone(), PriorStatus: prior, WasLive: wasLive}, nil
}

// Get returns a detached copy of a reservation.
func (r *Reserver) Get(reservationID string) (*domain.Reservation, error) {
	return r.reservations.Snapshot(reservationID)
}

// Availability computes how much of a product a new hold could take right
// now. Holds whose deadline has passed are excluded even before the
// sweeper expires them. Non-STOCK products are always available and
// carry no quantity.
func (r *Reserver) Availability(ctx context.Context, productID string) (*Availability, error) {
	ctx, cancel := r.catalogContext(ctx)
	defer cancel()

	product, err := r.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !product.Reservable() {
		return &Availability{
			ProductID:        product.ID,
			AvailabilityType: product.AvailabilityType,
			EstimatedDays:    product.EstimatedDays,
			Available:        true,
			CheckedAt:        r.clock.Now(),
		}, nil
	}

	ledger := r.ledgers.GetOrCreate(productID)
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	product, err = r.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	quantity := max(0, product.StockQuantity-ledger.liveReserved(now))
	return &Availability{
		ProductID:        product.ID,
		AvailabilityType: product.AvailabilityType,
		Quantity:         &quantity,
		EstimatedDays:    product.EstimatedDays,
		Available:        quantity > 0,
		CheckedAt:        now,
	}, nil
}

func (r *Reserver) lookup(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("catalog lookup %s: %w", productID, err)
	}
	return product, nil
}

func (r *Reserver) catalogContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.catalogTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.catalogTimeout)
}

// expireHold moves an ACTIVE reservation to EXPIRED and drops it from the
// ledger. The caller must hold the ledger lock. ExpiredAt records the
// deadline, not the moment the expiry was noticed.
func expireHold(ledger *ProductLedger, reservations *store.ReservationStore, res *domain.Reservation) {
	reservations.Transition(res, domain.ReservationStatusExpired, func(res *domain.Reservation) {
		expiredAt := res.ExpiresAt
		res.ExpiredAt = &expiredAt
	})
	ledger.remove(res)
}
