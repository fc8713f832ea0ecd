package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServices struct {
	reservations *ReservationService
	products     *ProductService
	webhooks     *WebhookService
	catalog      *store.ProductStore
	clock        *domain.ManualClock
}

// helper to wire the services over a seeded catalog. rec may be nil.
func newTestServices(t *testing.T, rec *recorder) *testServices {
	t.Helper()
	clock := domain.NewManualClock(testNow)
	catalog, err := store.NewSeededProductStore(clock)
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	reservations := store.NewReservationStore()
	logger := discardLogger()

	webhookSvc := NewWebhookService(store.NewWebhookStore(), time.Second, clock, logger)
	if rec != nil {
		webhookSvc.client = rec.server.Client()
	}
	reserver := engine.NewReserver(engine.NewLedgerManager(), catalog, reservations, clock, 10*time.Minute, time.Second, logger)

	return &testServices{
		reservations: NewReservationService(reserver, reservations, catalog, webhookSvc),
		products:     NewProductService(catalog, reserver),
		webhooks:     webhookSvc,
		catalog:      catalog,
		clock:        clock,
	}
}

func (ts *testServices) create(t *testing.T, productID string, qty int64) *domain.Reservation {
	t.Helper()
	res, err := ts.reservations.Create(context.Background(), engine.CreateRequest{
		ProductID:    productID,
		Quantity:     qty,
		SalesChannel: domain.SalesChannelOnline,
	})
	if err != nil {
		t.Fatalf("create %s x%d: %v", productID, qty, err)
	}
	return res
}

func TestReservationService_LifecycleDispatchesEvents(t *testing.T) {
	rec := newRecorder(t, http.StatusOK)
	ts := newTestServices(t, rec)
	subscribe(t, ts.webhooks, "pos-1", rec.server.URL,
		EventReservationCreated, EventReservationConfirmed, EventReservationReleased)
	ctx := context.Background()

	confirmed := ts.create(t, "prod-001", 2)
	released := ts.create(t, "prod-001", 1)

	if _, err := ts.reservations.Confirm(ctx, confirmed.ID, "sale-1", "cashier"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := ts.reservations.Release(ctx, released.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	// No-op release sends nothing.
	if _, err := ts.reservations.Release(ctx, released.ID); err != nil {
		t.Fatalf("second release: %v", err)
	}
	ts.webhooks.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	counts := map[string]int{}
	for _, h := range rec.headers {
		counts[h.Get("X-Event-Type")]++
	}
	if counts[EventReservationCreated] != 2 || counts[EventReservationConfirmed] != 1 || counts[EventReservationReleased] != 1 {
		t.Fatalf("unexpected event counts: %v", counts)
	}
}

func TestReservationService_ConfirmPastDeadlineDispatchesExpired(t *testing.T) {
	rec := newRecorder(t, http.StatusOK)
	ts := newTestServices(t, rec)
	subscribe(t, ts.webhooks, "pos-1", rec.server.URL, EventReservationExpired)

	res := ts.create(t, "prod-003", 1)
	ts.clock.Advance(time.Hour)

	_, err := ts.reservations.Confirm(context.Background(), res.ID, "sale-1", "cashier")
	if !errors.Is(err, domain.ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}
	ts.webhooks.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.payloads) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(rec.payloads))
	}
	data := rec.payloads[0]["data"].(map[string]any)
	if data["status"] != string(domain.ReservationStatusExpired) {
		t.Fatalf("dispatched status %v", data["status"])
	}
}

func TestReservationService_ConfirmReferenceTooLong(t *testing.T) {
	ts := newTestServices(t, nil)
	res := ts.create(t, "prod-001", 1)

	_, err := ts.reservations.Confirm(context.Background(), res.ID, strings.Repeat("s", 129), "")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReservationService_Get(t *testing.T) {
	ts := newTestServices(t, nil)
	res := ts.create(t, "prod-001", 1)

	got, err := ts.reservations.Get(res.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != res.ID || got.Status != domain.ReservationStatusActive {
		t.Fatalf("got %+v", got)
	}

	if _, err := ts.reservations.Get("missing"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestReservationService_List(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()

	first := ts.create(t, "prod-001", 1)
	ts.clock.Advance(time.Second)
	ts.create(t, "prod-003", 1)
	ts.clock.Advance(time.Second)
	third := ts.create(t, "prod-001", 1)
	ts.reservations.Release(ctx, first.ID)

	all, total, err := ts.reservations.List(nil, "", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || all[0].ID != third.ID {
		t.Fatalf("expected newest first with total 3, got total=%d first=%s", total, all[0].ID)
	}

	active := domain.ReservationStatusActive
	filtered, total, err := ts.reservations.List(&active, "prod-001", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || filtered[0].ID != third.ID {
		t.Fatalf("filter mismatch: total=%d", total)
	}
}

func TestReservationService_ListValidation(t *testing.T) {
	ts := newTestServices(t, nil)
	bogus := domain.ReservationStatus("PENDING")

	tests := []struct {
		name   string
		status *domain.ReservationStatus
		page   int
		limit  int
	}{
		{"bad status", &bogus, 1, 10},
		{"page zero", nil, 0, 10},
		{"limit zero", nil, 1, 0},
		{"limit too high", nil, 1, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ts.reservations.List(tt.status, "", tt.page, tt.limit)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestReservationService_Stats(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()

	a := ts.create(t, "prod-001", 1)
	b := ts.create(t, "prod-001", 1)
	ts.create(t, "prod-001", 1)
	ts.reservations.Confirm(ctx, a.ID, "s", "u")
	ts.reservations.Release(ctx, b.ID)

	stats := ts.reservations.Stats()
	if stats.Products != 8 {
		t.Errorf("products = %d, want 8", stats.Products)
	}
	if stats.Reservations != 3 {
		t.Errorf("reservations = %d, want 3", stats.Reservations)
	}
	want := map[domain.ReservationStatus]int{
		domain.ReservationStatusActive:    1,
		domain.ReservationStatusConfirmed: 1,
		domain.ReservationStatusReleased:  1,
		domain.ReservationStatusExpired:   0,
	}
	for status, n := range want {
		if stats.ByStatus[status] != n {
			t.Errorf("%s = %d, want %d", status, stats.ByStatus[status], n)
		}
	}
}
