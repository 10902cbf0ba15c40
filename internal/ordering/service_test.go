package ordering

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/internal/goods"
	"github.com/collectmall/collectmall-backend/internal/inventory"
	"github.com/collectmall/collectmall-backend/internal/users"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/outbox"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (o *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func (o *recordingOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	var out []outbox.DomainEvent
	for _, e := range o.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingSettlement struct {
	minted []uuid.UUID
	err    error
}

func (s *recordingSettlement) MintForOrder(_ context.Context, _ *gorm.DB, order *models.Order) error {
	if s.err != nil {
		return s.err
	}
	s.minted = append(s.minted, order.ID)
	return nil
}

// failingCancelInventory forwards to the real inventory service but makes the
// inline release fail, exercising the queued compensation path.
type failingCancelInventory struct {
	inventory.Service
}

func (f failingCancelInventory) CancelDecrease(context.Context, *gorm.DB, string) error {
	return errors.New("release timed out")
}

type fixture struct {
	db         *gorm.DB
	svc        Service
	outbox     *recordingOutbox
	settlement *recordingSettlement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newOrderingTestDB(t)
	ob := &recordingOutbox{}
	settle := &recordingSettlement{}
	svc := newOrderingService(t, db, nil, ob, settle)
	return &fixture{db: db, svc: svc, outbox: ob, settlement: settle}
}

func TestTryOrderPlacesUnpaidOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeCollection, 500, 5, false)

	order, err := f.svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: "txn-1",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   2,
		PriceCents: 500,
	})
	if err != nil {
		t.Fatalf("try order: %v", err)
	}
	if order.Status != enums.OrderStatusUnpaid {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.TotalCents != 1000 {
		t.Fatalf("unexpected total %d", order.TotalCents)
	}
	if order.OrderNo == "" || order.ID == uuid.Nil {
		t.Fatalf("order not fully populated: %+v", order)
	}

	assertStock(t, f.db, listing.ID, 3, 2, 0)
	var count int64
	if err := f.db.Model(&models.InventoryReservation{}).Where("identifier = ?", "txn-1").Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reservation, got %d", count)
	}
}

func TestTryOrderReplayReturnsSameOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)

	input := CreateOrderInput{
		Identifier: "txn-replay",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   1,
		PriceCents: 300,
	}
	first, err := f.svc.TryOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("first try: %v", err)
	}
	second, err := f.svc.TryOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("replayed try: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay produced a new order: %s vs %s", first.ID, second.ID)
	}

	assertStock(t, f.db, listing.ID, 3, 1, 0)
	var count int64
	if err := f.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one order, got %d", count)
	}
}

func TestTryOrderRejectsAbnormalBuyer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusFrozen, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)

	_, err := f.svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: "txn-frozen",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   1,
		PriceCents: 300,
	})
	assertCode(t, err, pkgerrors.CodeBuyerStatusAbnormal)
	assertStock(t, f.db, listing.ID, 4, 0, 0)
}

func TestTryOrderRejectsPriceChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)

	_, err := f.svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: "txn-stale-price",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   1,
		PriceCents: 250,
	})
	assertCode(t, err, pkgerrors.CodeGoodsPriceChanged)
}

func TestTryOrderBookingGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeCollection, 800, 3, true)

	_, err := f.svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: "txn-unbooked",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   1,
		PriceCents: 800,
	})
	assertCode(t, err, pkgerrors.CodeGoodsNotBooked)

	seedBooking(t, f.db, listing.ID, buyer.ID)
	order, err := f.svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: "txn-booked",
		BuyerID:    buyer.ID,
		GoodsID:    listing.ID,
		Quantity:   1,
		PriceCents: 800,
	})
	if err != nil {
		t.Fatalf("booked try: %v", err)
	}
	if order.Status != enums.OrderStatusUnpaid {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestConfirmOrderMarksPaidAndMints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeCollection, 500, 5, false)
	placed := mustTryOrder(t, f.svc, listing, buyer.ID, "txn-pay", 1)

	for i := 0; i < 2; i++ {
		order, err := f.svc.ConfirmOrder(context.Background(), "txn-pay")
		if err != nil {
			t.Fatalf("confirm attempt %d: %v", i, err)
		}
		if order.Status != enums.OrderStatusPaid {
			t.Fatalf("unexpected status %s", order.Status)
		}
		if order.PaidAt == nil {
			t.Fatal("paid_at not set")
		}
	}

	assertStock(t, f.db, listing.ID, 4, 0, 1)
	if len(f.settlement.minted) != 1 || f.settlement.minted[0] != placed.ID {
		t.Fatalf("unexpected mints: %v", f.settlement.minted)
	}
	if got := f.outbox.byType(enums.EventOrderPaid); len(got) != 1 {
		t.Fatalf("expected one paid event, got %d", len(got))
	}

	stored := mustReload(t, f.db, placed.ID)
	if stored.Status != enums.OrderStatusPaid || stored.Version != placed.Version+1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
}

func TestConfirmOrderOrdinaryGoodsSkipsMint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 200, 2, false)
	mustTryOrder(t, f.svc, listing, buyer.ID, "txn-plain", 1)

	if _, err := f.svc.ConfirmOrder(context.Background(), "txn-plain"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(f.settlement.minted) != 0 {
		t.Fatalf("ordinary goods must not mint, got %v", f.settlement.minted)
	}
}

func TestConfirmOrderUnknownIdentifier(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.ConfirmOrder(context.Background(), "txn-missing")
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)
	placed := mustTryOrder(t, f.svc, listing, buyer.ID, "txn-void", 2)

	for i := 0; i < 2; i++ {
		order, err := f.svc.CancelOrder(context.Background(), "txn-void", "buyer gave up")
		if err != nil {
			t.Fatalf("cancel attempt %d: %v", i, err)
		}
		if order.Status != enums.OrderStatusCancelled {
			t.Fatalf("unexpected status %s", order.Status)
		}
	}

	assertStock(t, f.db, listing.ID, 4, 0, 0)
	if got := f.outbox.byType(enums.EventOrderCancelled); len(got) != 1 {
		t.Fatalf("expected one cancelled event, got %d", len(got))
	}
	stored := mustReload(t, f.db, placed.ID)
	if stored.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}
}

func TestCancelOrderAfterPaidRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)
	mustTryOrder(t, f.svc, listing, buyer.ID, "txn-locked", 1)
	if _, err := f.svc.ConfirmOrder(context.Background(), "txn-locked"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := f.svc.CancelOrder(context.Background(), "txn-locked", "too late")
	assertCode(t, err, pkgerrors.CodeStateConflict)
	assertStock(t, f.db, listing.ID, 3, 0, 1)
}

func TestCancelOrderQueuesReleaseWhenInlineFails(t *testing.T) {
	t.Parallel()

	db := newOrderingTestDB(t)
	ob := &recordingOutbox{}
	settle := &recordingSettlement{}
	logg := logger.New(logger.Options{ServiceName: "ordering-test", Level: zerolog.ErrorLevel, Output: &bytes.Buffer{}})
	realInv, err := inventory.NewService(inventory.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	svc, err := NewService(
		NewRepository(db),
		users.NewRepository(db),
		goods.NewRepository(db),
		failingCancelInventory{Service: realInv},
		gormRunner{db: db},
		ob,
		settle,
		nil,
		logg,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	buyer := seedBuyer(t, db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, db, enums.GoodsTypeOrdinary, 300, 4, false)
	placed := mustTryOrder(t, svc, listing, buyer.ID, "txn-compensate", 1)

	order, err := svc.CancelOrder(context.Background(), "txn-compensate", "payment expired")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", order.Status)
	}

	// The hold is still reserved; the release travels through the outbox.
	assertStock(t, db, listing.ID, 3, 1, 0)
	queued := ob.byType(enums.EventReservationReleaseRequested)
	if len(queued) != 1 {
		t.Fatalf("expected one queued release, got %d", len(queued))
	}
	if queued[0].AggregateID != placed.ID {
		t.Fatalf("queued release references %s, want %s", queued[0].AggregateID, placed.ID)
	}
}

func TestRefundOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)
	placed := mustTryOrder(t, f.svc, listing, buyer.ID, "txn-refund", 1)

	_, err := f.svc.RefundOrder(context.Background(), "txn-refund", "damaged")
	assertCode(t, err, pkgerrors.CodeStateConflict)

	if _, err := f.svc.ConfirmOrder(context.Background(), "txn-refund"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	order, err := f.svc.RefundOrder(context.Background(), "txn-refund", "damaged")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if order.Status != enums.OrderStatusRefunded || order.RefundedAt == nil {
		t.Fatalf("unexpected refunded order: %+v", order)
	}

	// Refunds never restore sold stock.
	assertStock(t, f.db, listing.ID, 3, 0, 1)
	stored := mustReload(t, f.db, placed.ID)
	if stored.Status != enums.OrderStatusRefunded {
		t.Fatalf("unexpected stored status %s", stored.Status)
	}
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := seedBuyer(t, f.db, enums.UserStatusActive, enums.UserRoleBuyer)
	listing := seedGoods(t, f.db, enums.GoodsTypeOrdinary, 300, 4, false)
	placed := mustTryOrder(t, f.svc, listing, buyer.ID, "txn-get", 1)

	order, err := f.svc.GetOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.ID != placed.ID {
		t.Fatalf("unexpected order %s", order.ID)
	}

	_, err = f.svc.GetOrder(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func newOrderingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ordering_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  nickname TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'buyer',
  status TEXT NOT NULL DEFAULT 'active',
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS goods (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  price_cents INTEGER NOT NULL,
  booking_required INTEGER NOT NULL DEFAULT 0,
  sale_start_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS goods_bookings (
  id TEXT PRIMARY KEY,
  goods_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (goods_id, user_id)
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_no TEXT NOT NULL UNIQUE,
  identifier TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  merchant_id TEXT NOT NULL,
  goods_id TEXT NOT NULL,
  goods_type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  version INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  cancelled_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS inventory_items (
  goods_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  sold_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS inventory_reservations (
  id TEXT PRIMARY KEY,
  identifier TEXT NOT NULL UNIQUE,
  goods_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  outcome TEXT NOT NULL DEFAULT 'reserved',
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newOrderingService(t *testing.T, db *gorm.DB, inv inventory.Service, ob outboxPublisher, settle SettlementSubmitter) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "ordering-test", Level: zerolog.ErrorLevel, Output: &bytes.Buffer{}})
	if inv == nil {
		real, err := inventory.NewService(inventory.NewRepository(db), logg)
		if err != nil {
			t.Fatalf("inventory service: %v", err)
		}
		inv = real
	}
	svc, err := NewService(
		NewRepository(db),
		users.NewRepository(db),
		goods.NewRepository(db),
		inv,
		gormRunner{db: db},
		ob,
		settle,
		nil,
		logg,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedBuyer(t *testing.T, db *gorm.DB, status enums.UserStatus, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Nickname: "buyer",
		Role:     role,
		Status:   status,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	return user
}

func seedGoods(t *testing.T, db *gorm.DB, goodsType enums.GoodsType, priceCents, available int, bookingRequired bool) *models.Goods {
	t.Helper()
	listing := &models.Goods{
		ID:              uuid.New(),
		MerchantID:      uuid.New(),
		Name:            "listing",
		Type:            goodsType,
		Status:          enums.GoodsStatusOnSale,
		PriceCents:      priceCents,
		BookingRequired: bookingRequired,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("seed goods: %v", err)
	}
	if err := db.Create(&models.InventoryItem{GoodsID: listing.ID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return listing
}

func seedBooking(t *testing.T, db *gorm.DB, goodsID, userID uuid.UUID) {
	t.Helper()
	booking := &models.GoodsBooking{ID: uuid.New(), GoodsID: goodsID, UserID: userID}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func mustTryOrder(t *testing.T, svc Service, listing *models.Goods, buyerID uuid.UUID, identifier string, qty int) *models.Order {
	t.Helper()
	order, err := svc.TryOrder(context.Background(), CreateOrderInput{
		Identifier: identifier,
		BuyerID:    buyerID,
		GoodsID:    listing.ID,
		Quantity:   qty,
		PriceCents: listing.PriceCents,
	})
	if err != nil {
		t.Fatalf("try %s: %v", identifier, err)
	}
	return order
}

func mustReload(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return &order
}

func assertStock(t *testing.T, db *gorm.DB, goodsID uuid.UUID, available, reserved, sold int) {
	t.Helper()
	var item models.InventoryItem
	if err := db.First(&item, "goods_id = ?", goodsID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if item.AvailableQty != available || item.ReservedQty != reserved || item.SoldQty != sold {
		t.Fatalf("unexpected stock state: %+v", item)
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
