package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/outbox"
	"github.com/collectmall/collectmall-backend/pkg/outbox/payloads"
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

func (o *recordingOutbox) operations(t *testing.T) []payloads.ChainOperationRequestedEvent {
	t.Helper()
	var out []payloads.ChainOperationRequestedEvent
	for _, e := range o.events {
		if e.EventType != enums.EventChainOperationRequested {
			continue
		}
		data, err := json.Marshal(e.Data)
		if err != nil {
			t.Fatalf("marshal event data: %v", err)
		}
		var op payloads.ChainOperationRequestedEvent
		if err := json.Unmarshal(data, &op); err != nil {
			t.Fatalf("decode operation: %v", err)
		}
		out = append(out, op)
	}
	return out
}

func TestRegisterCollectionQueuesOperation(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)

	row, err := gw.RegisterCollection(context.Background(), RegisterCollectionInput{
		GoodsID:     uuid.New(),
		MerchantID:  uuid.New(),
		Name:        "genesis",
		RoyaltyRate: decimal.NewFromFloat(0.05),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if row.State != enums.CollectionStatePending {
		t.Fatalf("unexpected state %s", row.State)
	}
	if row.ChainIdentifier == "" || row.SubmittedAt == nil {
		t.Fatalf("submission fields missing: %+v", row)
	}

	ops := ob.operations(t)
	if len(ops) != 1 {
		t.Fatalf("expected one operation, got %d", len(ops))
	}
	if ops[0].OperateType != enums.ChainOperateCollectionChain {
		t.Fatalf("unexpected operate type %s", ops[0].OperateType)
	}
	if ops[0].Identifier != row.ChainIdentifier {
		t.Fatalf("identifier mismatch: %s vs %s", ops[0].Identifier, row.ChainIdentifier)
	}
}

func TestRegisterBlindBoxQueuesOperation(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)

	row, err := gw.RegisterBlindBox(context.Background(), RegisterBlindBoxInput{
		GoodsID:    uuid.New(),
		MerchantID: uuid.New(),
		Name:       "mystery",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if row.State != enums.BlindBoxStatePending {
		t.Fatalf("unexpected state %s", row.State)
	}

	ops := ob.operations(t)
	if len(ops) != 1 || ops[0].OperateType != enums.ChainOperateBlindBoxChain {
		t.Fatalf("unexpected operations: %+v", ops)
	}
}

func TestMintForOrderCreatesHeldCopies(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)
	collection := seedCollection(t, db, enums.CollectionStateSucceed)

	order := &models.Order{
		ID:        uuid.New(),
		BuyerID:   uuid.New(),
		GoodsID:   collection.GoodsID,
		GoodsType: enums.GoodsTypeCollection,
		Quantity:  2,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return gw.MintForOrder(context.Background(), tx, order)
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	var rows []models.HeldCollection
	if err := db.Where("collection_id = ?", collection.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load held: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two held copies, got %d", len(rows))
	}
	for _, row := range rows {
		if row.State != enums.HeldCollectionStateInit {
			t.Fatalf("unexpected state %s", row.State)
		}
		if row.OwnerID != order.BuyerID || row.OrderID == nil || *row.OrderID != order.ID {
			t.Fatalf("held copy not linked to order: %+v", row)
		}
	}

	ops := ob.operations(t)
	if len(ops) != 2 {
		t.Fatalf("expected two mint operations, got %d", len(ops))
	}
	for _, op := range ops {
		if op.OperateType != enums.ChainOperateCollectionMint {
			t.Fatalf("unexpected operate type %s", op.OperateType)
		}
	}
}

func TestMintForOrderSkipsNonCollectionGoods(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)

	for _, goodsType := range []enums.GoodsType{enums.GoodsTypeOrdinary, enums.GoodsTypeBlindBox} {
		order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), GoodsID: uuid.New(), GoodsType: goodsType, Quantity: 1}
		err := db.Transaction(func(tx *gorm.DB) error {
			return gw.MintForOrder(context.Background(), tx, order)
		})
		if err != nil {
			t.Fatalf("mint %s: %v", goodsType, err)
		}
	}
	if len(ob.events) != 0 {
		t.Fatalf("expected no operations, got %d", len(ob.events))
	}
}

func TestMintForOrderMissingCollection(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	gw := newTestGateway(t, db, &recordingOutbox{})

	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), GoodsID: uuid.New(), GoodsType: enums.GoodsTypeCollection, Quantity: 1}
	err := db.Transaction(func(tx *gorm.DB) error {
		return gw.MintForOrder(context.Background(), tx, order)
	})
	assertChainCode(t, err, pkgerrors.CodeNotFound)
}

func TestTransferQueuesRecipientAndBurn(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)
	collection := seedCollection(t, db, enums.CollectionStateSucceed)
	source := seedHeldCollection(t, db, collection.ID, enums.HeldCollectionStateActive)
	recipientID := uuid.New()

	recipient, err := gw.Transfer(context.Background(), source.ID, recipientID)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if recipient.State != enums.HeldCollectionStateInit || recipient.OwnerID != recipientID {
		t.Fatalf("unexpected recipient: %+v", recipient)
	}

	var reloaded models.HeldCollection
	if err := db.First(&reloaded, "id = ?", source.ID).Error; err != nil {
		t.Fatalf("reload source: %v", err)
	}
	if reloaded.State != enums.HeldCollectionStateDestroying {
		t.Fatalf("source not destroying: %s", reloaded.State)
	}

	ops := ob.operations(t)
	if len(ops) != 2 {
		t.Fatalf("expected transfer and destroy, got %d", len(ops))
	}
	if ops[0].OperateType != enums.ChainOperateCollectionTransfer || ops[1].OperateType != enums.ChainOperateCollectionDestroy {
		t.Fatalf("unexpected operations: %+v", ops)
	}
	if ops[0].ToOwnerID == nil || *ops[0].ToOwnerID != recipientID {
		t.Fatalf("transfer missing recipient: %+v", ops[0])
	}
}

func TestTransferRequiresActiveCopy(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	gw := newTestGateway(t, db, &recordingOutbox{})
	collection := seedCollection(t, db, enums.CollectionStateSucceed)
	source := seedHeldCollection(t, db, collection.ID, enums.HeldCollectionStateInit)

	_, err := gw.Transfer(context.Background(), source.ID, uuid.New())
	assertChainCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDestroyQueuesBurnOnce(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)
	collection := seedCollection(t, db, enums.CollectionStateSucceed)
	held := seedHeldCollection(t, db, collection.ID, enums.HeldCollectionStateActive)

	first, err := gw.Destroy(context.Background(), held.ID)
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if first.State != enums.HeldCollectionStateDestroying {
		t.Fatalf("unexpected state %s", first.State)
	}

	// Replay while the burn is in flight queues nothing new.
	if _, err := gw.Destroy(context.Background(), held.ID); err != nil {
		t.Fatalf("replayed destroy: %v", err)
	}
	if got := len(ob.operations(t)); got != 1 {
		t.Fatalf("expected one burn operation, got %d", got)
	}
}

func TestDestroyRejectsInitCopy(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	gw := newTestGateway(t, db, &recordingOutbox{})
	collection := seedCollection(t, db, enums.CollectionStateSucceed)
	held := seedHeldCollection(t, db, collection.ID, enums.HeldCollectionStateInit)

	_, err := gw.Destroy(context.Background(), held.ID)
	assertChainCode(t, err, pkgerrors.CodeStateConflict)
}

func TestResubmitStaleRequeuesWithStoredIdentifiers(t *testing.T) {
	t.Parallel()

	db := newChainTestDB(t)
	ob := &recordingOutbox{}
	gw := newTestGateway(t, db, ob)

	stale := time.Now().Add(-2 * time.Hour)
	collection := seedCollectionSubmittedAt(t, db, enums.CollectionStatePending, stale)
	orderID := uuid.New()
	minting := seedHeldCollectionSubmittedAt(t, db, collection.ID, enums.HeldCollectionStateInit, &orderID, stale)
	burning := seedHeldCollectionSubmittedAt(t, db, collection.ID, enums.HeldCollectionStateDestroying, nil, stale)
	// Fresh rows must not be touched.
	seedCollectionSubmittedAt(t, db, enums.CollectionStatePending, time.Now())

	count, err := gw.ResubmitStale(context.Background(), time.Now().Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected three resubmissions, got %d", count)
	}

	byIdentifier := map[string]enums.ChainOperateType{}
	for _, op := range ob.operations(t) {
		byIdentifier[op.Identifier] = op.OperateType
	}
	if byIdentifier[collection.ChainIdentifier] != enums.ChainOperateCollectionChain {
		t.Fatalf("collection not requeued: %v", byIdentifier)
	}
	if byIdentifier[minting.ChainIdentifier] != enums.ChainOperateCollectionMint {
		t.Fatalf("mint not requeued: %v", byIdentifier)
	}
	if byIdentifier[burning.ChainIdentifier] != enums.ChainOperateCollectionDestroy {
		t.Fatalf("burn not requeued: %v", byIdentifier)
	}
}

func newChainTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:chain_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS collections (
  id TEXT PRIMARY KEY,
  goods_id TEXT NOT NULL,
  merchant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'pending',
  royalty_rate NUMERIC NOT NULL DEFAULT 0,
  chain_identifier TEXT NOT NULL UNIQUE,
  nft_id TEXT,
  tx_hash TEXT,
  submitted_at DATETIME,
  confirmed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS blind_boxes (
  id TEXT PRIMARY KEY,
  goods_id TEXT NOT NULL,
  merchant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'pending',
  chain_identifier TEXT NOT NULL UNIQUE,
  nft_id TEXT,
  tx_hash TEXT,
  submitted_at DATETIME,
  confirmed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS held_collections (
  id TEXT PRIMARY KEY,
  collection_id TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  order_id TEXT,
  state TEXT NOT NULL DEFAULT 'init',
  chain_identifier TEXT NOT NULL UNIQUE,
  nft_id TEXT,
  tx_hash TEXT,
  submitted_at DATETIME,
  activated_at DATETIME,
  destroyed_at DATETIME,
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
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestGateway(t *testing.T, db *gorm.DB, ob outboxPublisher) *Gateway {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "chain-test", Level: zerolog.ErrorLevel, Output: &bytes.Buffer{}})
	gw, err := NewGateway(NewRepository(db), gormRunner{db: db}, ob, logg)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func seedCollection(t *testing.T, db *gorm.DB, state enums.CollectionState) *models.Collection {
	t.Helper()
	now := time.Now()
	return seedCollectionSubmittedAt(t, db, state, now)
}

func seedCollectionSubmittedAt(t *testing.T, db *gorm.DB, state enums.CollectionState, submittedAt time.Time) *models.Collection {
	t.Helper()
	row := &models.Collection{
		ID:              uuid.New(),
		GoodsID:         uuid.New(),
		MerchantID:      uuid.New(),
		Name:            "series",
		State:           state,
		RoyaltyRate:     decimal.NewFromFloat(0.05),
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &submittedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed collection: %v", err)
	}
	return row
}

func seedHeldCollection(t *testing.T, db *gorm.DB, collectionID uuid.UUID, state enums.HeldCollectionState) *models.HeldCollection {
	t.Helper()
	return seedHeldCollectionSubmittedAt(t, db, collectionID, state, nil, time.Now())
}

func seedHeldCollectionSubmittedAt(t *testing.T, db *gorm.DB, collectionID uuid.UUID, state enums.HeldCollectionState, orderID *uuid.UUID, submittedAt time.Time) *models.HeldCollection {
	t.Helper()
	row := &models.HeldCollection{
		ID:              uuid.New(),
		CollectionID:    collectionID,
		OwnerID:         uuid.New(),
		OrderID:         orderID,
		State:           state,
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &submittedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed held collection: %v", err)
	}
	return row
}

func seedBlindBox(t *testing.T, db *gorm.DB, state enums.BlindBoxState) *models.BlindBox {
	t.Helper()
	now := time.Now()
	row := &models.BlindBox{
		ID:              uuid.New(),
		GoodsID:         uuid.New(),
		MerchantID:      uuid.New(),
		Name:            "mystery",
		State:           state,
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &now,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed blind box: %v", err)
	}
	return row
}

func assertChainCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
