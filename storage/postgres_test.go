package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"chatinvoice/invoice"
	"chatinvoice/storage"
)

// setupTestDB opens a private in-memory sqlite database per test, migrated
// with the same models Postgres uses in production.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// GenerateAndAttachInvoice's sequence allocation relies on a single
	// writer to serialize concurrent transactions; sqlite already enforces
	// this, but pinning the pool to one connection removes any doubt under
	// concurrent test access.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func seedOrg(t *testing.T, db *gorm.DB, orgID string) {
	t.Helper()
	if err := db.Create(&storage.Organization{
		ID:        orgID,
		Name:      "Seed Org " + orgID,
		GSTNumber: "29AAAAA0000A1Z5",
		Tier:      storage.TierFree,
		CreatedAt: time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	if err := db.Create(&storage.BusinessProfile{
		OrganizationID: orgID,
		BusinessName:   "Seed Business",
		GSTNumber:      "29AAAAA0000A1Z5",
		TaxRatePercent: 18,
		Currency:       "INR",
	}).Error; err != nil {
		t.Fatalf("seed business profile: %v", err)
	}
}

func newOrderInput(name string) storage.NewOrderInput {
	return storage.NewOrderInput{
		CustomerName:    name,
		CustomerPhone:   "9876543210",
		DeliveryAddress: "42 MG Road, Bangalore",
		Items: []storage.OrderItem{
			{ProductName: "Rice", Quantity: 2, Unit: "kg"},
		},
		TotalAmount: 500,
	}
}

func TestAddOrderAndRoundTripPersistence(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)

	created, err := store.AddOrder(ctx, orgID, newOrderInput("Asha Rao"))
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	got, err := store.GetOrder(ctx, orgID, created.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.CustomerName != "Asha Rao" {
		t.Errorf("customer name = %q, want Asha Rao", got.CustomerName)
	}
	if got.TotalAmount != 500 {
		t.Errorf("total amount = %v, want 500", got.TotalAmount)
	}
	if got.Status != storage.StatusPending {
		t.Errorf("status = %v, want pending", got.Status)
	}
}

func TestAddOrderAlwaysCreatesNewCustomer(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)

	first, err := store.AddOrder(ctx, orgID, newOrderInput("Ravi Kumar"))
	if err != nil {
		t.Fatalf("AddOrder 1: %v", err)
	}
	second, err := store.AddOrder(ctx, orgID, newOrderInput("Ravi Kumar"))
	if err != nil {
		t.Fatalf("AddOrder 2: %v", err)
	}
	if first.CustomerID == second.CustomerID {
		t.Fatal("expected single-message orders to never share a customer row")
	}
}

func TestAddChatOrderReusesCustomerByName(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)

	chatInput := storage.ChatOrderInput{
		NewOrderInput: newOrderInput("Priya Singh"),
		Confidence:    storage.ConfidenceHigh,
		RawMessages:   []storage.RawMessage{{Sender: "customer", Text: "2kg rice please"}},
	}

	first, err := store.AddChatOrder(ctx, orgID, chatInput)
	if err != nil {
		t.Fatalf("AddChatOrder 1: %v", err)
	}
	second, err := store.AddChatOrder(ctx, orgID, chatInput)
	if err != nil {
		t.Fatalf("AddChatOrder 2: %v", err)
	}
	if first.CustomerID != second.CustomerID {
		t.Fatal("expected chat-log orders for the same name to reuse the same customer")
	}
}

func TestTenantIsolationHidesOrdersAcrossOrgs(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgA, orgB := uuid.NewString(), uuid.NewString()
	seedOrg(t, db, orgA)
	seedOrg(t, db, orgB)

	order, err := store.AddOrder(ctx, orgA, newOrderInput("Org A Customer"))
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	if _, err := store.GetOrder(ctx, orgB, order.ID); err == nil {
		t.Fatal("expected order created under orgA to be invisible to orgB")
	}

	rows, err := store.GetOrders(ctx, orgB, storage.ListOptions{})
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected orgB to see no orders, got %d", len(rows))
	}
}

func TestDeleteOrderIsSoftAndOpaqueToReads(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)

	order, err := store.AddOrder(ctx, orgID, newOrderInput("Deepak Verma"))
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if err := store.DeleteOrder(ctx, orgID, order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}

	if _, err := store.GetOrder(ctx, orgID, order.ID); err == nil {
		t.Fatal("expected soft-deleted order to be hidden from GetOrder")
	}
	rows, err := store.GetOrders(ctx, orgID, storage.ListOptions{})
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected soft-deleted order excluded from listing, got %d rows", len(rows))
	}

	var raw storage.Order
	if err := db.Unscoped().Where("id = ?", order.ID).Take(&raw).Error; err != nil {
		t.Fatalf("expected soft-deleted row still present for audit: %v", err)
	}
	if raw.DeletedAt == nil {
		t.Fatal("expected deleted_at to be set")
	}

	if err := store.DeleteOrder(ctx, orgID, order.ID); err == nil {
		t.Fatal("expected re-deleting an already-deleted order to fail with not found")
	}
}

func TestGenerateAndAttachInvoiceAllocatesSequenceAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)
	engine := &invoice.Engine{}

	order, err := store.AddOrder(ctx, orgID, newOrderInput("Neha Gupta"))
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	first, err := store.GenerateAndAttachInvoice(ctx, orgID, order.ID, false, engine)
	if err != nil {
		t.Fatalf("GenerateAndAttachInvoice: %v", err)
	}
	if first.Invoice == nil || first.InvoiceSequence == nil || *first.InvoiceSequence != 1 {
		t.Fatalf("expected sequence 1, got %+v", first.InvoiceSequence)
	}
	if first.Invoice.IGST != nil {
		t.Fatal("expected intra-state invoice to carry no IGST")
	}
	if first.Status != storage.StatusConfirmed {
		t.Errorf("status = %v, want confirmed", first.Status)
	}

	again, err := store.GenerateAndAttachInvoice(ctx, orgID, order.ID, false, engine)
	if err != nil {
		t.Fatalf("GenerateAndAttachInvoice (repeat): %v", err)
	}
	if *again.InvoiceSequence != 1 {
		t.Fatalf("expected idempotent retry to keep sequence 1, got %d", *again.InvoiceSequence)
	}
}

func TestGenerateAndAttachInvoiceAllocatesDenseSequenceAcrossOrgsIndependently(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgA, orgB := uuid.NewString(), uuid.NewString()
	seedOrg(t, db, orgA)
	seedOrg(t, db, orgB)
	engine := &invoice.Engine{}

	orderA, err := store.AddOrder(ctx, orgA, newOrderInput("Org A Customer"))
	if err != nil {
		t.Fatalf("AddOrder orgA: %v", err)
	}
	orderB, err := store.AddOrder(ctx, orgB, newOrderInput("Org B Customer"))
	if err != nil {
		t.Fatalf("AddOrder orgB: %v", err)
	}

	invA, err := store.GenerateAndAttachInvoice(ctx, orgA, orderA.ID, true, engine)
	if err != nil {
		t.Fatalf("GenerateAndAttachInvoice orgA: %v", err)
	}
	invB, err := store.GenerateAndAttachInvoice(ctx, orgB, orderB.ID, false, engine)
	if err != nil {
		t.Fatalf("GenerateAndAttachInvoice orgB: %v", err)
	}
	if *invA.InvoiceSequence != 1 || *invB.InvoiceSequence != 1 {
		t.Fatalf("expected each org to start its own sequence at 1, got orgA=%d orgB=%d", *invA.InvoiceSequence, *invB.InvoiceSequence)
	}
	if invA.Invoice.IGST == nil {
		t.Fatal("expected inter-state invoice to carry IGST")
	}
}

func TestGenerateAndAttachInvoiceConcurrentAllocationIsGaplessAndUnique(t *testing.T) {
	db := setupTestDB(t)
	store := storage.NewPostgres(db)
	ctx := context.Background()
	orgID := uuid.NewString()
	seedOrg(t, db, orgID)
	engine := &invoice.Engine{}

	const n = 10
	orderIDs := make([]string, n)
	for i := 0; i < n; i++ {
		order, err := store.AddOrder(ctx, orgID, newOrderInput(fmt.Sprintf("Customer %d", i)))
		if err != nil {
			t.Fatalf("AddOrder %d: %v", i, err)
		}
		orderIDs[i] = order.ID
	}

	var wg sync.WaitGroup
	sequences := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := store.GenerateAndAttachInvoice(ctx, orgID, orderIDs[i], false, engine)
			if err != nil {
				errs[i] = err
				return
			}
			sequences[i] = *result.InvoiceSequence
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("GenerateAndAttachInvoice %d: %v", i, err)
		}
		if seen[sequences[i]] {
			t.Fatalf("duplicate sequence %d allocated", sequences[i])
		}
		seen[sequences[i]] = true
	}
	for want := 1; want <= n; want++ {
		if !seen[want] {
			t.Fatalf("expected sequence %d to be allocated, sequences=%v", want, sequences)
		}
	}
}
