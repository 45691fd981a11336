package inventory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
)

var testActor = user.Actor{UserID: "admin-1", Role: user.RoleMasterAdmin, Origin: "10.0.0.1"}

func setupEngine(t *testing.T, inventory int) (*Engine, *store.Memory, *product.Product) {
	t.Helper()
	mem := store.NewMemory()
	p := &product.Product{
		ID:        "prod-1",
		SKU:       "SKU-001",
		BrandID:   "brand-1",
		Name:      "Wool Coat",
		Inventory: inventory,
		Status:    product.StatusActive,
		BasePrice: decimal.RequireFromString("100.00"),
	}
	require.NoError(t, mem.CreateProduct(context.Background(), p))
	return NewEngine(mem), mem, p
}

// ============================================
// Apply Tests
// ============================================

func TestEngine_Apply_Decrement(t *testing.T) {
	engine, mem, _ := setupEngine(t, 5)

	change, err := engine.Apply(context.Background(), ChangeCommand{
		ProductID: "prod-1",
		Operation: OpDecrement,
		Quantity:  3,
	}, testActor)
	require.NoError(t, err)

	assert.Equal(t, 5, change.PreviousInventory)
	assert.Equal(t, 2, change.NewInventory)
	assert.Equal(t, product.StatusActive, change.NewStatus)

	stored, err := mem.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Inventory)
}

func TestEngine_Apply_DecrementBelowZeroRejected(t *testing.T) {
	engine, mem, _ := setupEngine(t, 2)

	_, err := engine.Apply(context.Background(), ChangeCommand{
		ProductID: "prod-1",
		Operation: OpDecrement,
		Quantity:  5,
	}, testActor)

	var insufficient *InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "prod-1", insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Current)
	assert.Equal(t, 5, insufficient.Requested)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	// The rejection must not touch the row or the audit trail.
	stored, err := mem.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Inventory)

	trail, err := mem.ListAudit(context.Background(), store.EntityProduct, "prod-1")
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestEngine_Apply_SetAndIncrement(t *testing.T) {
	engine, mem, _ := setupEngine(t, 5)
	ctx := context.Background()

	change, err := engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: OpSet, Quantity: 20}, testActor)
	require.NoError(t, err)
	assert.Equal(t, 20, change.NewInventory)

	change, err = engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: OpIncrement, Quantity: 7}, testActor)
	require.NoError(t, err)
	assert.Equal(t, 20, change.PreviousInventory)
	assert.Equal(t, 27, change.NewInventory)

	stored, err := mem.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 27, stored.Inventory)
}

func TestEngine_Apply_StatusFollowsInventory(t *testing.T) {
	engine, mem, _ := setupEngine(t, 3)
	ctx := context.Background()

	change, err := engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: OpDecrement, Quantity: 3}, testActor)
	require.NoError(t, err)
	assert.Equal(t, product.StatusActive, change.PreviousStatus)
	assert.Equal(t, product.StatusOutOfStock, change.NewStatus)

	stored, err := mem.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, product.StatusOutOfStock, stored.Status)

	// Replenishing flips it back in the same write.
	change, err = engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: OpIncrement, Quantity: 10}, testActor)
	require.NoError(t, err)
	assert.Equal(t, product.StatusActive, change.NewStatus)
}

func TestEngine_Apply_ValidationErrors(t *testing.T) {
	engine, _, _ := setupEngine(t, 5)
	ctx := context.Background()

	_, err := engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: "DESTROY", Quantity: 1}, testActor)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = engine.Apply(ctx, ChangeCommand{ProductID: "prod-1", Operation: OpSet, Quantity: -1}, testActor)
	assert.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = engine.Apply(ctx, ChangeCommand{ProductID: "missing", Operation: OpSet, Quantity: 1}, testActor)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ============================================
// Audit Tests
// ============================================

func TestEngine_Apply_WritesOneAuditRecord(t *testing.T) {
	engine, mem, _ := setupEngine(t, 5)

	_, err := engine.Apply(context.Background(), ChangeCommand{
		ProductID: "prod-1",
		Operation: OpDecrement,
		Quantity:  2,
		Reason:    "damaged in warehouse",
	}, testActor)
	require.NoError(t, err)

	trail, err := mem.ListAudit(context.Background(), store.EntityProduct, "prod-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)

	rec := trail[0]
	assert.Equal(t, store.ActionInventoryChange, rec.Action)
	assert.Equal(t, testActor.UserID, rec.ActorID)
	assert.Equal(t, testActor.Role, rec.ActorRole)
	assert.Equal(t, testActor.Origin, rec.Origin)

	var meta ChangeMetadata
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, OpDecrement, meta.Operation)
	assert.Equal(t, 5, meta.PreviousInventory)
	assert.Equal(t, 3, meta.NewInventory)
	assert.Equal(t, "damaged in warehouse", meta.Reason)
	assert.Equal(t, "SKU-001", meta.SKU)
	assert.Equal(t, "brand-1", meta.BrandID)
}

// ============================================
// Retry Tests
// ============================================

// conflictingStore wraps the memory store and fails the first N mutations
// with ErrConflict.
type conflictingStore struct {
	*store.Memory
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (s *conflictingStore) MutateProduct(ctx context.Context, id string, fn store.MutateProductFunc) error {
	s.mu.Lock()
	s.attempts++
	fail := s.conflicts > 0
	if fail {
		s.conflicts--
	}
	s.mu.Unlock()
	if fail {
		return store.ErrConflict
	}
	return s.Memory.MutateProduct(ctx, id, fn)
}

func TestEngine_Apply_RetriesConflicts(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.CreateProduct(context.Background(), &product.Product{
		ID:        "prod-1",
		Inventory: 5,
		Status:    product.StatusActive,
		BasePrice: decimal.RequireFromString("10.00"),
	}))

	cs := &conflictingStore{Memory: mem, conflicts: 2}
	engine := NewEngine(cs)

	change, err := engine.Apply(context.Background(), ChangeCommand{
		ProductID: "prod-1",
		Operation: OpDecrement,
		Quantity:  1,
	}, testActor)
	require.NoError(t, err)
	assert.Equal(t, 4, change.NewInventory)
	assert.Equal(t, 3, cs.attempts)
}

func TestEngine_Apply_GivesUpAfterMaxAttempts(t *testing.T) {
	mem := store.NewMemory()
	cs := &conflictingStore{Memory: mem, conflicts: 10}
	engine := NewEngine(cs)

	_, err := engine.Apply(context.Background(), ChangeCommand{
		ProductID: "prod-1",
		Operation: OpSet,
		Quantity:  1,
	}, testActor)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, maxAttempts, cs.attempts)
}

// ============================================
// Concurrency Tests
// ============================================

func TestEngine_Apply_ConcurrentDecrements(t *testing.T) {
	engine, mem, _ := setupEngine(t, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Apply(context.Background(), ChangeCommand{
				ProductID: "prod-1",
				Operation: OpDecrement,
				Quantity:  3,
			}, testActor)
		}(i)
	}
	wg.Wait()

	// Exactly one of the two decrements fits in stock of 4.
	var ok, rejected int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientInventory)
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	stored, err := mem.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Inventory)

	trail, err := mem.ListAudit(context.Background(), store.EntityProduct, "prod-1")
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}
