package store

import (
	"context"
	"log"
	"sync"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

// Memory is an in-process implementation of the store interfaces, used
// for tests and single-node development. Mutations on the same row are
// serialized by a per-row lock; the mutate function runs against a copy,
// so a returned error rolls the row back by simply not writing.
type Memory struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	orders   map[string]*order.Order
	users    map[string]*user.User
	audit    []AuditRecord

	rowMu sync.Mutex
	rows  map[string]*sync.Mutex

	publisher AuditPublisher
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*order.Order),
		users:    make(map[string]*user.User),
		rows:     make(map[string]*sync.Mutex),
	}
}

// WithPublisher attaches an audit fan-out publisher (Kafka in
// production). Fan-out is best-effort: the record is already committed
// when publishing runs.
func (m *Memory) WithPublisher(p AuditPublisher) *Memory {
	m.publisher = p
	return m
}

// rowLock returns the lock serializing mutations of a single row.
func (m *Memory) rowLock(key string) *sync.Mutex {
	m.rowMu.Lock()
	defer m.rowMu.Unlock()
	l, ok := m.rows[key]
	if !ok {
		l = &sync.Mutex{}
		m.rows[key] = l
	}
	return l
}

func (m *Memory) commitAudit(ctx context.Context, rec *AuditRecord) {
	if rec == nil {
		return
	}
	m.audit = append(m.audit, *rec)
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, rec.EntityID, rec); err != nil {
			log.Printf("[Store] Failed to publish audit record %s: %v", rec.ID, err)
		}
	}
}

// Products

func (m *Memory) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *Memory) MutateProduct(ctx context.Context, id string, fn MutateProductFunc) error {
	lock := m.rowLock("product:" + id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.products[id]
	var work product.Product
	if ok {
		work = *stored
	}
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	rec, err := fn(&work)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	work.Version++
	m.mu.Lock()
	m.products[id] = &work
	m.commitAudit(ctx, rec)
	m.mu.Unlock()
	return nil
}

// Orders

func (m *Memory) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *Memory) CreateOrder(ctx context.Context, o *order.Order, rec *AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = copyOrder(o)
	m.commitAudit(ctx, rec)
	return nil
}

func (m *Memory) MutateOrder(ctx context.Context, id string, fn MutateOrderFunc) error {
	lock := m.rowLock("order:" + id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.orders[id]
	var work *order.Order
	if ok {
		work = copyOrder(stored)
	}
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	rec, err := fn(work)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	work.Version++
	m.mu.Lock()
	m.orders[id] = work
	m.commitAudit(ctx, rec)
	m.mu.Unlock()
	return nil
}

func copyOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = make([]order.LineItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

// Audit

func (m *Memory) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitAudit(ctx, rec)
	return nil
}

func (m *Memory) ListAudit(ctx context.Context, entityType, entityID string) ([]AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AuditRecord
	for _, rec := range m.audit {
		if rec.EntityType == entityType && rec.EntityID == entityID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Users

func (m *Memory) GetUser(ctx context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UsersWithRole(ctx context.Context, role user.Role) ([]*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*user.User
	for _, u := range m.users {
		if u.Role == role && u.Status == user.StatusActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}
