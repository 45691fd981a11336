package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

// Postgres implements the store interfaces against PostgreSQL. Each
// mutation runs in one transaction: SELECT ... FOR UPDATE, apply, write
// with a version check, append the audit record, commit. Concurrent
// writers on the same row block on the row lock; serialization failures
// and lost version races surface as ErrConflict.
type Postgres struct {
	db        *sql.DB
	publisher AuditPublisher
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) WithPublisher(p AuditPublisher) *Postgres {
	s.publisher = p
	return s
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// asConflict maps storage-level contention errors to ErrConflict so the
// caller can retry with bounded attempts.
func asConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

func (s *Postgres) publishAudit(ctx context.Context, rec *AuditRecord) {
	if rec == nil || s.publisher == nil {
		return
	}
	// The record is already committed; fan-out is best-effort.
	if err := s.publisher.Publish(ctx, rec.EntityID, rec); err != nil {
		log.Printf("[Store] Failed to publish audit record %s: %v", rec.ID, err)
	}
}

func insertAudit(ctx context.Context, tx *sql.Tx, rec *AuditRecord) error {
	if rec == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, actor_role, action, entity_type, entity_id, metadata, origin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ActorID, rec.ActorRole, rec.Action, rec.EntityType, rec.EntityID,
		[]byte(rec.Metadata), rec.Origin, rec.CreatedAt,
	)
	return err
}

// Products

const productColumns = `id, sku, brand_id, name, inventory, status, base_price, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*product.Product, error) {
	var p product.Product
	var status string
	err := row.Scan(&p.ID, &p.SKU, &p.BrandID, &p.Name, &p.Inventory, &status,
		&p.BasePrice, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = product.Status(status)
	return &p, nil
}

func (s *Postgres) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *Postgres) CreateProduct(ctx context.Context, p *product.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SKU, p.BrandID, p.Name, p.Inventory, string(p.Status),
		p.BasePrice, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *Postgres) MutateProduct(ctx context.Context, id string, fn MutateProductFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if err != nil {
		return asConflict(err)
	}

	rec, err := fn(p)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET inventory = $1, status = $2, version = version + 1, updated_at = $3
		 WHERE id = $4 AND version = $5`,
		p.Inventory, string(p.Status), p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		return asConflict(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConflict
	}

	if err := insertAudit(ctx, tx, rec); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(err)
	}

	s.publishAudit(ctx, rec)
	return nil
}

// Orders

const orderColumns = `id, user_id, status, items, total_amount, shipping_address, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*order.Order, error) {
	var o order.Order
	var status string
	var items, address []byte
	err := row.Scan(&o.ID, &o.UserID, &status, &items, &o.TotalAmount,
		&address, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	return &o, nil
}

func (s *Postgres) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *Postgres) CreateOrder(ctx context.Context, o *order.Order, rec *AuditRecord) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, string(o.Status), items, o.TotalAmount,
		address, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return asConflict(err)
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(err)
	}

	s.publishAudit(ctx, rec)
	return nil
}

func (s *Postgres) MutateOrder(ctx context.Context, id string, fn MutateOrderFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		return asConflict(err)
	}

	rec, err := fn(o)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, version = version + 1, updated_at = $2
		 WHERE id = $3 AND version = $4`,
		string(o.Status), o.UpdatedAt, o.ID, o.Version,
	)
	if err != nil {
		return asConflict(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConflict
	}

	if err := insertAudit(ctx, tx, rec); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(err)
	}

	s.publishAudit(ctx, rec)
	return nil
}

// Audit

func (s *Postgres) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, actor_role, action, entity_type, entity_id, metadata, origin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ActorID, rec.ActorRole, rec.Action, rec.EntityType, rec.EntityID,
		[]byte(rec.Metadata), rec.Origin, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	s.publishAudit(ctx, rec)
	return nil
}

func (s *Postgres) ListAudit(ctx context.Context, entityType, entityID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, actor_role, action, entity_type, entity_id, metadata, origin, created_at
		 FROM audit_log
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var metadata []byte
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorRole, &rec.Action,
			&rec.EntityType, &rec.EntityID, &metadata, &rec.Origin, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Metadata = metadata
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Users

const userColumns = `id, email, name, password_hash, role, status, brand_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var u user.User
	var role, status string
	var brandID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status,
		&brandID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = user.Role(role)
	u.Status = user.Status(status)
	u.BrandID = brandID.String
	return &u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Postgres) CreateUser(ctx context.Context, u *user.User) error {
	var brandID sql.NullString
	if u.BrandID != "" {
		brandID = sql.NullString{String: u.BrandID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), string(u.Status),
		brandID, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *Postgres) UsersWithRole(ctx context.Context, role user.Role) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND status = $2`,
		string(role), string(user.StatusActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
