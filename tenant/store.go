package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore persists tenant connections behind the Store capability. Postgres
// backs production deployments; tests open an in-memory sqlite database with
// the same schema.
type GormStore struct {
	db *gorm.DB
}

// NewStore wires a store on an open gorm handle and ensures the schema.
func NewStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("tenant store requires a database handle")
	}
	if err := db.AutoMigrate(&Connection{}); err != nil {
		return nil, fmt.Errorf("migrate tenant schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateParams captures the provisioning inputs. The opaque key is always
// generated here, never supplied by a caller.
type CreateParams struct {
	Label          string
	NetworkSlug    string
	AllowedSources []string
}

// Create provisions a new active connection with a freshly minted key.
func (s *GormStore) Create(ctx context.Context, params CreateParams) (*Connection, error) {
	conn := &Connection{
		ID:             uuid.New(),
		Label:          strings.TrimSpace(params.Label),
		NetworkSlug:    strings.ToLower(strings.TrimSpace(params.NetworkSlug)),
		OpaqueKey:      NewKey(),
		AllowedSources: strings.Join(params.AllowedSources, ","),
		Active:         true,
	}
	if conn.NetworkSlug == "" {
		return nil, fmt.Errorf("network slug is required")
	}
	if err := s.db.WithContext(ctx).Create(conn).Error; err != nil {
		return nil, fmt.Errorf("create tenant connection: %w", err)
	}
	return conn, nil
}

// ResolveByKey looks up a connection by its opaque key.
func (s *GormStore) ResolveByKey(ctx context.Context, opaqueKey string) (*Connection, error) {
	var conn Connection
	err := s.db.WithContext(ctx).Where("opaque_key = ?", opaqueKey).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve tenant key: %w", err)
	}
	return &conn, nil
}

// IncrementUsage bumps the request counter as an atomic add at the database,
// so concurrent relays never race a read-modify-write.
func (s *GormStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Connection{}).
		Where("id = ?", id).
		UpdateColumn("request_count", gorm.Expr("request_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("increment usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate flips the active flag. Connections are never deleted.
func (s *GormStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Connection{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate tenant connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*GormStore)(nil)
