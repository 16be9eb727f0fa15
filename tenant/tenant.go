package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix tags every opaque key issued by the gateway. Credentials lacking
// it are rejected before any store lookup.
const KeyPrefix = "cg_"

// minKeyLength is the prefix plus one uuid worth of hex entropy.
const minKeyLength = len(KeyPrefix) + 32

// ErrNotFound is returned when no connection matches an opaque key.
var ErrNotFound = errors.New("tenant connection not found")

// Connection binds one tenant credential to one network. Connections are
// never deleted, only marked inactive. The usage counter is mutated solely
// through Store.IncrementUsage as an atomic add at the database.
type Connection struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Label          string    `gorm:"size:128"`
	NetworkSlug    string    `gorm:"size:64;index"`
	OpaqueKey      string    `gorm:"size:128;uniqueIndex"`
	AllowedSources string    `gorm:"size:512"`
	Active         bool      `gorm:"index"`
	RequestCount   uint64    `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllowedSourceList splits the stored allow-list. An empty result means every
// source address is accepted.
func (c *Connection) AllowedSourceList() []string {
	if c == nil {
		return nil
	}
	raw := strings.Split(c.AllowedSources, ",")
	sources := make([]string, 0, len(raw))
	for _, entry := range raw {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	return sources
}

// SourceAllowed reports whether the observed caller address passes the
// connection's allow-list.
func (c *Connection) SourceAllowed(source string) bool {
	allowed := c.AllowedSourceList()
	if len(allowed) == 0 {
		return true
	}
	source = strings.TrimSpace(source)
	for _, entry := range allowed {
		if strings.EqualFold(entry, source) {
			return true
		}
	}
	return false
}

// NewKey mints a fresh opaque key with the reserved prefix. Two uuids worth
// of entropy keeps keys unguessable without reaching for a dedicated token
// library.
func NewKey() string {
	entropy := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return KeyPrefix + entropy
}

// ValidKeyShape performs the cheap structural check that runs before any
// store lookup.
func ValidKeyShape(key string) bool {
	return strings.HasPrefix(key, KeyPrefix) && len(key) >= minKeyLength
}

// Store is the narrow capability the gateway consumes. The full persistence
// implementation lives alongside it in this package; the gateway itself only
// resolves keys and bumps counters.
type Store interface {
	ResolveByKey(ctx context.Context, opaqueKey string) (*Connection, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}
