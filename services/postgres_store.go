package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// RegistryStore persists registered identities so a verifier restart does
// not force the fleet to re-register. The in-memory registry remains
// authoritative; the store is warm state only.
type RegistryStore interface {
	SaveIdentity(identity *ServiceIdentity) error
	LoadIdentities() (map[string]*ServiceIdentity, error)
	Close() error
}

// PostgresStore implements RegistryStore with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS service_identities (
		service_id VARCHAR(128) PRIMARY KEY,
		public_key VARCHAR(64) NOT NULL,
		registered_at TIMESTAMP WITH TIME ZONE NOT NULL,
		last_seen TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveIdentity upserts a registered identity.
func (s *PostgresStore) SaveIdentity(identity *ServiceIdentity) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO service_identities (service_id, public_key, registered_at, last_seen)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (service_id) DO UPDATE SET
		public_key = EXCLUDED.public_key,
		registered_at = EXCLUDED.registered_at,
		last_seen = EXCLUDED.last_seen
	`

	_, err := s.db.ExecContext(ctx, query,
		identity.ServiceID,
		identity.PublicKey,
		identity.RegisteredAt,
		identity.LastSeen,
	)
	return err
}

// LoadIdentities retrieves all persisted identities keyed by service id.
func (s *PostgresStore) LoadIdentities() (map[string]*ServiceIdentity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, public_key, registered_at, last_seen
		FROM service_identities
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*ServiceIdentity)
	for rows.Next() {
		var identity ServiceIdentity
		if err := rows.Scan(&identity.ServiceID, &identity.PublicKey, &identity.RegisteredAt, &identity.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		result[identity.ServiceID] = &identity
	}

	return result, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InMemoryStore implements RegistryStore for testing without a database.
type InMemoryStore struct {
	mu         sync.Mutex
	identities map[string]*ServiceIdentity
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{identities: make(map[string]*ServiceIdentity)}
}

// SaveIdentity stores an identity in memory.
func (s *InMemoryStore) SaveIdentity(identity *ServiceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *identity
	s.identities[identity.ServiceID] = &copied
	return nil
}

// LoadIdentities returns copies of all stored identities.
func (s *InMemoryStore) LoadIdentities() (map[string]*ServiceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]*ServiceIdentity, len(s.identities))
	for id, identity := range s.identities {
		copied := *identity
		result[id] = &copied
	}
	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
