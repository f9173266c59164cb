package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds each service's declared public key. It is constructed
// once at process start and shared by every verification path; a single
// mutex serializes registrations, lookups and last-seen updates.
//
// Re-registration carries no authorization check and overwrites the prior
// entry. That is an accepted weak point of the deployment model, not a
// bug: any caller can rotate any service's key.
type Registry struct {
	log   *slog.Logger
	store RegistryStore

	mu       sync.Mutex
	services map[string]*ServiceIdentity
}

// NewRegistry creates a registry, warming it from store when one is
// configured. Store failures during warm-up are fatal: a verifier that
// silently drops persisted identities would deny every peer.
func NewRegistry(store RegistryStore, log *slog.Logger) (*Registry, error) {
	r := &Registry{
		log:      log,
		store:    store,
		services: make(map[string]*ServiceIdentity),
	}

	if store != nil {
		persisted, err := store.LoadIdentities()
		if err != nil {
			return nil, fmt.Errorf("loading persisted identities: %w", err)
		}
		r.services = persisted
		log.Info("registry warmed from store", "services", len(persisted))
	}

	return r, nil
}

// Register records or overwrites the identity for serviceID. Idempotent:
// re-registering replaces the key and resets both timestamps.
func (r *Registry) Register(serviceID, publicKey string) error {
	now := time.Now()
	identity := &ServiceIdentity{
		ServiceID:    serviceID,
		PublicKey:    publicKey,
		RegisteredAt: now,
		LastSeen:     now,
	}

	r.mu.Lock()
	r.services[serviceID] = identity
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveIdentity(identity); err != nil {
			return fmt.Errorf("persisting identity %q: %w", serviceID, err)
		}
	}

	r.log.Info("service registered", "service_id", serviceID, "public_key", publicKey)
	return nil
}

// Lookup returns a copy of the identity for serviceID, or ErrNotFound.
func (r *Registry) Lookup(serviceID string) (ServiceIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.services[serviceID]
	if !ok {
		return ServiceIdentity{}, ErrNotFound
	}
	return *identity, nil
}

// Touch updates the last-seen timestamp after a verified message.
func (r *Registry) Touch(serviceID string, seen time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity, ok := r.services[serviceID]; ok {
		identity.LastSeen = seen
	}
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.services)
}
