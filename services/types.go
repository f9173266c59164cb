package services

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by registry lookups for unknown service ids.
var ErrNotFound = errors.New("service not registered")

// ServiceIdentity is one registered service: its declared key address and
// the lifecycle timestamps the verifier maintains. Identities are never
// deleted during the process lifetime; re-registration overwrites.
type ServiceIdentity struct {
	ServiceID    string    `json:"service_id"`
	PublicKey    string    `json:"public_key"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// RegistrationRequest is the body of POST /register.
type RegistrationRequest struct {
	ServiceID string `json:"service_id"`
	PublicKey string `json:"public_key"`
}

// RegistrationResponse confirms or rejects a registration.
type RegistrationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VerificationRequest is the body of POST /verify: the signed payload
// object, its hex signature, and the claimed sender.
type VerificationRequest struct {
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature"`
	SenderID  string          `json:"sender_id"`
}

// VerificationResponse reports the verdict. The specific rejection reason
// is deliberately not distinguished, so callers cannot probe why a
// message was denied.
type VerificationResponse struct {
	Status  string `json:"status"`
	IsValid bool   `json:"is_valid"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)
