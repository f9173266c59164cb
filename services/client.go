package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
)

// Client talks to a remote verifier service. Every participating node
// holds one: it registers the node's key at startup and, when
// verification is delegated rather than performed in-process, submits
// envelopes to POST /verify.
type Client struct {
	serviceID   string
	address     crypto.Address
	verifierURL string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewClient creates a verifier client for the given identity.
func NewClient(serviceID string, address crypto.Address, verifierURL string, log *slog.Logger) *Client {
	return &Client{
		serviceID:   serviceID,
		address:     address,
		verifierURL: verifierURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// Register declares this service's key with the central verifier.
func (c *Client) Register() error {
	body, err := json.Marshal(&RegistrationRequest{
		ServiceID: c.serviceID,
		PublicKey: c.address.String(),
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Post(c.verifierURL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("registering with verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	c.log.Info("registered with verifier", "service_id", c.serviceID, "public_key", c.address.String())
	return nil
}

// Verify submits an envelope to the remote verifier and reports the
// verdict. Transport failures deny: an unreachable verifier must never
// cause a message to be accepted.
func (c *Client) Verify(message json.RawMessage, signature, senderID string) bool {
	body, err := json.Marshal(&VerificationRequest{
		Message:   message,
		Signature: signature,
		SenderID:  senderID,
	})
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Post(c.verifierURL+"/verify", "application/json", bytes.NewReader(body))
	if err != nil {
		c.log.Warn("remote verification unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var verdict VerificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return false
	}
	return verdict.IsValid
}
