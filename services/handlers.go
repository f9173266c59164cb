package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the verifier's HTTP surface: registration, delegated
// verification, and the unauthenticated health probe.
type Handler struct {
	registry *Registry
	verifier *Verifier
	log      *slog.Logger
}

// NewHandler creates the HTTP handler for a verifier instance.
func NewHandler(registry *Registry, verifier *Verifier, log *slog.Logger) *Handler {
	return &Handler{registry: registry, verifier: verifier, log: log}
}

// RegisterRoutes registers the verifier endpoints with the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/verify", h.handleVerify)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body RegistrationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, &RegistrationResponse{
			Status:  statusError,
			Message: "invalid request body",
		})
		return
	}

	if body.ServiceID == "" || body.PublicKey == "" {
		writeJSON(w, http.StatusBadRequest, &RegistrationResponse{
			Status:  statusError,
			Message: "Missing required fields",
		})
		return
	}

	if err := h.registry.Register(body.ServiceID, body.PublicKey); err != nil {
		h.log.Error("registration failed", "service_id", body.ServiceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, &RegistrationResponse{
			Status:  statusError,
			Message: "Registration failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, &RegistrationResponse{
		Status:  statusSuccess,
		Message: "Service registered successfully",
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, req *http.Request) {
	var body VerificationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, &RegistrationResponse{
			Status:  statusError,
			Message: "invalid request body",
		})
		return
	}

	if len(body.Message) == 0 || body.Signature == "" || body.SenderID == "" {
		writeJSON(w, http.StatusBadRequest, &RegistrationResponse{
			Status:  statusError,
			Message: "Missing required fields",
		})
		return
	}

	writeJSON(w, http.StatusOK, &VerificationResponse{
		Status:  statusSuccess,
		IsValid: h.verifier.Verify(body.Message, body.Signature, body.SenderID),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
