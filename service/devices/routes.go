package devices

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/redis/go-redis/v9"
	"github.com/storelinkhq/storelink-server/cmd/models"
	"gorm.io/gorm"
)

// DeviceHandler handles device token registration
type DeviceHandler struct {
	registry TokenRegistry
	limiter  RateLimiter
}

// NewDeviceHandler creates a new device handler backed by Postgres and redis
func NewDeviceHandler(db *gorm.DB, rdb *redis.Client) *DeviceHandler {
	return &DeviceHandler{
		registry: NewGormRegistry(db),
		limiter:  NewRedisRateLimiter(rdb, DefaultRegistrationLimit),
	}
}

// RegisterRoutes registers all device routes
func (h *DeviceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	router.HandleFunc("/devices/{token}", h.RemoveDevice).Methods("DELETE")
}

// RegisterDevice upserts a push token with its routing attributes.
// This endpoint is public (the mobile app calls it on startup), so it sits
// behind the per-IP rate limiter.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(r.Context(), clientIP(r)) {
		http.Error(w, "Too many registrations, try again later", http.StatusTooManyRequests)
		return
	}

	var req models.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	// Validate the Expo push token format
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	device := models.DeviceToken{
		Token:       req.Token,
		Environment: models.NormalizeEnvironment(req.Env),
		StoreID:     strings.TrimSpace(req.StoreID),
		Platform:    req.Platform,
		AppVersion:  req.AppVersion,
	}

	saved, err := h.registry.Upsert(r.Context(), device)
	if err != nil {
		log.Printf("Error registering device token: %v", err)
		http.Error(w, "Error registering device", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      true,
		"token":   saved.Token,
		"env":     saved.Environment,
		"storeId": saved.StoreID,
	})
}

// RemoveDevice unregisters a token. Removal is idempotent: deleting an
// unknown token still reports success.
func (h *DeviceHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := vars["token"]

	if token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	if err := h.registry.Remove(r.Context(), token); err != nil {
		log.Printf("Error removing device token: %v", err)
		http.Error(w, "Error removing device", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": true,
	})
}

// clientIP resolves the source address used as the rate-limit key
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
