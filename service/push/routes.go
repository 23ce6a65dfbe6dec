package push

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/storelinkhq/storelink-server/cmd/models"
	"github.com/storelinkhq/storelink-server/cmd/utils"
	"gorm.io/gorm"
)

// PushHandler handles broadcast and reconciliation operations
type PushHandler struct {
	segments    SegmentStore
	tickets     TicketStore
	dispatcher  *Dispatcher
	reconciler  *Reconciler
	adminSecret string
}

// NewPushHandler creates a push handler wired to Postgres and the Expo
// gateway. The admin secret is injected once at startup; an empty value
// makes every privileged route answer 500.
func NewPushHandler(db *gorm.DB, adminSecret string) *PushHandler {
	store := NewGormStore(db)
	return &PushHandler{
		segments:    store,
		tickets:     store,
		dispatcher:  NewDispatcher(expo.NewPushClient(nil)),
		reconciler:  NewReconciler(store, store, store, NewReceiptClient()),
		adminSecret: adminSecret,
	}
}

// RegisterRoutes registers all push routes behind the admin gate
func (h *PushHandler) RegisterRoutes(router *mux.Router) {
	admin := router.PathPrefix("/push").Subrouter()
	admin.Use(utils.AdminAuthMiddleware(h.adminSecret))
	admin.HandleFunc("/broadcast", h.BroadcastNotification).Methods("POST")
	admin.HandleFunc("/reconcile", h.ReconcileReceipts).Methods("POST")
	admin.HandleFunc("/segment", h.SegmentSummary).Methods("GET")
}

// BroadcastNotification fans a message out to every valid token in a segment
func (h *PushHandler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}

	environment := models.NormalizeEnvironment(req.Segment.Env)
	devices, err := ResolveSegment(r.Context(), h.segments, environment, strings.TrimSpace(req.Segment.StoreID))
	if err != nil {
		log.Printf("Error resolving segment %s/%s: %v", environment, req.Segment.StoreID, err)
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	if len(devices) == 0 {
		http.Error(w, "No devices found for segment", http.StatusNotFound)
		return
	}

	// Convert data to map[string]string for the gateway payload
	var stringData map[string]string
	if req.Data != nil {
		stringData = make(map[string]string, len(req.Data))
		for key, value := range req.Data {
			stringData[key] = fmt.Sprintf("%v", value)
		}
	}

	broadcastID := uuid.New().String()
	results := h.dispatcher.Dispatch(devices, BroadcastMessage{
		Title: title,
		Body:  body,
		Data:  stringData,
	}, broadcastID)

	delivered := 0
	anyChunkOK := false
	var tickets []models.Ticket
	for _, result := range results {
		if result.OK {
			anyChunkOK = true
		} else {
			log.Printf("Broadcast %s chunk %d (%d tokens) failed: %s", broadcastID, result.Chunk, result.Size, result.Error)
		}
		delivered += result.Delivered
		tickets = append(tickets, result.Tickets...)
	}

	// Every chunk failed: the gateway is down or answering garbage
	if !anyChunkOK {
		http.Error(w, "Push gateway unavailable", http.StatusBadGateway)
		return
	}

	if err := h.tickets.RecordTickets(r.Context(), tickets); err != nil {
		// Log this error but don't fail the request; the messages are
		// already on their way, we only lose reconciliation for them
		log.Printf("Error recording %d tickets for broadcast %s: %v", len(tickets), broadcastID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":          true,
		"broadcastId": broadcastID,
		"totalTokens": len(devices),
		"batches":     len(results),
		"delivered":   delivered,
		"results":     results,
	})
}

// ReconcileReceipts polls the gateway for receipts on pending tickets and
// prunes permanently invalid tokens. Chunk-level gateway failures are
// advisory, the endpoint reports whatever counts the run achieved.
func (h *PushHandler) ReconcileReceipts(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		log.Printf("Reconciliation failed: %v", err)
		http.Error(w, "Error reconciling receipts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      true,
		"checked": summary.Checked,
		"deleted": summary.Deleted,
	})
}

// SegmentSummary reports how a segment would resolve without sending
// anything. Meant for operators sizing a broadcast from the dashboard.
func (h *PushHandler) SegmentSummary(w http.ResponseWriter, r *http.Request) {
	rawEnv := r.URL.Query().Get("env")
	if rawEnv == "" {
		http.Error(w, "env query parameter is required", http.StatusBadRequest)
		return
	}
	storeID := strings.TrimSpace(r.URL.Query().Get("storeId"))

	devices, err := ResolveSegment(r.Context(), h.segments, models.NormalizeEnvironment(rawEnv), storeID)
	if err != nil {
		log.Printf("Error resolving segment summary: %v", err)
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	byPlatform := make(map[string]int)
	for _, device := range devices {
		platform := device.Platform
		if platform == "" {
			platform = "unknown"
		}
		byPlatform[platform]++
	}

	sample := make([]string, 0, 5)
	for _, device := range devices {
		if len(sample) == 5 {
			break
		}
		sample = append(sample, device.Token)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": true,
		"counts": map[string]interface{}{
			"total":      len(devices),
			"byPlatform": byPlatform,
		},
		"sample": sample,
	})
}
