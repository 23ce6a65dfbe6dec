package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/storelinkhq/storelink-server/cmd/models"
)

// Reconciliation window: tickets younger than ReceiptMinAge have likely
// not been processed by the gateway yet, tickets older than
// ReceiptLookback no longer have receipts available and keep their last
// known state.
const (
	ReceiptMinAge   = 15 * time.Minute
	ReceiptLookback = 7 * 24 * time.Hour
)

// Expo gateway defaults, matching what the send SDK uses
const (
	defaultGatewayHost   = "https://exp.host"
	defaultGatewayAPIURL = "/--/api/v2"
)

// permanentPushErrors are the receipt error codes that mean a token will
// never succeed again and must be pruned. Anything else (MessageTooBig,
// MessageRateExceeded, codes we have never seen) leaves the token in
// place for the next reconciliation pass.
var permanentPushErrors = map[string]struct{}{
	expo.ErrorDeviceNotRegistered: {},
	"InvalidCredentials":          {},
}

// PushReceipt is the gateway's delivery report for one ticket
type PushReceipt struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

// ErrorCode extracts the gateway error code, empty for ok receipts
func (r PushReceipt) ErrorCode() string {
	if r.Details == nil {
		return ""
	}
	code, _ := r.Details["error"].(string)
	return code
}

// ReceiptClient fetches push receipts from the Expo gateway. The Expo SDK
// only covers the send endpoint, so the getReceipts call is made directly
// against the same host.
type ReceiptClient struct {
	host       string
	apiURL     string
	httpClient *http.Client
}

func NewReceiptClient() *ReceiptClient {
	return &ReceiptClient{
		host:       defaultGatewayHost,
		apiURL:     defaultGatewayAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewReceiptClientWithHost targets a non-default gateway host
func NewReceiptClientWithHost(host, apiURL string) *ReceiptClient {
	client := NewReceiptClient()
	client.host = host
	client.apiURL = apiURL
	return client
}

// GetPushReceipts requests receipts for up to ChunkSize ticket ids.
// Tickets the gateway has no receipt for yet are simply absent from the
// returned map.
func (c *ReceiptClient) GetPushReceipts(ctx context.Context, ticketIDs []string) (map[string]PushReceipt, error) {
	payload, err := json.Marshal(map[string][]string{"ids": ticketIDs})
	if err != nil {
		return nil, err
	}

	url := c.host + c.apiURL + "/push/getReceipts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var body struct {
		Data map[string]PushReceipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed gateway response: %w", err)
	}

	return body.Data, nil
}

// ReconcileSummary reports what a reconciliation pass achieved
type ReconcileSummary struct {
	Checked int `json:"checked"`
	Deleted int `json:"deleted"`
}

// Reconciler polls the gateway for receipts on pending tickets,
// persists them, and prunes tokens whose receipts report permanent
// invalidity.
type Reconciler struct {
	tickets  TicketStore
	receipts ReceiptStore
	pruner   TokenPruner
	fetcher  ReceiptFetcher
}

func NewReconciler(tickets TicketStore, receipts ReceiptStore, pruner TokenPruner, fetcher ReceiptFetcher) *Reconciler {
	return &Reconciler{
		tickets:  tickets,
		receipts: receipts,
		pruner:   pruner,
		fetcher:  fetcher,
	}
}

// Reconcile runs one receipt poll. Per-chunk and per-ticket failures are
// logged and skipped, they never abort the rest of the run; the returned
// error is only set when the pending tickets could not be listed at all.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary

	now := time.Now()
	pending, err := r.tickets.ListPending(ctx, now.Add(-ReceiptLookback), now.Add(-ReceiptMinAge))
	if err != nil {
		return summary, fmt.Errorf("listing pending tickets: %w", err)
	}
	if len(pending) == 0 {
		return summary, nil
	}

	ticketOwner := make(map[string]string, len(pending))
	ids := make([]string, 0, len(pending))
	for _, ticket := range pending {
		ticketOwner[ticket.TicketID] = ticket.Token
		ids = append(ids, ticket.TicketID)
	}

	for start := 0; start < len(ids); start += ChunkSize {
		end := start + ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		receipts, err := r.fetcher.GetPushReceipts(ctx, chunk)
		if err != nil {
			log.Printf("Receipt fetch failed for chunk of %d tickets: %v", len(chunk), err)
			continue
		}

		for ticketID, receipt := range receipts {
			summary.Checked++
			if r.processReceipt(ctx, ticketID, receipt, ticketOwner) {
				summary.Deleted++
			}
		}
	}

	return summary, nil
}

// processReceipt persists one receipt and returns whether the owning
// token was pruned. Each receipt is handled independently; one ticket's
// outcome never depends on another's.
func (r *Reconciler) processReceipt(ctx context.Context, ticketID string, receipt PushReceipt, ticketOwner map[string]string) bool {
	record := models.Receipt{
		TicketID:   ticketID,
		Status:     receipt.Status,
		ErrorCode:  receipt.ErrorCode(),
		RecordedAt: time.Now(),
	}
	if err := r.receipts.UpsertReceipt(ctx, record); err != nil {
		log.Printf("Error persisting receipt for ticket %s: %v", ticketID, err)
	}

	if err := r.tickets.UpdateTicketStatus(ctx, ticketID, receipt.Status); err != nil {
		log.Printf("Error updating ticket %s status: %v", ticketID, err)
	}

	if receipt.Status != models.ReceiptStatusError {
		return false
	}
	if _, permanent := permanentPushErrors[record.ErrorCode]; !permanent {
		return false
	}

	token, known := ticketOwner[ticketID]
	if !known {
		return false
	}

	if err := r.pruner.RemoveToken(ctx, token); err != nil {
		log.Printf("Error pruning token for ticket %s: %v", ticketID, err)
		return false
	}
	log.Printf("Pruned permanently invalid token (code %s)", record.ErrorCode)
	return true
}
