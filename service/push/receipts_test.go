package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/storelinkhq/storelink-server/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicketStore struct {
	pending  []models.Ticket
	listErr  error
	recorded []models.Ticket
	statuses map[string]string
}

func newFakeTicketStore(pending ...models.Ticket) *fakeTicketStore {
	return &fakeTicketStore{pending: pending, statuses: make(map[string]string)}
}

func (f *fakeTicketStore) RecordTickets(ctx context.Context, tickets []models.Ticket) error {
	f.recorded = append(f.recorded, tickets...)
	return nil
}

func (f *fakeTicketStore) ListPending(ctx context.Context, oldest, newest time.Time) ([]models.Ticket, error) {
	return f.pending, f.listErr
}

func (f *fakeTicketStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	f.statuses[ticketID] = status
	return nil
}

type fakeReceiptStore struct {
	upserted []models.Receipt
}

func (f *fakeReceiptStore) UpsertReceipt(ctx context.Context, receipt models.Receipt) error {
	f.upserted = append(f.upserted, receipt)
	return nil
}

type fakePruner struct {
	removed []string
	err     error
}

func (f *fakePruner) RemoveToken(ctx context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, token)
	return nil
}

type fakeFetcher struct {
	receipts map[string]PushReceipt
	failIDs  map[string]bool
	calls    int
}

func (f *fakeFetcher) GetPushReceipts(ctx context.Context, ticketIDs []string) (map[string]PushReceipt, error) {
	f.calls++
	for _, id := range ticketIDs {
		if f.failIDs[id] {
			return nil, errors.New("gateway timeout")
		}
	}
	found := make(map[string]PushReceipt)
	for _, id := range ticketIDs {
		if receipt, ok := f.receipts[id]; ok {
			found[id] = receipt
		}
	}
	return found, nil
}

func errorReceipt(code string) PushReceipt {
	return PushReceipt{
		Status:  models.ReceiptStatusError,
		Details: map[string]interface{}{"error": code},
	}
}

func TestReconcile_PrunesOnlyPermanentErrors(t *testing.T) {
	tickets := newFakeTicketStore(
		models.Ticket{TicketID: "t1", Token: "ExponentPushToken[A]", Status: models.TicketStatusQueued},
		models.Ticket{TicketID: "t2", Token: "ExponentPushToken[B]", Status: models.TicketStatusQueued},
		models.Ticket{TicketID: "t3", Token: "ExponentPushToken[C]", Status: models.TicketStatusQueued},
		models.Ticket{TicketID: "t4", Token: "ExponentPushToken[D]", Status: models.TicketStatusQueued},
	)
	receipts := &fakeReceiptStore{}
	pruner := &fakePruner{}
	fetcher := &fakeFetcher{receipts: map[string]PushReceipt{
		"t1": errorReceipt("DeviceNotRegistered"),
		"t2": errorReceipt("MessageTooBig"),
		"t3": {Status: models.ReceiptStatusOK},
		"t4": errorReceipt("InvalidCredentials"),
	}}

	summary, err := NewReconciler(tickets, receipts, pruner, fetcher).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Checked)
	assert.Equal(t, 2, summary.Deleted)
	assert.ElementsMatch(t, []string{"ExponentPushToken[A]", "ExponentPushToken[D]"}, pruner.removed)
	assert.Len(t, receipts.upserted, 4)
	assert.Equal(t, models.ReceiptStatusOK, tickets.statuses["t3"])
	assert.Equal(t, models.ReceiptStatusError, tickets.statuses["t1"])
}

func TestReconcile_UnknownErrorCodeLeavesTokenInPlace(t *testing.T) {
	tickets := newFakeTicketStore(
		models.Ticket{TicketID: "t1", Token: "ExponentPushToken[A]", Status: models.TicketStatusQueued},
	)
	fetcher := &fakeFetcher{receipts: map[string]PushReceipt{
		"t1": errorReceipt("SomeFutureErrorCode"),
	}}
	pruner := &fakePruner{}

	summary, err := NewReconciler(tickets, &fakeReceiptStore{}, pruner, fetcher).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Deleted)
	assert.Empty(t, pruner.removed)
}

func TestReconcile_ChunkFailureDoesNotAbortRun(t *testing.T) {
	var pending []models.Ticket
	receiptsByID := make(map[string]PushReceipt)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("t-%03d", i)
		pending = append(pending, models.Ticket{
			TicketID: id,
			Token:    fmt.Sprintf("ExponentPushToken[tok-%03d]", i),
			Status:   models.TicketStatusQueued,
		})
		receiptsByID[id] = PushReceipt{Status: models.ReceiptStatusOK}
	}

	tickets := newFakeTicketStore(pending...)
	// t-100 lives in the second chunk of ids; that fetch fails as a unit
	fetcher := &fakeFetcher{receipts: receiptsByID, failIDs: map[string]bool{"t-100": true}}

	summary, err := NewReconciler(tickets, &fakeReceiptStore{}, &fakePruner{}, fetcher).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, 150, summary.Checked)
	assert.Equal(t, 0, summary.Deleted)
}

func TestReconcile_NoPendingTickets(t *testing.T) {
	fetcher := &fakeFetcher{}
	summary, err := NewReconciler(newFakeTicketStore(), &fakeReceiptStore{}, &fakePruner{}, fetcher).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{}, summary)
	assert.Equal(t, 0, fetcher.calls)
}

func TestReconcile_ListPendingFailure(t *testing.T) {
	tickets := newFakeTicketStore()
	tickets.listErr = errors.New("connection reset")

	_, err := NewReconciler(tickets, &fakeReceiptStore{}, &fakePruner{}, &fakeFetcher{}).Reconcile(context.Background())
	assert.Error(t, err)
}

func TestReceiptClient_GetPushReceipts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/push/getReceipts"))

		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"t1", "t2", "t3"}, req["ids"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"t1": map[string]interface{}{"status": "ok"},
				"t2": map[string]interface{}{
					"status":  "error",
					"message": "device cannot receive push notifications",
					"details": map[string]interface{}{"error": "DeviceNotRegistered"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewReceiptClientWithHost(server.URL, "/--/api/v2")
	receipts, err := client.GetPushReceipts(context.Background(), []string{"t1", "t2", "t3"})
	require.NoError(t, err)

	require.Len(t, receipts, 2)
	assert.Equal(t, models.ReceiptStatusOK, receipts["t1"].Status)
	assert.Equal(t, "", receipts["t1"].ErrorCode())
	assert.Equal(t, models.ReceiptStatusError, receipts["t2"].Status)
	assert.Equal(t, "DeviceNotRegistered", receipts["t2"].ErrorCode())
}

func TestReceiptClient_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busted", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewReceiptClientWithHost(server.URL, "/--/api/v2")
	_, err := client.GetPushReceipts(context.Background(), []string{"t1"})
	assert.Error(t, err)
}
