package push

import (
	"context"
	"time"

	"github.com/storelinkhq/storelink-server/cmd/models"
)

// SegmentStore interface for audience queries against the token registry
type SegmentStore interface {
	TokensForSegment(ctx context.Context, environment, storeID string) ([]models.DeviceToken, error)
}

// TicketStore interface for dispatch ticket persistence
type TicketStore interface {
	RecordTickets(ctx context.Context, tickets []models.Ticket) error
	ListPending(ctx context.Context, oldest, newest time.Time) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
}

// ReceiptStore interface for receipt persistence
type ReceiptStore interface {
	UpsertReceipt(ctx context.Context, receipt models.Receipt) error
}

// TokenPruner removes tokens the gateway reports as permanently invalid
type TokenPruner interface {
	RemoveToken(ctx context.Context, token string) error
}

// ReceiptFetcher fetches delivery receipts from the push gateway
type ReceiptFetcher interface {
	GetPushReceipts(ctx context.Context, ticketIDs []string) (map[string]PushReceipt, error)
}
