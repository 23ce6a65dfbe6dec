package push

import (
	"context"
	"time"

	"github.com/storelinkhq/storelink-server/cmd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements SegmentStore, TicketStore, ReceiptStore and
// TokenPruner on the shared Postgres database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) TokensForSegment(ctx context.Context, environment, storeID string) ([]models.DeviceToken, error) {
	query := s.db.WithContext(ctx).Where("environment = ?", environment)
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}

	var tokens []models.DeviceToken
	if err := query.Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *GormStore) RecordTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&tickets).Error
}

// ListPending returns tickets created inside the reconciliation window
// that have not yet reached a terminal ok status.
func (s *GormStore) ListPending(ctx context.Context, oldest, newest time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", oldest, newest).
		Where("status <> ?", models.TicketStatusOK).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *GormStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	return s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Update("status", status).Error
}

// UpsertReceipt merges a receipt by ticket id, so re-polling the gateway
// for a ticket that already has a receipt is harmless.
func (s *GormStore) UpsertReceipt(ctx context.Context, receipt models.Receipt) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticket_id"}},
			UpdateAll: true,
		}).
		Create(&receipt).Error
}

func (s *GormStore) RemoveToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&models.DeviceToken{}, "token = ?", token).Error
}
