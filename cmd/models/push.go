package models

import (
	"time"
)

// Ticket statuses. A ticket starts queued and is overwritten with the
// receipt outcome once reconciliation sees one.
const (
	TicketStatusQueued = "queued"
	TicketStatusOK     = "ok"
	TicketStatusError  = "error"
)

// Receipt statuses as reported by the push gateway
const (
	ReceiptStatusOK    = "ok"
	ReceiptStatusError = "error"
)

// Ticket records that the push gateway accepted a message for a token.
// It is not proof of delivery; that comes later as a Receipt.
type Ticket struct {
	TicketID    string    `gorm:"primaryKey" json:"ticketId"`
	Token       string    `gorm:"index;not null" json:"token"`
	BroadcastID string    `gorm:"index" json:"broadcastId"`
	Status      string    `gorm:"type:varchar(20);index" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Receipt is the gateway's asynchronous report of a ticket's final outcome.
// ErrorCode is only set when Status is error.
type Receipt struct {
	TicketID   string    `gorm:"primaryKey" json:"ticketId"`
	Status     string    `gorm:"type:varchar(20)" json:"status"`
	ErrorCode  string    `gorm:"type:varchar(50)" json:"errorCode,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// SegmentRequest selects the audience for a broadcast
type SegmentRequest struct {
	Env     string `json:"env,omitempty"`
	StoreID string `json:"storeId,omitempty"`
}

// BroadcastRequest represents a request to broadcast to a segment
type BroadcastRequest struct {
	Title   string                 `json:"title"`
	Body    string                 `json:"body"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Segment SegmentRequest         `json:"segment"`
}
