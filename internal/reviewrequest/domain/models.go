package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusGenerated Status = "generated"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusClicked   Status = "clicked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusGenerated, StatusSent, StatusFailed, StatusClicked:
		return true
	default:
		return false
	}
}

type ReviewRequest struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID      snowflake.ID `gorm:"not null;index:idx_review_requests_business_created,priority:1" json:"business_id"`
	ShortCode       string       `gorm:"not null;uniqueIndex;size:16" json:"short_code"`
	CustomerContact string       `gorm:"not null" json:"customer_contact"`
	Carrier         string       `gorm:"not null;default:''" json:"carrier,omitempty"`
	ReviewText      string       `gorm:"not null" json:"review_text"`
	Status          Status       `gorm:"not null;size:16;index" json:"status"`
	SendAttempts    int          `gorm:"not null;default:0" json:"send_attempts"`
	LastError       string       `gorm:"not null;default:''" json:"last_error,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;index:idx_review_requests_business_created,priority:2" json:"created_at"`
	SentAt          *time.Time   `json:"sent_at,omitempty"`
	ClickedAt       *time.Time   `json:"clicked_at,omitempty"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`

	// DispatchClaimedAt is set while one sender owns the dispatch of the
	// request. A claim older than the lease is treated as abandoned.
	DispatchClaimedAt *time.Time `json:"-"`
}

func (ReviewRequest) TableName() string { return "review_requests" }

const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// DispatchAttempt is the history row behind ReviewRequest.SendAttempts.
type DispatchAttempt struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ReviewRequestID snowflake.ID      `gorm:"not null;index" json:"review_request_id"`
	Backend         string            `gorm:"not null" json:"backend"`
	Outcome         string            `gorm:"not null" json:"outcome"`
	ErrorKind       string            `gorm:"not null;default:''" json:"error_kind,omitempty"`
	Detail          datatypes.JSONMap `json:"detail,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (DispatchAttempt) TableName() string { return "dispatch_attempts" }

// Stats aggregates persisted requests of one business.
type Stats struct {
	Counts        map[Status]int64 `json:"counts"`
	Total         int64            `json:"total"`
	SentTotal     int64            `json:"sent_total"`
	LastCreatedAt *time.Time       `json:"last_created_at,omitempty"`
	LastSentAt    *time.Time       `json:"last_sent_at,omitempty"`
	LastClickedAt *time.Time       `json:"last_clicked_at,omitempty"`
}
