package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
)

// Item error kinds reported inside batch results. A sent item carrying
// KindStateConflict was delivered but its request changed while the message
// was in flight.
const (
	KindInvalidContact     = "invalid_contact"
	KindInvalidText        = "invalid_review_text"
	KindGeneration         = "generation_error"
	KindCodeSpaceExhausted = "code_space_exhausted"
	KindNotFound           = "not_found"
	KindAlreadySent        = "already_sent"
	KindAlreadyClicked     = "already_clicked"
	KindRetryLimit         = "retry_limit_reached"
	KindInProgress         = "in_progress"
	KindLockUnavailable    = "lock_unavailable"
	KindBackendUnavailable = "backend_unavailable"
	KindConfiguration      = "configuration_error"
	KindInternal           = "internal_error"
	KindStateConflict      = "state_conflict"
	KindCanceled           = "canceled"
)

// Per-item outcomes.
const (
	ItemGenerated = "generated"
	ItemSent      = "sent"
	ItemFailed    = "failed"
	ItemSkipped   = "skipped"
	ItemError     = "error"
)

type ContactInput struct {
	Contact string `json:"contact"`
	Carrier string `json:"carrier,omitempty"`
}

// GenerateRequest names the business either by id/slug or by a place query
// (Maps URL, short link or business name).
type GenerateRequest struct {
	BusinessRef string         `json:"business_id,omitempty"`
	PlaceQuery  string         `json:"place_url,omitempty"`
	Contacts    []ContactInput `json:"contacts"`
	Tone        string         `json:"tone,omitempty"`
	// BaseURL is the public origin for links when none is configured.
	BaseURL string `json:"-"`
}

type GenerateItem struct {
	Index      int          `json:"index"`
	Contact    string       `json:"contact"`
	Status     string       `json:"status"`
	ID         snowflake.ID `json:"id,omitempty"`
	ShortCode  string       `json:"short_code,omitempty"`
	Link       string       `json:"link,omitempty"`
	ReviewText string       `json:"review_text,omitempty"`
	Preview    string       `json:"preview,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type BatchResult struct {
	BatchID  string                  `json:"batch_id"`
	Business businessdomain.Business `json:"business"`
	Items    []GenerateItem          `json:"items"`
}

type SendItem struct {
	ID snowflake.ID `json:"id"`
	// ReviewText replaces the stored text before dispatch when it differs.
	ReviewText string `json:"review_text,omitempty"`
	// Body overrides the composed message; the link is appended if missing.
	Body string `json:"body,omitempty"`
}

type SendRequest struct {
	Items []SendItem `json:"items"`
	// Carrier applies to requests stored without one.
	Carrier string `json:"carrier,omitempty"`
	BaseURL string `json:"-"`
}

type SendItemResult struct {
	ID            snowflake.ID        `json:"id"`
	Status        string              `json:"status"`
	RequestStatus reviewdomain.Status `json:"request_status,omitempty"`
	Backend       string              `json:"backend,omitempty"`
	MessageID     string              `json:"message_id,omitempty"`
	ErrorKind     string              `json:"error_kind,omitempty"`
	Error         string              `json:"error,omitempty"`
}

type SendResult struct {
	Backend string           `json:"backend"`
	Items   []SendItemResult `json:"items"`
}

type RegenerateRequest struct {
	NewCode bool   `json:"new_code"`
	Tone    string `json:"tone,omitempty"`
	BaseURL string `json:"-"`
}

type RegenerateResult struct {
	ReviewRequest reviewdomain.ReviewRequest `json:"review_request"`
	Link          string                     `json:"link"`
}

type Dashboard struct {
	Business         businessdomain.Business      `json:"business"`
	Stats            reviewdomain.Stats           `json:"stats"`
	ClickThroughRate float64                      `json:"click_through_rate"`
	Recent           []reviewdomain.ReviewRequest `json:"recent"`
}

type SendTestRequest struct {
	Contact string `json:"contact"`
	Carrier string `json:"carrier,omitempty"`
}

// Link joins the public origin and a short code.
func Link(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/r/" + code
}
