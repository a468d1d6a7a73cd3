package domain

import (
	"strings"
	"time"
)

// Alphabet omits 0/o and 1/i/l so codes survive being read aloud or retyped.
const Alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const (
	DefaultLength      = 7
	DefaultMaxAttempts = 5
	MinLength          = 6
	MaxLength          = 8
)

// ShortCode is the durable record of an issued code. Rows are never deleted;
// a retired code keeps its row so it can never be issued again.
type ShortCode struct {
	Code      string     `gorm:"primaryKey;size:16" json:"code"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
}

func (ShortCode) TableName() string { return "short_codes" }

// Normalize canonicalizes user-supplied codes. It reports false for anything
// that could not have been issued.
func Normalize(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) < MinLength || len(code) > MaxLength {
		return "", false
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return "", false
		}
	}
	return code, true
}
