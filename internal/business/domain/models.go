package domain

import (
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
)

const writeReviewURL = "https://search.google.com/local/writereview"

type Business struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"not null" json:"name"`
	Slug          string       `gorm:"not null;uniqueIndex" json:"slug"`
	GooglePlaceID string       `gorm:"column:google_place_id;not null;uniqueIndex" json:"google_place_id"`
	Address       string       `gorm:"not null;default:''" json:"address"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Business) TableName() string { return "businesses" }

// ReviewURL is where a clicked short link sends the customer.
func (b Business) ReviewURL() string {
	return writeReviewURL + "?placeid=" + url.QueryEscape(b.GooglePlaceID)
}
