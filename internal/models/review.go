package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModerationStatusApproved is the only moderation state migrated
const ModerationStatusApproved = "APPROVED"

// ReviewRow is an approved review as read from the source store, with the
// author and stall columns already joined in
type ReviewRow struct {
	ID             int64               `db:"id" validate:"gt=0"`
	StallID        int64               `db:"stall_id" validate:"gt=0"`
	StallName      *string             `db:"stall_name"`
	UserID         int64               `db:"user_id" validate:"gt=0"`
	Username       *string             `db:"username"`
	UserAvatarURL  *string             `db:"user_avatar_url"`
	Rating         decimal.Decimal     `db:"rating"`
	Comment        *string             `db:"comment"`
	ImageURLs      ImageURLs           `db:"image_urls"`
	TotalCost      decimal.NullDecimal `db:"total_cost"`
	NumberOfPeople *int64              `db:"number_of_people"`
	LikesCount     *int64              `db:"likes_count"`
	CreatedAt      Timestamp           `db:"created_at"`
	UpdatedAt      Timestamp           `db:"updated_at"`
}

// ReviewDocument is the destination representation of a review
type ReviewDocument struct {
	ID             string    `json:"id" bson:"_id"`
	StallID        int64     `json:"stallId" bson:"stallId"`
	StallName      string    `json:"stallName" bson:"stallName"`
	UserID         int64     `json:"userId" bson:"userId"`
	Username       string    `json:"username" bson:"username"`
	UserAvatarURL  string    `json:"userAvatarUrl" bson:"userAvatarUrl"`
	Rating         float64   `json:"rating" bson:"rating"`
	Comment        string    `json:"comment" bson:"comment"`
	ImageURLs      []string  `json:"imageUrls" bson:"imageUrls"`
	TotalCost      *float64  `json:"totalCost" bson:"totalCost"`
	NumberOfPeople *int      `json:"numberOfPeople" bson:"numberOfPeople"`
	LikesCount     int       `json:"likesCount" bson:"likesCount"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DocumentID returns the destination identity
func (d ReviewDocument) DocumentID() string {
	return d.ID
}
