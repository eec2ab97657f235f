package models

import "time"

// ReviewLikeRow is a like as read from the source store
type ReviewLikeRow struct {
	ID        int64     `db:"id" validate:"gt=0"`
	ReviewID  int64     `db:"review_id" validate:"gt=0"`
	UserID    int64     `db:"user_id" validate:"gt=0"`
	CreatedAt Timestamp `db:"created_at"`
}

// ReviewLikeDocument is the destination representation of a like.
// (reviewId, userId) is unique in the destination collection.
type ReviewLikeDocument struct {
	ID        string    `json:"id" bson:"_id"`
	ReviewID  string    `json:"reviewId" bson:"reviewId"`
	UserID    int64     `json:"userId" bson:"userId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// DocumentID returns the destination identity
func (d ReviewLikeDocument) DocumentID() string {
	return d.ID
}
