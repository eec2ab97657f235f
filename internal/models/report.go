package models

import "time"

// ReportReason is why a review was reported
type ReportReason string

const (
	ReportReasonSpam      ReportReason = "SPAM"
	ReportReasonOffensive ReportReason = "OFFENSIVE"
	ReportReasonFake      ReportReason = "FAKE"
	ReportReasonOther     ReportReason = "OTHER"
)

// ReportStatus is the moderation state of a report
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "PENDING"
	ReportStatusApproved ReportStatus = "APPROVED"
	ReportStatusRejected ReportStatus = "REJECTED"
	ReportStatusIgnored  ReportStatus = "IGNORED"
)

// ParseReportReason maps a source value onto a known reason.
// Unrecognized or missing values fold to OTHER.
func ParseReportReason(s *string) ReportReason {
	if s == nil {
		return ReportReasonOther
	}
	switch r := ReportReason(*s); r {
	case ReportReasonSpam, ReportReasonOffensive, ReportReasonFake, ReportReasonOther:
		return r
	default:
		return ReportReasonOther
	}
}

// ParseReportStatus maps a source value onto a known status.
// Unrecognized or missing values fold to PENDING.
func ParseReportStatus(s *string) ReportStatus {
	if s == nil {
		return ReportStatusPending
	}
	switch st := ReportStatus(*s); st {
	case ReportStatusPending, ReportStatusApproved, ReportStatusRejected, ReportStatusIgnored:
		return st
	default:
		return ReportStatusPending
	}
}

// ReviewReportRow is a report as read from the source store
type ReviewReportRow struct {
	ID          int64     `db:"id" validate:"gt=0"`
	ReviewID    int64     `db:"review_id" validate:"gt=0"`
	ReporterID  int64     `db:"reporter_id" validate:"gt=0"`
	Reason      *string   `db:"reason"`
	Description *string   `db:"description"`
	Status      *string   `db:"status"`
	HandledBy   *int64    `db:"handled_by"`
	CreatedAt   Timestamp `db:"created_at"`
	HandledAt   Timestamp `db:"handled_at"`
}

// ReviewReportDocument is the destination representation of a report.
// ReporterName and HandleNote have no source column and start empty.
type ReviewReportDocument struct {
	ID           string       `json:"id" bson:"_id"`
	ReviewID     string       `json:"reviewId" bson:"reviewId"`
	ReporterID   int64        `json:"reporterId" bson:"reporterId"`
	ReporterName string       `json:"reporterName" bson:"reporterName"`
	Reason       ReportReason `json:"reason" bson:"reason"`
	Description  string       `json:"description" bson:"description"`
	Status       ReportStatus `json:"status" bson:"status"`
	HandledBy    *int64       `json:"handledBy" bson:"handledBy"`
	HandledAt    *time.Time   `json:"handledAt" bson:"handledAt"`
	HandleNote   string       `json:"handleNote" bson:"handleNote"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
}

// DocumentID returns the destination identity
func (d ReviewReportDocument) DocumentID() string {
	return d.ID
}
