package entity

import (
	"time"

	"github.com/google/uuid"
)

// Quote is a priced offer to a customer
type Quote struct {
	ID                  int64      `json:"id"`
	QuoteNo             string     `json:"quote_no"`
	CustomerName        string     `json:"customer_name"`
	TotalAmount         float64    `json:"total_amount"`
	Status              string     `json:"status"`
	VoidStatus          string     `json:"void_status"`
	CollectorID         *int64     `json:"collector_id,omitempty"`
	CustomerConfirmerID *int64     `json:"customer_confirmer_id,omitempty"`
	FirstSubmittedAt    *time.Time `json:"first_submitted_at,omitempty"`
	CreatedBy           int64      `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// QuoteVersion is one version of a quote number. At most one version per
// quote number is active.
type QuoteVersion struct {
	ID        int64      `json:"id"`
	UID       uuid.UUID  `json:"uid"`
	QuoteNo   string     `json:"quote_no"`
	VersionNo int        `json:"version_no"`
	Active    bool       `json:"active"`
	ActiveAt  *time.Time `json:"active_at,omitempty"`
	CreatedBy int64      `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// Status maps the active flag onto the version workflow
func (v *QuoteVersion) Status() string {
	if v.Active {
		return VersionActive
	}
	return VersionInactive
}

// Payment is a customer payment recorded against a quote
type Payment struct {
	ID          int64     `json:"id"`
	QuoteID     int64     `json:"quote_id"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	SubmitterID int64     `json:"submitter_id"`
	ConfirmerID *int64    `json:"confirmer_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsUnconfirmed reports whether the payment can still be cancelled by a void
func (p *Payment) IsUnconfirmed() bool {
	switch p.Status {
	case PaymentStatusDraft, PaymentStatusSubmitted, PaymentStatusReturned:
		return true
	}
	return false
}

// VoidApplication asks finance to cancel a quote
type VoidApplication struct {
	ID          int64     `json:"id"`
	QuoteID     int64     `json:"quote_id"`
	ApplicantID int64     `json:"applicant_id"`
	Reason      string    `json:"reason"`
	Attachments []string  `json:"attachments,omitempty"`
	Status      string    `json:"status"`
	AuditorID   *int64    `json:"auditor_id,omitempty"`
	AuditNote   string    `json:"audit_note,omitempty"`
	Direct      bool      `json:"direct"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InvoiceApplication asks finance to issue an invoice for a quote
type InvoiceApplication struct {
	ID            int64     `json:"id"`
	ApplicationNo string    `json:"application_no"`
	QuoteID       int64     `json:"quote_id"`
	Amount        float64   `json:"amount"`
	InvoiceTitle  string    `json:"invoice_title"`
	ApplicantID   int64     `json:"applicant_id"`
	AuditorID     *int64    `json:"auditor_id,omitempty"`
	RejectReason  string    `json:"reject_reason,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsPending reports whether the application still awaits audit
func (a *InvoiceApplication) IsPending() bool {
	return a.Status == InvoiceApplicationSubmitted
}
