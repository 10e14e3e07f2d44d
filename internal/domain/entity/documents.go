package entity

import "time"

// Correction requests a change to an already settled record. Executing it
// voids the target and creates a replacement.
type Correction struct {
	ID           int64      `json:"id"`
	CorrectionNo string     `json:"correction_no"`
	TargetType   string     `json:"target_type"`
	TargetID     int64      `json:"target_id"`
	Reason       string     `json:"reason"`
	Changes      string     `json:"changes"` // JSON object
	OccurredDate *time.Time `json:"occurred_date,omitempty"`
	Attachments  []string   `json:"attachments,omitempty"`
	Status       string     `json:"status"`
	NewRecordID  *int64     `json:"new_record_id,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PermissionRequest asks an administrator to grant capabilities to a user
type PermissionRequest struct {
	ID             int64     `json:"id"`
	ApplicantID    int64     `json:"applicant_id"`
	TargetUserID   int64     `json:"target_user_id"`
	Capabilities   []string  `json:"capabilities"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status"`
	HandledBy      *int64    `json:"handled_by,omitempty"`
	HandleNote     string    `json:"handle_note,omitempty"`
	SnapshotBefore []string  `json:"snapshot_before,omitempty"`
	SnapshotAfter  []string  `json:"snapshot_after,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsOpen reports whether the request still blocks a new one from the same applicant
func (r *PermissionRequest) IsOpen() bool {
	return r.Status == PermissionRequestPending || r.Status == PermissionRequestReturned
}

// DamageRecord tracks goods damaged in transit. REPAIR records progress
// through repair stages; COMPENSATION records through payment confirmation.
type DamageRecord struct {
	ID                 int64     `json:"id"`
	Behavior           string    `json:"behavior"`
	Description        string    `json:"description"`
	RepairStage        string    `json:"repair_stage,omitempty"`
	CompensationStatus string    `json:"compensation_status,omitempty"`
	SettlementDetails  string    `json:"settlement_details,omitempty"`
	RepairFee          *float64  `json:"repair_fee,omitempty"`
	PenaltyAmount      *float64  `json:"penalty_amount,omitempty"`
	CompensationAmount *float64  `json:"compensation_amount,omitempty"`
	ProofURLs          []string  `json:"proof_urls,omitempty"`
	OperatorID         *int64    `json:"operator_id,omitempty"`
	CreatedBy          int64     `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CarrierRule recommends a carrier when its keyword appears in an address
type CarrierRule struct {
	ID          int64     `json:"id"`
	CarrierName string    `json:"carrier_name"`
	Keyword     string    `json:"keyword"`
	Priority    int       `json:"priority"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}
