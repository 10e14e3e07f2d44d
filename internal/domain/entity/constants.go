package entity

// Quote statuses
const (
	QuoteStatusDraft           = "DRAFT"
	QuoteStatusApprovalPending = "APPROVAL_PENDING"
	QuoteStatusReturned        = "RETURNED"
	QuoteStatusConfirmed       = "CONFIRMED"
	QuoteStatusPartialPaid     = "PARTIAL_PAID"
	QuoteStatusPaid            = "PAID"
	QuoteStatusCancelled       = "CANCELLED"
)

// Quote void statuses, tracked beside the quote status
const (
	VoidStatusNone     = "NONE"
	VoidStatusApplying = "APPLYING"
	VoidStatusVoided   = "VOIDED"
	VoidStatusRejected = "REJECTED"
)

// Void application statuses
const (
	VoidApplicationDraft     = "DRAFT"
	VoidApplicationSubmitted = "SUBMITTED"
	VoidApplicationPassed    = "PASSED"
	VoidApplicationRejected  = "REJECTED"
)

// Correction statuses
const (
	CorrectionStatusDraft     = "DRAFT"
	CorrectionStatusSubmitted = "SUBMITTED"
	CorrectionStatusExecuted  = "EXECUTED"
	CorrectionStatusRejected  = "REJECTED"
)

// Correction target types
const (
	CorrectionTargetQuote       = "QUOTE"
	CorrectionTargetPayment     = "PAYMENT"
	CorrectionTargetExpense     = "EXPENSE"
	CorrectionTargetFreightBill = "FREIGHT_BILL"
)

// Invoice application statuses
const (
	InvoiceApplicationSubmitted = "SUBMITTED"
	InvoiceApplicationApproved  = "APPROVED"
	InvoiceApplicationRejected  = "REJECTED"
	InvoiceApplicationCancelled = "CANCELLED"
)

// Permission request statuses
const (
	PermissionRequestPending  = "PENDING"
	PermissionRequestApproved = "APPROVED"
	PermissionRequestRejected = "REJECTED"
	PermissionRequestReturned = "RETURNED"
)

// Damage treatment behaviours
const (
	DamageBehaviorRepair       = "REPAIR"
	DamageBehaviorCompensation = "COMPENSATION"
)

// Damage repair stages
const (
	RepairStageReturned  = "RETURNED"
	RepairStageRepairing = "REPAIRING"
	RepairStageRepaired  = "REPAIRED"
	RepairStageSettled   = "SETTLED"
)

// Damage compensation statuses
const (
	CompensationUnpaid = "UNPAID"
	CompensationPaid   = "PAID"
)

// Payment statuses
const (
	PaymentStatusDraft     = "DRAFT"
	PaymentStatusSubmitted = "SUBMITTED"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusReturned  = "RETURNED"
	PaymentStatusCancelled = "CANCELLED"
)

// Quote version statuses, derived from the active flag
const (
	VersionInactive = "INACTIVE"
	VersionActive   = "ACTIVE"
)
