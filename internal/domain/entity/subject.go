package entity

import "fmt"

// SubjectType identifies a kind of document under workflow control
type SubjectType string

const (
	SubjectQuote              SubjectType = "QUOTE"
	SubjectQuoteVersion       SubjectType = "QUOTE_VERSION"
	SubjectVoidApplication    SubjectType = "QUOTE_VOID"
	SubjectCorrection         SubjectType = "CORRECTION"
	SubjectInvoiceApplication SubjectType = "INVOICE_APPLICATION"
	SubjectPermissionRequest  SubjectType = "PERMISSION_REQUEST"
	SubjectDamageRepair       SubjectType = "DAMAGE_REPAIR"
	SubjectDamageCompensation SubjectType = "DAMAGE_COMPENSATION"
	SubjectPayment            SubjectType = "PAYMENT"
)

var subjectTypes = map[SubjectType]bool{
	SubjectQuote:              true,
	SubjectQuoteVersion:       true,
	SubjectVoidApplication:    true,
	SubjectCorrection:         true,
	SubjectInvoiceApplication: true,
	SubjectPermissionRequest:  true,
	SubjectDamageRepair:       true,
	SubjectDamageCompensation: true,
	SubjectPayment:            true,
}

// String returns the string representation of the subject type
func (t SubjectType) String() string {
	return string(t)
}

// IsValid checks if the subject type is one of the defined constants
func (t SubjectType) IsValid() bool {
	return subjectTypes[t]
}

// SubjectRef points at one document under workflow control
type SubjectRef struct {
	Type SubjectType `json:"type"`
	ID   int64       `json:"id"`
}

// String renders the reference as TYPE:ID
func (r SubjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}
