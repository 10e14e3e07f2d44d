package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// Document-specific actions
const (
	ActionAssignCollector domainwf.Action = "ASSIGN_COLLECTOR"
	ActionFallback        domainwf.Action = "FALLBACK"
	ActionVoid            domainwf.Action = "VOID"
	ActionPayPartial      domainwf.Action = "PAY_PARTIAL"
	ActionPayFull         domainwf.Action = "PAY_FULL"
	ActionDirectVoid      domainwf.Action = "DIRECT_VOID"
	ActionStartRepair     domainwf.Action = "START_REPAIR"
	ActionFinishRepair    domainwf.Action = "FINISH_REPAIR"
	ActionSettle          domainwf.Action = "SETTLE"
	ActionConfirm         domainwf.Action = "CONFIRM"
	ActionCorrect         domainwf.Action = "CORRECT"
	ActionActivate        domainwf.Action = "ACTIVATE"
	ActionDeactivate      domainwf.Action = "DEACTIVATE"
)

// Default capabilities. A capability policy may override any of them.
const (
	CapQuoteSubmit          domainwf.Capability = "quote.submit"
	CapQuoteFinanceAudit    domainwf.Capability = "quote.finance_audit"
	CapQuoteAssignCollector domainwf.Capability = "quote.assign_collector"
	CapQuoteFallback        domainwf.Capability = "quote.fallback"
	CapVoidApply            domainwf.Capability = "quote.void.apply"
	CapVoidAudit            domainwf.Capability = "quote.void.audit"
	CapVoidDirect           domainwf.Capability = "quote.void.direct"
	CapCorrectionSubmit     domainwf.Capability = "correction.submit"
	CapCorrectionApprove    domainwf.Capability = "correction.approve_execute"
	CapInvoiceAudit         domainwf.Capability = "invoice.audit"
	CapPermissionDecide     domainwf.Capability = "permission.decide"
	CapDamageRepair         domainwf.Capability = "damage.repair"
	CapDamageSettle         domainwf.Capability = "damage.settle"
	CapCompensationConfirm  domainwf.Capability = "damage.compensation.confirm"
	CapPaymentSubmit        domainwf.Capability = "payment.submit"
	CapPaymentConfirm       domainwf.Capability = "payment.confirm"
	CapVersionActivate      domainwf.Capability = "quote.version.activate"
)

// Hook names referenced by the definitions
const (
	HookQuoteSubmitted      = "quote.submitted"
	HookQuoteCollector      = "quote.collector"
	HookVoidApplying        = "void.applying"
	HookVoidExecute         = "void.execute"
	HookVoidRejected        = "void.rejected"
	HookCorrectionSubmitted = "correction.submitted"
	HookCorrectionExecute   = "correction.execute"
	HookCorrectionRejected  = "correction.rejected"
	HookInvoiceAudited      = "invoice.audited"
	HookPermissionGrant     = "permission.grant"
	HookPermissionHandled   = "permission.handled"
	HookDamageOperator      = "damage.operator"
	HookDamageSettled       = "damage.settled"
	HookCompensationPaid    = "damage.compensation_paid"
	HookPaymentHandled      = "payment.handled"
	HookPaymentConfirmed    = "payment.confirmed"
	HookVersionActivated    = "version.activated"
)

// Payload keys read by guards
const (
	KeyCollectorID       = "collectorId"
	KeyAttachments       = "attachments"
	KeySettlementDetails = "settlementDetails"
	KeyRepairFee         = "repairFee"
	KeyPenaltyAmount     = "penaltyAmount"
	KeyAmount            = "amount"
	KeyProofURL          = "proofUrl"
	KeyConfirmerID       = "customerConfirmerId"
)

// QuoteDefinition describes the quote lifecycle. SUBMITTED, APPROVED and
// REJECTED of the generic document vocabulary are APPROVAL_PENDING,
// CONFIRMED and RETURNED here.
func QuoteDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectQuote)).
		States(
			entity.QuoteStatusDraft,
			entity.QuoteStatusApprovalPending,
			entity.QuoteStatusReturned,
			entity.QuoteStatusConfirmed,
			entity.QuoteStatusPartialPaid,
			entity.QuoteStatusPaid,
			entity.QuoteStatusCancelled,
		).
		Initial(entity.QuoteStatusDraft).
		Terminal(entity.QuoteStatusCancelled)

	submit := []domainwf.TransitionOption{
		domainwf.RequireCapability(CapQuoteSubmit),
		domainwf.WithHook(HookQuoteSubmitted),
	}
	fallback := []domainwf.TransitionOption{
		domainwf.RequireCapability(CapQuoteFallback),
		domainwf.WithGuard(domainwf.RequireReason()),
	}
	assign := []domainwf.TransitionOption{
		domainwf.RequireCapability(CapQuoteAssignCollector),
		domainwf.WithGuard(domainwf.RequirePayload(KeyCollectorID)),
		domainwf.WithHook(HookQuoteCollector),
	}
	void := domainwf.WithGuard(reasonRequiredFrom(entity.QuoteStatusPaid))

	b.Configure(entity.QuoteStatusDraft).
		Permit(domainwf.ActionSubmit, entity.QuoteStatusApprovalPending, submit...).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	b.Configure(entity.QuoteStatusReturned).
		Permit(domainwf.ActionSubmit, entity.QuoteStatusApprovalPending, submit...).
		Permit(ActionFallback, entity.QuoteStatusDraft, fallback...).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	b.Configure(entity.QuoteStatusApprovalPending).
		Permit(domainwf.ActionApprove, entity.QuoteStatusConfirmed,
			domainwf.RequireCapability(CapQuoteFinanceAudit),
			domainwf.WithHook(HookQuoteCollector)).
		Permit(domainwf.ActionReject, entity.QuoteStatusReturned,
			domainwf.RequireCapability(CapQuoteFinanceAudit)).
		Permit(ActionFallback, entity.QuoteStatusDraft, fallback...).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	b.Configure(entity.QuoteStatusConfirmed).
		Permit(ActionAssignCollector, entity.QuoteStatusConfirmed, assign...).
		Permit(ActionFallback, entity.QuoteStatusApprovalPending, fallback...).
		Permit(ActionPayPartial, entity.QuoteStatusPartialPaid).
		Permit(ActionPayFull, entity.QuoteStatusPaid).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	b.Configure(entity.QuoteStatusPartialPaid).
		Permit(ActionAssignCollector, entity.QuoteStatusPartialPaid, assign...).
		Permit(ActionPayPartial, entity.QuoteStatusPartialPaid, domainwf.Idempotent()).
		Permit(ActionPayFull, entity.QuoteStatusPaid).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	// A payment correction may lower the confirmed sum below the total
	b.Configure(entity.QuoteStatusPaid).
		Permit(ActionAssignCollector, entity.QuoteStatusPaid, assign...).
		Permit(ActionPayPartial, entity.QuoteStatusPartialPaid).
		Permit(ActionPayFull, entity.QuoteStatusPaid, domainwf.Idempotent()).
		Permit(ActionVoid, entity.QuoteStatusCancelled, void)

	return b.Build()
}

// VoidApplicationDefinition describes a request to cancel a quote, including
// the direct-void bypass
func VoidApplicationDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectVoidApplication)).
		States(
			entity.VoidApplicationDraft,
			entity.VoidApplicationSubmitted,
			entity.VoidApplicationPassed,
			entity.VoidApplicationRejected,
		).
		Initial(entity.VoidApplicationDraft).
		Terminal(entity.VoidApplicationPassed, entity.VoidApplicationRejected)

	b.Configure(entity.VoidApplicationDraft).
		Permit(domainwf.ActionSubmit, entity.VoidApplicationSubmitted,
			domainwf.RequireCapability(CapVoidApply),
			domainwf.WithHook(HookVoidApplying)).
		Permit(ActionDirectVoid, entity.VoidApplicationPassed,
			domainwf.RequireCapability(CapVoidDirect),
			domainwf.WithGuard(domainwf.RequireReason()),
			domainwf.WithHook(HookVoidExecute))

	b.Configure(entity.VoidApplicationSubmitted).
		Permit(domainwf.ActionApprove, entity.VoidApplicationPassed,
			domainwf.RequireCapability(CapVoidAudit),
			domainwf.WithHook(HookVoidExecute)).
		Permit(domainwf.ActionReject, entity.VoidApplicationRejected,
			domainwf.RequireCapability(CapVoidAudit),
			domainwf.WithHook(HookVoidRejected))

	return b.Build()
}

// CorrectionDefinition describes a correction of a settled record
func CorrectionDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectCorrection)).
		States(
			entity.CorrectionStatusDraft,
			entity.CorrectionStatusSubmitted,
			entity.CorrectionStatusExecuted,
			entity.CorrectionStatusRejected,
		).
		Initial(entity.CorrectionStatusDraft).
		Terminal(entity.CorrectionStatusExecuted, entity.CorrectionStatusRejected)

	b.Configure(entity.CorrectionStatusDraft).
		Permit(domainwf.ActionSubmit, entity.CorrectionStatusSubmitted,
			domainwf.RequireCapability(CapCorrectionSubmit),
			domainwf.WithGuard(requireList(KeyAttachments)),
			domainwf.WithHook(HookCorrectionSubmitted))

	b.Configure(entity.CorrectionStatusSubmitted).
		Permit(domainwf.ActionApprove, entity.CorrectionStatusExecuted,
			domainwf.RequireCapability(CapCorrectionApprove),
			domainwf.WithHook(HookCorrectionExecute)).
		Permit(domainwf.ActionReject, entity.CorrectionStatusRejected,
			domainwf.RequireCapability(CapCorrectionApprove),
			domainwf.WithHook(HookCorrectionRejected))

	return b.Build()
}

// InvoiceApplicationDefinition describes the audit of an invoice request
func InvoiceApplicationDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectInvoiceApplication)).
		States(
			entity.InvoiceApplicationSubmitted,
			entity.InvoiceApplicationApproved,
			entity.InvoiceApplicationRejected,
			entity.InvoiceApplicationCancelled,
		).
		Initial(entity.InvoiceApplicationSubmitted).
		Terminal(
			entity.InvoiceApplicationApproved,
			entity.InvoiceApplicationRejected,
			entity.InvoiceApplicationCancelled,
		)

	b.Configure(entity.InvoiceApplicationSubmitted).
		Permit(domainwf.ActionApprove, entity.InvoiceApplicationApproved,
			domainwf.RequireCapability(CapInvoiceAudit),
			domainwf.WithHook(HookInvoiceAudited)).
		Permit(domainwf.ActionReject, entity.InvoiceApplicationRejected,
			domainwf.RequireCapability(CapInvoiceAudit),
			domainwf.WithGuard(domainwf.RequireReason()),
			domainwf.WithHook(HookInvoiceAudited)).
		Permit(domainwf.ActionCancel, entity.InvoiceApplicationCancelled)

	b.Configure(entity.InvoiceApplicationCancelled).
		Permit(domainwf.ActionCancel, entity.InvoiceApplicationCancelled, domainwf.Idempotent())

	return b.Build()
}

// PermissionRequestDefinition describes a capability request decided by an administrator
func PermissionRequestDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectPermissionRequest)).
		States(
			entity.PermissionRequestPending,
			entity.PermissionRequestReturned,
			entity.PermissionRequestApproved,
			entity.PermissionRequestRejected,
		).
		Initial(entity.PermissionRequestPending).
		Terminal(entity.PermissionRequestApproved, entity.PermissionRequestRejected)

	b.Configure(entity.PermissionRequestPending).
		Permit(domainwf.ActionApprove, entity.PermissionRequestApproved,
			domainwf.RequireCapability(CapPermissionDecide),
			domainwf.WithHook(HookPermissionGrant)).
		Permit(domainwf.ActionReject, entity.PermissionRequestRejected,
			domainwf.RequireCapability(CapPermissionDecide),
			domainwf.WithHook(HookPermissionHandled)).
		Permit(domainwf.ActionReturn, entity.PermissionRequestReturned,
			domainwf.RequireCapability(CapPermissionDecide),
			domainwf.WithGuard(domainwf.RequireReason()),
			domainwf.WithHook(HookPermissionHandled))

	b.Configure(entity.PermissionRequestReturned).
		Permit(domainwf.ActionResubmit, entity.PermissionRequestPending)

	return b.Build()
}

// DamageRepairDefinition describes the repair stage progression of a damaged item
func DamageRepairDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectDamageRepair)).
		States(
			entity.RepairStageReturned,
			entity.RepairStageRepairing,
			entity.RepairStageRepaired,
			entity.RepairStageSettled,
		).
		Initial(entity.RepairStageReturned).
		Terminal(entity.RepairStageSettled)

	settle := []domainwf.TransitionOption{
		domainwf.RequireCapability(CapDamageSettle),
		domainwf.WithGuard(domainwf.RequirePayload(KeySettlementDetails, KeyRepairFee)),
		domainwf.WithHook(HookDamageSettled),
	}

	b.Configure(entity.RepairStageReturned).
		Permit(ActionStartRepair, entity.RepairStageRepairing,
			domainwf.RequireCapability(CapDamageRepair),
			domainwf.WithHook(HookDamageOperator)).
		Permit(ActionSettle, entity.RepairStageSettled, settle...)

	b.Configure(entity.RepairStageRepairing).
		Permit(ActionFinishRepair, entity.RepairStageRepaired,
			domainwf.RequireCapability(CapDamageRepair),
			domainwf.WithHook(HookDamageOperator)).
		Permit(ActionSettle, entity.RepairStageSettled, settle...)

	b.Configure(entity.RepairStageRepaired).
		Permit(ActionSettle, entity.RepairStageSettled, settle...)

	return b.Build()
}

// DamageCompensationDefinition describes the confirmation of a compensation payment
func DamageCompensationDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectDamageCompensation)).
		States(entity.CompensationUnpaid, entity.CompensationPaid).
		Initial(entity.CompensationUnpaid).
		Terminal(entity.CompensationPaid)

	b.Configure(entity.CompensationUnpaid).
		Permit(ActionConfirm, entity.CompensationPaid,
			domainwf.RequireCapability(CapCompensationConfirm),
			domainwf.WithGuard(domainwf.AllOf(
				positiveAmount(KeyAmount),
				domainwf.RequirePayload(KeyProofURL),
			)),
			domainwf.WithHook(HookCompensationPaid))

	return b.Build()
}

// PaymentDefinition describes a customer payment from entry to confirmation
func PaymentDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectPayment)).
		States(
			entity.PaymentStatusDraft,
			entity.PaymentStatusSubmitted,
			entity.PaymentStatusReturned,
			entity.PaymentStatusConfirmed,
			entity.PaymentStatusCancelled,
		).
		Initial(entity.PaymentStatusDraft).
		Terminal(entity.PaymentStatusCancelled)

	submit := domainwf.RequireCapability(CapPaymentSubmit)

	b.Configure(entity.PaymentStatusDraft).
		Permit(domainwf.ActionSubmit, entity.PaymentStatusSubmitted, submit).
		Permit(domainwf.ActionCancel, entity.PaymentStatusCancelled)

	b.Configure(entity.PaymentStatusReturned).
		Permit(domainwf.ActionSubmit, entity.PaymentStatusSubmitted, submit).
		Permit(domainwf.ActionCancel, entity.PaymentStatusCancelled)

	b.Configure(entity.PaymentStatusSubmitted).
		Permit(ActionConfirm, entity.PaymentStatusConfirmed,
			domainwf.RequireCapability(CapPaymentConfirm),
			domainwf.WithHook(HookPaymentConfirmed)).
		Permit(domainwf.ActionReturn, entity.PaymentStatusReturned,
			domainwf.RequireCapability(CapPaymentConfirm),
			domainwf.WithGuard(domainwf.RequireReason()),
			domainwf.WithHook(HookPaymentHandled)).
		Permit(domainwf.ActionCancel, entity.PaymentStatusCancelled)

	// Confirmed payments leave only through a correction
	b.Configure(entity.PaymentStatusConfirmed).
		Permit(ActionCorrect, entity.PaymentStatusCancelled)

	b.Configure(entity.PaymentStatusCancelled).
		Permit(domainwf.ActionCancel, entity.PaymentStatusCancelled, domainwf.Idempotent())

	return b.Build()
}

// QuoteVersionDefinition describes the active flag of a quote version
func QuoteVersionDefinition() *domainwf.Definition {
	b := domainwf.NewBuilder(string(entity.SubjectQuoteVersion)).
		States(entity.VersionInactive, entity.VersionActive).
		Initial(entity.VersionInactive)

	b.Configure(entity.VersionInactive).
		Permit(ActionActivate, entity.VersionActive,
			domainwf.RequireCapability(CapVersionActivate),
			domainwf.WithHook(HookVersionActivated))

	b.Configure(entity.VersionActive).
		Permit(ActionActivate, entity.VersionActive,
			domainwf.RequireCapability(CapVersionActivate),
			domainwf.Idempotent()).
		Permit(ActionDeactivate, entity.VersionInactive)

	return b.Build()
}

// reasonRequiredFrom requires a reason only when leaving the given state
func reasonRequiredFrom(state domainwf.State) domainwf.GuardFunc {
	requireReason := domainwf.RequireReason()
	return func(ctx context.Context, from domainwf.State, in domainwf.Input) error {
		if from != state {
			return nil
		}
		return requireReason(ctx, from, in)
	}
}

func requireList(key string) domainwf.GuardFunc {
	return func(_ context.Context, _ domainwf.State, in domainwf.Input) error {
		for _, item := range in.Payload.Strings(key) {
			if strings.TrimSpace(item) != "" {
				return nil
			}
		}
		return errors.New(key + " are required")
	}
}

func positiveAmount(key string) domainwf.GuardFunc {
	return func(_ context.Context, _ domainwf.State, in domainwf.Input) error {
		amount, ok := in.Payload.Float(key)
		if !ok || amount <= 0 {
			return errors.New(key + " must be greater than zero")
		}
		return nil
	}
}
