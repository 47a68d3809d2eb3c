// Package events defines the platform's domain events and the bus that
// routes them to listeners.
//
// Events are immutable facts emitted after a state transition. Each carries
// enough context for handlers to act without re-querying mutable state.
package events

import (
	id "equitrail/pkg/domain"
)

// Event is a domain fact. Name identifies the event for routing; payloads
// must be JSON-serializable since async listeners receive them via the queue.
type Event interface {
	Name() string
}

// Event names.
const (
	NameDisclosureApproved  = "disclosure_approved"
	NameChargebackConfirmed = "chargeback_confirmed"
	NameKYCVerified         = "kyc_verified"
	NameTicketEscalated     = "ticket_escalated"
	NameTicketClosed        = "ticket_closed"
)

// DisclosureApproved fires when a compliance reviewer approves a company
// disclosure document.
type DisclosureApproved struct {
	DisclosureID id.DisclosureID `json:"disclosure_id"`
	Approver     string          `json:"approver"`
}

func (DisclosureApproved) Name() string { return NameDisclosureApproved }

// ChargebackConfirmed fires when a payment processor confirms a chargeback
// against an investor's payment. Amounts are integer paise.
type ChargebackConfirmed struct {
	UserID      id.UserID    `json:"user_id"`
	PaymentID   id.PaymentID `json:"payment_id"`
	AmountPaise int64        `json:"amount_paise"`
	Reason      string       `json:"reason"`
}

func (ChargebackConfirmed) Name() string { return NameChargebackConfirmed }

// KYCVerified fires when a user completes identity verification.
type KYCVerified struct {
	UserID id.UserID `json:"user_id"`
}

func (KYCVerified) Name() string { return NameKYCVerified }

// TicketEscalated fires when a support ticket is escalated to the admin team.
type TicketEscalated struct {
	TicketID id.TicketID `json:"ticket_id"`
	Subject  string      `json:"subject"`
}

func (TicketEscalated) Name() string { return NameTicketEscalated }

// TicketClosed fires when a support ticket is resolved and closed.
type TicketClosed struct {
	TicketID id.TicketID `json:"ticket_id"`
	OpenedBy id.UserID   `json:"opened_by"`
}

func (TicketClosed) Name() string { return NameTicketClosed }
