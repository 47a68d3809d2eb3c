package domain

import (
	"github.com/google/uuid"

	dErrors "equitrail/pkg/domain-errors"
)

// Typed UUID identifiers for the platform's core entities. Distinct types keep
// the compiler from letting a PaymentID land where a UserID belongs.
//
// Usage: construct via the Parse* functions at trust boundaries (handlers,
// queue payloads); direct casting bypasses validation.
type (
	UserID       uuid.UUID
	CompanyID    uuid.UUID
	DisclosureID uuid.UUID
	InvestmentID uuid.UUID
	PaymentID    uuid.UUID
	TicketID     uuid.UUID
	ReferralID   uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company_id")
	return CompanyID(u), err
}

func ParseDisclosureID(s string) (DisclosureID, error) {
	u, err := parseUUID(s, "disclosure_id")
	return DisclosureID(u), err
}

func ParseInvestmentID(s string) (InvestmentID, error) {
	u, err := parseUUID(s, "investment_id")
	return InvestmentID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s, "payment_id")
	return PaymentID(u), err
}

func ParseTicketID(s string) (TicketID, error) {
	u, err := parseUUID(s, "ticket_id")
	return TicketID(u), err
}

func ParseReferralID(s string) (ReferralID, error) {
	u, err := parseUUID(s, "referral_id")
	return ReferralID(u), err
}

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DisclosureID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InvestmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TicketID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReferralID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id CompanyID) String() string    { return uuid.UUID(id).String() }
func (id DisclosureID) String() string { return uuid.UUID(id).String() }
func (id InvestmentID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string    { return uuid.UUID(id).String() }
func (id TicketID) String() string     { return uuid.UUID(id).String() }
func (id ReferralID) String() string   { return uuid.UUID(id).String() }

// Text marshaling so IDs serialize as canonical UUID strings in JSON
// payloads and queue jobs.
func (id UserID) MarshalText() ([]byte, error)       { return []byte(uuid.UUID(id).String()), nil }
func (id CompanyID) MarshalText() ([]byte, error)    { return []byte(uuid.UUID(id).String()), nil }
func (id DisclosureID) MarshalText() ([]byte, error) { return []byte(uuid.UUID(id).String()), nil }
func (id InvestmentID) MarshalText() ([]byte, error) { return []byte(uuid.UUID(id).String()), nil }
func (id PaymentID) MarshalText() ([]byte, error)    { return []byte(uuid.UUID(id).String()), nil }
func (id TicketID) MarshalText() ([]byte, error)     { return []byte(uuid.UUID(id).String()), nil }
func (id ReferralID) MarshalText() ([]byte, error)   { return []byte(uuid.UUID(id).String()), nil }

func unmarshalUUIDText(b []byte) (uuid.UUID, error) { return uuid.ParseBytes(b) }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = UserID(u)
	return err
}

func (id *CompanyID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = CompanyID(u)
	return err
}

func (id *DisclosureID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = DisclosureID(u)
	return err
}

func (id *InvestmentID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = InvestmentID(u)
	return err
}

func (id *PaymentID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = PaymentID(u)
	return err
}

func (id *TicketID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = TicketID(u)
	return err
}

func (id *ReferralID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = ReferralID(u)
	return err
}

// NewUserID and friends mint fresh identifiers. Use in services and tests;
// external input goes through Parse*.
func NewUserID() UserID             { return UserID(uuid.New()) }
func NewCompanyID() CompanyID       { return CompanyID(uuid.New()) }
func NewDisclosureID() DisclosureID { return DisclosureID(uuid.New()) }
func NewInvestmentID() InvestmentID { return InvestmentID(uuid.New()) }
func NewPaymentID() PaymentID       { return PaymentID(uuid.New()) }
func NewTicketID() TicketID         { return TicketID(uuid.New()) }
func NewReferralID() ReferralID     { return ReferralID(uuid.New()) }
