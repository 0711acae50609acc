package cpsms

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Normative gateway limits and defaults. The message and sender caps
// come from the provider contract and are enforced locally so malformed
// requests never reach the wire.
const (
	// DefaultBaseURL is the production gateway endpoint.
	DefaultBaseURL = "https://api.cpsms.dk/v2"

	// DefaultTimeout bounds a single round-trip when the caller does
	// not configure one.
	DefaultTimeout = 30 * time.Second

	// MaxMessageLengthGSM is the longest GSM-encoded body the gateway
	// accepts (10 joined parts of 153 characters).
	MaxMessageLengthGSM = 1530

	// MaxMessageLengthUnicode is the longest UCS-2 body the gateway
	// accepts (10 joined parts of 67 characters).
	MaxMessageLengthUnicode = 670

	// MaxSenderLengthAlpha is the longest alphanumeric sender id.
	MaxSenderLengthAlpha = 11

	// MaxSenderLengthNumeric is the longest all-digit sender id.
	MaxSenderLengthNumeric = 15

	// MaxReferenceLength caps the correlation id attached to a send.
	MaxReferenceLength = 32

	// CreditCurrency is the unit the prepaid balance is kept in.
	CreditCurrency = "DKK"
)

// Format selects the wire encoding of a message body.
type Format string

const (
	// FormatGSM is the 7-bit GSM 03.38 encoding, the gateway default.
	FormatGSM Format = "GSM"
	// FormatUnicode switches to UCS-2 for bodies outside the GSM set.
	FormatUnicode Format = "UNICODE"
)

// maxBodyLength returns the body cap for the format.
func (f Format) maxBodyLength() int {
	if f == FormatUnicode {
		return MaxMessageLengthUnicode
	}
	return MaxMessageLengthGSM
}

func validFormat(f Format) bool {
	return f == "" || f == FormatGSM || f == FormatUnicode
}

// Message is one SMS payload, minus its recipients. The zero value is
// not sendable: Text and From are required by the gateway.
type Message struct {
	// Text is the message body.
	Text string

	// From is the sender shown on the handset: up to 11 alphanumeric
	// characters or up to 15 digits.
	From string

	// Format selects the body encoding. Empty leaves the choice to the
	// gateway, which defaults to GSM.
	Format Format

	// Flash makes handsets display the message immediately instead of
	// storing it in the inbox.
	Flash bool

	// SendAt defers transmission to the given instant. The zero value
	// sends immediately.
	SendAt time.Time

	// DLRURL registers a delivery-report callback for this message.
	// Receiving the callback is entirely the caller's concern.
	DLRURL string

	// Reference is a correlation id echoed in the delivery log and in
	// delivery reports. Scheduled messages get a generated one when
	// left empty, so they stay cancellable.
	Reference string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("message text must not be empty: %w", ErrValidation)
	}
	if !validFormat(m.Format) {
		return fmt.Errorf("unsupported format %q: %w", m.Format, ErrValidation)
	}
	if limit := m.Format.maxBodyLength(); utf8.RuneCountInString(m.Text) > limit {
		return fmt.Errorf("message text exceeds %d characters: %w", limit, ErrValidation)
	}
	if err := validateSender(m.From); err != nil {
		return err
	}
	if !m.SendAt.IsZero() && m.SendAt.Unix() < 0 {
		return fmt.Errorf("send time %s has no wire representation: %w", m.SendAt, ErrValidation)
	}
	if m.DLRURL != "" {
		if err := validateCallbackURL(m.DLRURL); err != nil {
			return err
		}
	}
	if len(m.Reference) > MaxReferenceLength {
		return fmt.Errorf("reference exceeds %d characters: %w", MaxReferenceLength, ErrValidation)
	}
	return nil
}

// withReference returns the message carrying the reference it will be
// sent under: the caller's own, or a generated one for scheduled sends.
func (m Message) withReference() Message {
	if m.Reference == "" && !m.SendAt.IsZero() {
		m.Reference = GenerateReference()
	}
	return m
}

// GenerateReference returns a fresh correlation id that fits the
// gateway's reference cap.
func GenerateReference() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// msisdnPattern matches the structural shape of a recipient number: an
// optional plus followed by digits. Digit-count semantics stay with the
// gateway, which reports per-recipient failures.
var msisdnPattern = regexp.MustCompile(`^\+?[0-9]{1,15}$`)

// ValidPhoneNumber reports whether number is structurally a phone
// number the gateway could be asked to deliver to.
func ValidPhoneNumber(number string) bool {
	return msisdnPattern.MatchString(number)
}

var (
	senderAlphaPattern   = regexp.MustCompile(`^[A-Za-z0-9]{1,11}$`)
	senderNumericPattern = regexp.MustCompile(`^[0-9]{1,15}$`)
)

func validateSender(from string) error {
	switch {
	case strings.TrimSpace(from) == "":
		return fmt.Errorf("sender id must not be empty: %w", ErrValidation)
	case senderNumericPattern.MatchString(from), senderAlphaPattern.MatchString(from):
		return nil
	default:
		return fmt.Errorf("sender id %q must be at most %d alphanumeric characters or %d digits: %w",
			from, MaxSenderLengthAlpha, MaxSenderLengthNumeric, ErrValidation)
	}
}

func validateRecipients(to []string) error {
	if len(to) == 0 {
		return fmt.Errorf("at least one recipient required: %w", ErrValidation)
	}
	for _, number := range to {
		if !ValidPhoneNumber(number) {
			return fmt.Errorf("recipient %q is not a phone number: %w", number, ErrValidation)
		}
	}
	return nil
}

func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("delivery report url %q must be an absolute http(s) url: %w", raw, ErrValidation)
	}
	return nil
}

func validateID(kind string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s id %d must be positive: %w", kind, id, ErrValidation)
	}
	return nil
}

// Delivery is one accepted recipient from a send call.
type Delivery struct {
	// To is the recipient MSISDN, which is also the gateway's
	// identifier for the sent message.
	To string
	// Cost is the credit charged for this recipient.
	Cost float64
	// Parts is how many SMS parts the body was split into.
	Parts int
}

// SendFailure is one recipient the gateway rejected inside an otherwise
// accepted send call.
type SendFailure struct {
	Code    int
	Message string
	To      string
}

// SendReport is the decoded outcome of a send call. The gateway may
// accept some recipients and reject others in the same call; rejected
// ones land in Failures, never in an error return, so callers must
// check both.
type SendReport struct {
	Deliveries []Delivery
	Failures   []SendFailure

	// Reference is the correlation id the message went out under, when
	// one was set or generated.
	Reference string
}

// MessageIDs returns the per-recipient identifiers of the accepted
// deliveries.
func (r *SendReport) MessageIDs() []string {
	ids := make([]string, 0, len(r.Deliveries))
	for _, d := range r.Deliveries {
		ids = append(ids, d.To)
	}
	return ids
}

// Group is a named recipient collection stored by the gateway. Contacts
// and groups relate many-to-many; membership is queried through
// ListGroupMembers, never embedded here.
type Group struct {
	ID   int64
	Name string
}

func validateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("group name must not be empty: %w", ErrValidation)
	}
	return nil
}

// Contact is one stored recipient.
type Contact struct {
	ID          int64
	PhoneNumber string
	Name        string
	// AddedAt is when the gateway stored the contact.
	AddedAt time.Time
}

// NewContact carries the fields for creating a contact. GroupID is
// optional; zero stores the contact without a group membership.
type NewContact struct {
	PhoneNumber string
	Name        string
	GroupID     int64
}

func (c NewContact) validate() error {
	if !ValidPhoneNumber(c.PhoneNumber) {
		return fmt.Errorf("contact number %q is not a phone number: %w", c.PhoneNumber, ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("contact name must not be empty: %w", ErrValidation)
	}
	if c.GroupID < 0 {
		return fmt.Errorf("group id %d must not be negative: %w", c.GroupID, ErrValidation)
	}
	return nil
}

// ContactUpdate carries the mutable contact fields. Empty fields are
// left unchanged by the gateway.
type ContactUpdate struct {
	PhoneNumber string
	Name        string
}

func (u ContactUpdate) validate() error {
	if u.PhoneNumber == "" && strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("contact update must change at least one field: %w", ErrValidation)
	}
	if u.PhoneNumber != "" && !ValidPhoneNumber(u.PhoneNumber) {
		return fmt.Errorf("contact number %q is not a phone number: %w", u.PhoneNumber, ErrValidation)
	}
	return nil
}

// DeliveryStatus is the gateway's verdict for one sent message, using
// SMPP delivery-receipt states.
type DeliveryStatus int

const (
	StatusPending       DeliveryStatus = 0
	StatusDelivered     DeliveryStatus = 1
	StatusExpired       DeliveryStatus = 2
	StatusDeleted       DeliveryStatus = 3
	StatusUndeliverable DeliveryStatus = 4
	StatusAccepted      DeliveryStatus = 5
	StatusUnknown       DeliveryStatus = 6
	StatusRejected      DeliveryStatus = 7
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDelivered:
		return "delivered"
	case StatusExpired:
		return "expired"
	case StatusDeleted:
		return "deleted"
	case StatusUndeliverable:
		return "undeliverable"
	case StatusAccepted:
		return "accepted"
	case StatusUnknown:
		return "unknown"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LogEntry is one row of the gateway's send log. Entries are read-only;
// the client never mutates the log.
type LogEntry struct {
	To         string
	From       string
	Parts      int
	Cost       float64
	Reference  string
	Status     DeliveryStatus
	StatusText string
	SentAt     time.Time
}

// LogFilter bounds a GetLog query. Zero times leave that side of the
// range open and the gateway applies its default window.
type LogFilter struct {
	Start time.Time
	End   time.Time
}

func (f LogFilter) validate() error {
	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End) {
		return fmt.Errorf("log range start %s is after end %s: %w",
			f.Start.Format(time.RFC3339), f.End.Format(time.RFC3339), ErrValidation)
	}
	return nil
}

// CreditBalance is a point-in-time snapshot of the prepaid balance. It
// is never cached; every Credit call fetches a fresh value.
type CreditBalance struct {
	// Amount is the remaining balance in Currency units.
	Amount float64
	// Currency is the balance unit.
	Currency string
	// Raw is the provider's literal rendering, e.g. "9.843,40".
	Raw string
}
