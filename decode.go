package cpsms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The gateway's response shapes are loose: success entries arrive as a
// single object or a list, ids as numbers or digit strings, references
// as strings or null. Decoders here absorb every observed variant and
// map anything else to ErrUnknown with the offending body attached.

var errMissingSuccess = errors.New("success entry missing")

// decodeFailure marks a 2xx body the client cannot make sense of.
func decodeFailure(body []byte, err error) error {
	return fmt.Errorf("undecodable gateway response %q: %w: %w",
		truncate(string(body), 256), ErrUnknown, err)
}

// oneOrMany decodes a JSON value serialized either as a single object
// or as a list of objects.
type oneOrMany[T any] []T

func (m *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*m = nil
		return nil
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*m = many
		return nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*m = oneOrMany[T]{one}
	return nil
}

// flexInt64 decodes an id serialized as either a JSON number or a
// digit string. Create responses use strings, listings use numbers.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = 0
		return nil
	}
	raw := string(trimmed)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	if raw == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("id %q is not numeric: %w", raw, err)
	}
	*f = flexInt64(n)
	return nil
}

// firstWireError pulls the first error entry out of raw, which the
// gateway serializes either as one object or as a list.
func firstWireError(raw json.RawMessage) (wireError, bool) {
	var entries oneOrMany[wireError]
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 {
		return wireError{}, false
	}
	return entries[0], true
}

// ---------------------------------------------------------------------------
// Response shapes
// ---------------------------------------------------------------------------

type wireDelivery struct {
	To        string  `json:"to"`
	Cost      float64 `json:"cost"`
	SMSAmount int     `json:"smsAmount"`
}

type sendEnvelope struct {
	Success oneOrMany[wireDelivery] `json:"success"`
	Error   oneOrMany[wireError]    `json:"error"`
}

type wireGroup struct {
	GroupID   flexInt64 `json:"groupId"`
	GroupName string    `json:"groupName"`
}

type wireContact struct {
	ContactID   flexInt64 `json:"contactId"`
	PhoneNumber string    `json:"phoneNumber"`
	ContactName string    `json:"contactName"`
	TimeAdded   int64     `json:"timeAdded"`
}

type wireLogEntry struct {
	To            string `json:"to"`
	From          string `json:"from"`
	SMSAmount     int    `json:"smsAmount"`
	PointPrice    float64 `json:"pointPrice"`
	UserReference string `json:"userReference"`
	DLRStatus     int    `json:"dlrStatus"`
	DLRStatusText string `json:"dlrStatusText"`
	TimeSent      int64  `json:"timeSent"`
}

type ackEnvelope struct {
	Success json.RawMessage `json:"success"`
}

type creditEnvelope struct {
	Credit json.RawMessage `json:"credit"`
}

// ---------------------------------------------------------------------------
// Decoders
// ---------------------------------------------------------------------------

func decodeSendReport(body []byte, reference string) (*SendReport, error) {
	var env sendEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, decodeFailure(body, err)
	}
	report := &SendReport{Reference: reference}
	for _, d := range env.Success {
		report.Deliveries = append(report.Deliveries, Delivery{
			To:    d.To,
			Cost:  d.Cost,
			Parts: d.SMSAmount,
		})
	}
	for _, e := range env.Error {
		report.Failures = append(report.Failures, SendFailure{
			Code:    e.Code,
			Message: e.Message,
			To:      e.To,
		})
	}
	if len(report.Deliveries) == 0 && len(report.Failures) == 0 {
		return nil, decodeFailure(body, errMissingSuccess)
	}
	return report, nil
}

func decodeCredit(body []byte) (*CreditBalance, error) {
	var env creditEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, decodeFailure(body, err)
	}
	if len(env.Credit) == 0 {
		return nil, decodeFailure(body, errMissingSuccess)
	}
	amount, literal, err := creditAmount(env.Credit)
	if err != nil {
		return nil, decodeFailure(body, err)
	}
	return &CreditBalance{Amount: amount, Currency: CreditCurrency, Raw: literal}, nil
}

// creditAmount handles both renderings of the balance: a Danish
// formatted string ("9.843,40") or a bare JSON number.
func creditAmount(raw json.RawMessage) (float64, string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := parseProviderDecimal(s)
		return v, s, err
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, string(raw), err
	}
	return n, string(raw), nil
}

// parseProviderDecimal reads a Danish-formatted decimal: "." groups
// thousands, "," marks the fraction.
func parseProviderDecimal(s string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	return strconv.ParseFloat(normalized, 64)
}

func decodeCreateGroup(body []byte) (*Group, error) {
	var env struct {
		Success wireGroup `json:"success"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, decodeFailure(body, err)
	}
	if env.Success.GroupID == 0 && env.Success.GroupName == "" {
		return nil, decodeFailure(body, errMissingSuccess)
	}
	return &Group{ID: int64(env.Success.GroupID), Name: env.Success.GroupName}, nil
}

func decodeGroups(body []byte) ([]Group, error) {
	var entries []wireGroup
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, decodeFailure(body, err)
	}
	groups := make([]Group, 0, len(entries))
	for _, g := range entries {
		groups = append(groups, Group{ID: int64(g.GroupID), Name: g.GroupName})
	}
	return groups, nil
}

// decodeAck accepts the acknowledgement bodies the gateway answers
// mutations with; their human-readable success text carries no data the
// client needs.
func decodeAck(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var env ackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return decodeFailure(body, err)
	}
	return nil
}

// decodeCreateContact returns the stored contact. Some deployments
// answer with the record, others with a plain acknowledgement string;
// in the latter case the result echoes the request and callers recover
// the id from a listing.
func decodeCreateContact(body []byte, requested NewContact) (*Contact, error) {
	var env ackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, decodeFailure(body, err)
	}
	contact := &Contact{PhoneNumber: requested.PhoneNumber, Name: requested.Name}
	success := bytes.TrimSpace(env.Success)
	if len(success) == 0 || success[0] != '{' {
		return contact, nil
	}
	var stored wireContact
	if err := json.Unmarshal(success, &stored); err != nil {
		return nil, decodeFailure(body, err)
	}
	contact.ID = int64(stored.ContactID)
	if stored.PhoneNumber != "" {
		contact.PhoneNumber = stored.PhoneNumber
	}
	if stored.ContactName != "" {
		contact.Name = stored.ContactName
	}
	if stored.TimeAdded > 0 {
		contact.AddedAt = time.Unix(stored.TimeAdded, 0)
	}
	return contact, nil
}

func decodeContacts(body []byte) ([]Contact, error) {
	var entries []wireContact
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, decodeFailure(body, err)
	}
	contacts := make([]Contact, 0, len(entries))
	for _, c := range entries {
		contact := Contact{
			ID:          int64(c.ContactID),
			PhoneNumber: c.PhoneNumber,
			Name:        c.ContactName,
		}
		if c.TimeAdded > 0 {
			contact.AddedAt = time.Unix(c.TimeAdded, 0)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func decodeLog(body []byte) ([]LogEntry, error) {
	var entries []wireLogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, decodeFailure(body, err)
	}
	log := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		entry := LogEntry{
			To:         e.To,
			From:       e.From,
			Parts:      e.SMSAmount,
			Cost:       e.PointPrice,
			Reference:  e.UserReference,
			Status:     DeliveryStatus(e.DLRStatus),
			StatusText: e.DLRStatusText,
		}
		if e.TimeSent > 0 {
			entry.SentAt = time.Unix(e.TimeSent, 0)
		}
		log = append(log, entry)
	}
	return log, nil
}
