package cpsms

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// apiRequest describes one gateway exchange before any I/O happens:
// method, path relative to the base URL, optional query, optional JSON
// body. Builders validate their inputs and fail before transport.
type apiRequest struct {
	method string
	path   string
	query  url.Values
	body   any
}

// ---------------------------------------------------------------------------
// Wire payloads
// ---------------------------------------------------------------------------

// Field names below belong to the provider's versioned contract; they
// are mirrored, not redesigned.

// messagePayload carries the fields shared by single and group sends.
type messagePayload struct {
	Message   string `json:"message"`
	From      string `json:"from"`
	Format    Format `json:"format,omitempty"`
	Flash     bool   `json:"flash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	DLRURL    string `json:"dlr_url,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type sendPayload struct {
	To []string `json:"to"`
	messagePayload
}

type sendGroupPayload struct {
	GroupID int64 `json:"group_id"`
	messagePayload
}

type addGroupPayload struct {
	GroupName string `json:"groupName"`
}

type updateGroupPayload struct {
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
}

type groupIDPayload struct {
	GroupID int64 `json:"groupId"`
}

type addContactPayload struct {
	GroupID     int64  `json:"groupId,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
	ContactName string `json:"contactName"`
}

type updateContactPayload struct {
	ContactID   int64  `json:"contactId"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ContactName string `json:"contactName,omitempty"`
}

type contactIDPayload struct {
	ContactID int64 `json:"contactId"`
}

// wireError is the gateway's error entry, used both in error bodies and
// in the per-recipient error list of a send response.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	To      string `json:"to"`
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

func messageBody(msg Message) messagePayload {
	p := messagePayload{
		Message:   msg.Text,
		From:      msg.From,
		Format:    msg.Format,
		Flash:     msg.Flash,
		DLRURL:    msg.DLRURL,
		Reference: msg.Reference,
	}
	if !msg.SendAt.IsZero() {
		p.Timestamp = msg.SendAt.Unix()
	}
	return p
}

func buildSend(to []string, msg Message) (*apiRequest, error) {
	if err := validateRecipients(to); err != nil {
		return nil, err
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPost,
		path:   "/send",
		body: sendPayload{
			To:             append([]string(nil), to...),
			messagePayload: messageBody(msg),
		},
	}, nil
}

func buildSendToGroup(groupID int64, msg Message) (*apiRequest, error) {
	if err := validateID("group", groupID); err != nil {
		return nil, err
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPost,
		path:   "/sendgroup",
		body: sendGroupPayload{
			GroupID:        groupID,
			messagePayload: messageBody(msg),
		},
	}, nil
}

func buildCancelScheduled(reference string) (*apiRequest, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference required to cancel a scheduled message: %w", ErrValidation)
	}
	if len(reference) > MaxReferenceLength {
		return nil, fmt.Errorf("reference exceeds %d characters: %w", MaxReferenceLength, ErrValidation)
	}
	return &apiRequest{
		method: http.MethodDelete,
		path:   "/deletemessage/" + reference,
	}, nil
}

func buildCredit() *apiRequest {
	return &apiRequest{method: http.MethodGet, path: "/creditvalue"}
}

func buildCreateGroup(name string) (*apiRequest, error) {
	if err := validateGroupName(name); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPost,
		path:   "/addgroup",
		body:   addGroupPayload{GroupName: name},
	}, nil
}

func buildListGroups() *apiRequest {
	return &apiRequest{method: http.MethodGet, path: "/listgroups"}
}

func buildUpdateGroup(id int64, name string) (*apiRequest, error) {
	if err := validateID("group", id); err != nil {
		return nil, err
	}
	if err := validateGroupName(name); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPut,
		path:   "/updategroup",
		body:   updateGroupPayload{GroupID: id, GroupName: name},
	}, nil
}

// The gateway takes delete targets in the request body, not the path.
func buildDeleteGroup(id int64) (*apiRequest, error) {
	if err := validateID("group", id); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodDelete,
		path:   "/deletegroup",
		body:   groupIDPayload{GroupID: id},
	}, nil
}

func buildCreateContact(c NewContact) (*apiRequest, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPost,
		path:   "/addcontact",
		body: addContactPayload{
			GroupID:     c.GroupID,
			PhoneNumber: c.PhoneNumber,
			ContactName: c.Name,
		},
	}, nil
}

func buildListContacts() *apiRequest {
	return &apiRequest{method: http.MethodGet, path: "/listcontacts"}
}

func buildListGroupMembers(groupID int64) (*apiRequest, error) {
	if err := validateID("group", groupID); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodGet,
		path:   "/listcontacts/" + strconv.FormatInt(groupID, 10),
	}, nil
}

func buildUpdateContact(id int64, upd ContactUpdate) (*apiRequest, error) {
	if err := validateID("contact", id); err != nil {
		return nil, err
	}
	if err := upd.validate(); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodPut,
		path:   "/updatecontact",
		body: updateContactPayload{
			ContactID:   id,
			PhoneNumber: upd.PhoneNumber,
			ContactName: upd.Name,
		},
	}, nil
}

func buildDeleteContact(id int64) (*apiRequest, error) {
	if err := validateID("contact", id); err != nil {
		return nil, err
	}
	return &apiRequest{
		method: http.MethodDelete,
		path:   "/deletecontact",
		body:   contactIDPayload{ContactID: id},
	}, nil
}

func buildGetLog(f LogFilter) (*apiRequest, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	req := &apiRequest{method: http.MethodGet, path: "/getlog"}
	q := url.Values{}
	if !f.Start.IsZero() {
		q.Set("from", strconv.FormatInt(f.Start.Unix(), 10))
	}
	if !f.End.IsZero() {
		q.Set("to", strconv.FormatInt(f.End.Unix(), 10))
	}
	if len(q) > 0 {
		req.query = q
	}
	return req, nil
}
