// Package cpsmstest provides test doubles for the cpsms client: an
// in-memory fake gateway speaking the provider's observed wire shapes,
// and a recording transport for asserting on raw HTTP traffic.
package cpsmstest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Server is an in-memory CPSMS gateway double, quirks included: a
// single-recipient send answers with an object where a multi-recipient
// send answers with a list, a created group id comes back as a string
// while listings use numbers, and delete targets travel in request
// bodies.
type Server struct {
	hs *httptest.Server

	mu          sync.Mutex
	username    string
	apiKey      string
	credit      string
	failStatus  int
	failMessage string
	nextGroup   int64
	nextContact int64
	groups      map[int64]string
	contacts    map[int64]*contactRecord
	scheduled   map[string]bool
	log         []logLine
	requests    []Request
}

type contactRecord struct {
	id      int64
	phone   string
	name    string
	groups  map[int64]bool
	addedAt int64
}

type logLine struct {
	to        string
	from      string
	reference string
	timeSent  int64
}

// Request is one recorded exchange, in arrival order.
type Request struct {
	Method string
	Path   string
	Body   string
}

// New starts a fake gateway that accepts the given credentials. Close
// it when the test is done.
func New(username, apiKey string) *Server {
	s := &Server{
		username:    username,
		apiKey:      apiKey,
		credit:      "9.843,40",
		nextGroup:   100,
		nextContact: 500,
		groups:      make(map[int64]string),
		contacts:    make(map[int64]*contactRecord),
		scheduled:   make(map[string]bool),
	}
	s.hs = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL is the base endpoint to hand to cpsms.Config.BaseURL.
func (s *Server) URL() string {
	return s.hs.URL
}

// Close shuts the fake gateway down and waits for in-flight handlers.
func (s *Server) Close() {
	s.hs.Close()
}

// SetCredit overrides the balance served by /creditvalue, in the
// provider's Danish rendering (e.g. "9.843,40" or "0").
func (s *Server) SetCredit(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit = raw
}

// FailSendsWith makes subsequent send calls answer with the given
// status and error message. Status 0 restores normal delivery.
func (s *Server) FailSendsWith(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failMessage = status, message
}

// Requests returns a copy of every exchange seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// SeedGroup stores a group directly, bypassing the wire, and returns
// its id.
func (s *Server) SeedGroup(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGroup++
	s.groups[s.nextGroup] = name
	return s.nextGroup
}

// SeedContact stores a contact directly, optionally into groups, and
// returns its id.
func (s *Server) SeedContact(phone, name string, groupIDs ...int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextContact++
	record := &contactRecord{
		id:      s.nextContact,
		phone:   phone,
		name:    name,
		groups:  make(map[int64]bool),
		addedAt: time.Now().Unix(),
	}
	for _, id := range groupIDs {
		record.groups[id] = true
	}
	s.contacts[record.id] = record
	return record.id
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	s.mu.Unlock()

	user, key, ok := r.BasicAuth()
	if !ok || user != s.username || key != s.apiKey {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/send":
		s.handleSend(w, body)
	case r.Method == http.MethodPost && path == "/sendgroup":
		s.handleSendGroup(w, body)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/deletemessage/"):
		s.handleCancel(w, strings.TrimPrefix(path, "/deletemessage/"))
	case r.Method == http.MethodGet && path == "/creditvalue":
		s.mu.Lock()
		credit := s.credit
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"credit": credit})
	case r.Method == http.MethodPost && path == "/addgroup":
		s.handleAddGroup(w, body)
	case r.Method == http.MethodGet && path == "/listgroups":
		s.handleListGroups(w)
	case r.Method == http.MethodPut && path == "/updategroup":
		s.handleUpdateGroup(w, body)
	case r.Method == http.MethodDelete && path == "/deletegroup":
		s.handleDeleteGroup(w, body)
	case r.Method == http.MethodPost && path == "/addcontact":
		s.handleAddContact(w, body)
	case r.Method == http.MethodGet && path == "/listcontacts":
		s.handleListContacts(w, 0)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/listcontacts/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(path, "/listcontacts/"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid group id")
			return
		}
		s.handleListContacts(w, id)
	case r.Method == http.MethodPut && path == "/updatecontact":
		s.handleUpdateContact(w, body)
	case r.Method == http.MethodDelete && path == "/deletecontact":
		s.handleDeleteContact(w, body)
	case r.Method == http.MethodGet && path == "/getlog":
		s.handleLog(w, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	default:
		writeError(w, http.StatusNotFound, "Unknown endpoint")
	}
}

func (s *Server) handleSend(w http.ResponseWriter, body []byte) {
	var payload struct {
		To        []string `json:"to"`
		Message   string   `json:"message"`
		From      string   `json:"from"`
		Timestamp int64    `json:"timestamp"`
		Reference string   `json:"reference"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.To) == 0 || payload.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing recipients or message")
		return
	}
	s.deliver(w, payload.To, payload.From, payload.Timestamp, payload.Reference)
}

func (s *Server) handleSendGroup(w http.ResponseWriter, body []byte) {
	var payload struct {
		GroupID   int64  `json:"group_id"`
		Message   string `json:"message"`
		From      string `json:"from"`
		Timestamp int64  `json:"timestamp"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing group or message")
		return
	}

	s.mu.Lock()
	_, ok := s.groups[payload.GroupID]
	var members []string
	for _, c := range s.contacts {
		if c.groups[payload.GroupID] {
			members = append(members, c.phone)
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if len(members) == 0 {
		writeError(w, http.StatusBadRequest, "Group is empty")
		return
	}
	sort.Strings(members)
	s.deliver(w, members, payload.From, payload.Timestamp, payload.Reference)
}

func (s *Server) deliver(w http.ResponseWriter, to []string, from string, timestamp int64, reference string) {
	s.mu.Lock()
	if s.failStatus != 0 {
		status, message := s.failStatus, s.failMessage
		s.mu.Unlock()
		writeError(w, status, message)
		return
	}

	var accepted []map[string]any
	var rejected []map[string]any
	for _, number := range to {
		if len(strings.TrimPrefix(number, "+")) < 7 {
			rejected = append(rejected, map[string]any{
				"code":    409,
				"message": "Phone number length invalid",
				"to":      number,
			})
			continue
		}
		accepted = append(accepted, map[string]any{"to": number, "cost": 1, "smsAmount": 1})
		s.log = append(s.log, logLine{to: number, from: from, reference: reference, timeSent: time.Now().Unix()})
	}
	if timestamp > 0 && reference != "" {
		s.scheduled[reference] = true
	}
	s.mu.Unlock()

	resp := make(map[string]any)
	switch len(accepted) {
	case 0:
	case 1:
		// Observed provider behavior: one recipient, one bare object.
		resp["success"] = accepted[0]
	default:
		resp["success"] = accepted
	}
	if len(rejected) > 0 {
		resp["error"] = rejected
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, reference string) {
	s.mu.Lock()
	known := s.scheduled[reference]
	delete(s.scheduled, reference)
	s.mu.Unlock()

	if !known {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": "Message deleted"})
}

func (s *Server) handleAddGroup(w http.ResponseWriter, body []byte) {
	var payload struct {
		GroupName string `json:"groupName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.GroupName == "" {
		writeError(w, http.StatusBadRequest, "Missing group name")
		return
	}

	s.mu.Lock()
	s.nextGroup++
	id := s.nextGroup
	s.groups[id] = payload.GroupName
	s.mu.Unlock()

	// Create answers with the id as a string; listings use numbers.
	writeJSON(w, http.StatusOK, map[string]any{"success": map[string]any{
		"groupId":   strconv.FormatInt(id, 10),
		"groupName": payload.GroupName,
	}})
}

func (s *Server) handleListGroups(w http.ResponseWriter) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"groupId": id, "groupName": s.groups[id]})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, body []byte) {
	var payload struct {
		GroupID   int64  `json:"groupId"`
		GroupName string `json:"groupName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.GroupName == "" {
		writeError(w, http.StatusBadRequest, "Missing group name")
		return
	}

	s.mu.Lock()
	_, ok := s.groups[payload.GroupID]
	if ok {
		s.groups[payload.GroupID] = payload.GroupName
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": fmt.Sprintf("groupId %d Updated", payload.GroupID)})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, body []byte) {
	var payload struct {
		GroupID int64 `json:"groupId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing group id")
		return
	}

	s.mu.Lock()
	_, ok := s.groups[payload.GroupID]
	if ok {
		delete(s.groups, payload.GroupID)
		for _, c := range s.contacts {
			delete(c.groups, payload.GroupID)
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": fmt.Sprintf("Group %d deleted", payload.GroupID)})
}

func (s *Server) handleAddContact(w http.ResponseWriter, body []byte) {
	var payload struct {
		GroupID     int64  `json:"groupId"`
		PhoneNumber string `json:"phoneNumber"`
		ContactName string `json:"contactName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.PhoneNumber == "" || payload.ContactName == "" {
		writeError(w, http.StatusBadRequest, "Missing contact fields")
		return
	}

	s.mu.Lock()
	if payload.GroupID != 0 {
		if _, ok := s.groups[payload.GroupID]; !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "Group not found")
			return
		}
	}
	s.nextContact++
	record := &contactRecord{
		id:      s.nextContact,
		phone:   payload.PhoneNumber,
		name:    payload.ContactName,
		groups:  make(map[int64]bool),
		addedAt: time.Now().Unix(),
	}
	if payload.GroupID != 0 {
		record.groups[payload.GroupID] = true
	}
	s.contacts[record.id] = record
	s.mu.Unlock()

	// The gateway acknowledges contact creation with a bare string.
	writeJSON(w, http.StatusOK, map[string]any{"success": "Contact created/added in group"})
}

// handleListContacts serves both the global listing (groupID 0) and the
// per-group membership listing.
func (s *Server) handleListContacts(w http.ResponseWriter, groupID int64) {
	s.mu.Lock()
	if groupID != 0 {
		if _, ok := s.groups[groupID]; !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "Group not found")
			return
		}
	}
	records := make([]*contactRecord, 0, len(s.contacts))
	for _, c := range s.contacts {
		if groupID == 0 || c.groups[groupID] {
			records = append(records, c)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].id < records[j].id })
	out := make([]map[string]any, 0, len(records))
	for _, c := range records {
		out = append(out, map[string]any{
			"contactId":   c.id,
			"phoneNumber": c.phone,
			"contactName": c.name,
			"timeAdded":   c.addedAt,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, body []byte) {
	var payload struct {
		ContactID   int64  `json:"contactId"`
		PhoneNumber string `json:"phoneNumber"`
		ContactName string `json:"contactName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing contact id")
		return
	}

	s.mu.Lock()
	record, ok := s.contacts[payload.ContactID]
	if ok {
		if payload.PhoneNumber != "" {
			record.phone = payload.PhoneNumber
		}
		if payload.ContactName != "" {
			record.name = payload.ContactName
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": "Contact updated"})
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, body []byte) {
	var payload struct {
		ContactID int64 `json:"contactId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Missing contact id")
		return
	}

	s.mu.Lock()
	_, ok := s.contacts[payload.ContactID]
	delete(s.contacts, payload.ContactID)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": "Contact deleted"})
}

func (s *Server) handleLog(w http.ResponseWriter, fromRaw, toRaw string) {
	from, _ := strconv.ParseInt(fromRaw, 10, 64)
	to, _ := strconv.ParseInt(toRaw, 10, 64)

	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.log))
	for _, line := range s.log {
		if from != 0 && line.timeSent < from {
			continue
		}
		if to != 0 && line.timeSent > to {
			continue
		}
		var reference any
		if line.reference != "" {
			reference = line.reference
		}
		out = append(out, map[string]any{
			"to":            line.to,
			"from":          line.from,
			"smsAmount":     1,
			"pointPrice":    1.0,
			"userReference": reference,
			"dlrStatus":     1,
			"dlrStatusText": "Received",
			"timeSent":      line.timeSent,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": message}})
}
