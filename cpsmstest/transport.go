package cpsmstest

import (
	"io"
	"net/http"
	"strings"
	"sync"

	cpsms "github.com/jetdk/cpsms-client"
)

// RecordingDoer is a transport double that counts every request and
// answers with a canned response. Its main job is proving that an
// operation never reached the transport.
type RecordingDoer struct {
	// Status is the canned response status. Zero means 200.
	Status int
	// Body is the canned response body.
	Body string
	// Err, when set, fails every request instead of answering.
	Err error

	mu       sync.Mutex
	calls    int
	requests []*http.Request
}

var _ cpsms.Doer = (*RecordingDoer)(nil)

func (d *RecordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.calls++
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	status := d.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(d.Body)),
		Request:    req,
	}, nil
}

// Calls returns how many requests reached the transport.
func (d *RecordingDoer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// LastRequest returns the most recent request, or nil when none were
// made.
func (d *RecordingDoer) LastRequest() *http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return nil
	}
	return d.requests[len(d.requests)-1]
}
