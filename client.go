package cpsms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Doer executes HTTP requests. *http.Client satisfies it; tests inject
// recording doubles.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Doer = (*http.Client)(nil)

// Config holds the construction-time settings of a client. It is read
// once by NewClient and never mutated afterwards.
type Config struct {
	// Username is the gateway account name, sent as the HTTP Basic
	// auth user on every request.
	Username string

	// APIKey is the account's API key, sent as the Basic auth password.
	APIKey string

	// BaseURL overrides the production endpoint. Mostly useful for
	// pointing tests at a fake gateway.
	BaseURL string

	// Timeout bounds each round-trip when the client builds its own
	// transport. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient, when set, is used instead of a client-owned
	// *http.Client. Close never touches an injected transport, and
	// Timeout is then the injected transport's concern.
	HTTPClient Doer

	// Logger receives request-level debug logs. Nil means
	// slog.Default(). Credentials are never logged and recipient
	// numbers are masked.
	Logger *slog.Logger
}

// userAgent identifies this client on the wire.
const userAgent = "cpsms-client-go/1.0"

// maxResponseBytes caps how much of any response body is read.
const maxResponseBytes = 1 << 20

// Client is the blocking gateway client. One instance owns one
// transport for its whole lifetime. All methods are safe for concurrent
// use, every call performs exactly one fresh round-trip, and nothing is
// cached or retried.
type Client struct {
	username string
	apiKey   string
	base     *url.URL
	httpc    Doer
	logger   *slog.Logger

	ownsTransport bool
	closeOnce     sync.Once
}

// NewClient builds a blocking client from cfg. It fails on missing
// credentials or an unusable base URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: username", ErrConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key", ErrConfig)
	}

	rawBase := cfg.BaseURL
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", rawBase, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%w: absolute base url, got %q", ErrConfig, rawBase)
	}

	c := &Client{
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		base:     base,
		logger:   cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if cfg.HTTPClient != nil {
		c.httpc = cfg.HTTPClient
	} else {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpc = &http.Client{Timeout: timeout}
		c.ownsTransport = true
	}
	return c, nil
}

// Close releases the transport exactly once. Only a client-owned
// transport is touched; injected ones stay with their owner. Calls
// after the first are no-ops.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if !c.ownsTransport {
			return
		}
		if hc, ok := c.httpc.(*http.Client); ok {
			hc.CloseIdleConnections()
		}
	})
	return nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// newHTTPRequest materializes an apiRequest against the configured base
// URL with auth and content headers attached. No I/O happens here.
func (c *Client) newHTTPRequest(ctx context.Context, req *apiRequest) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + req.path
	if req.query != nil {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", req.path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.path, err)
	}
	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// do runs one exchange: encode, send, classify the status, and hand the
// body to the operation's decoder. Transport failures and non-2xx
// statuses come back as taxonomy errors, never raw.
func (c *Client) do(ctx context.Context, op string, req *apiRequest) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cpsms."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.method),
		attribute.String("url.path", req.path),
	)

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	elapsed := time.Since(start)
	requestDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("operation", op)))
	if err != nil {
		err = transportError(op, err)
		c.countRequest(ctx, op, "transport_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err = transportError(op, err)
		c.countRequest(ctx, op, "transport_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := newAPIError(resp.StatusCode, body)
		c.countRequest(ctx, op, "gateway_error")
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.DebugContext(ctx, "gateway request failed",
			slog.String("operation", op),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", elapsed),
		)
		return nil, fmt.Errorf("%s: %w", op, apiErr)
	}

	c.countRequest(ctx, op, "ok")
	span.SetStatus(codes.Ok, "")
	c.logger.DebugContext(ctx, "gateway request completed",
		slog.String("operation", op),
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
	)
	return body, nil
}

func (c *Client) countRequest(ctx context.Context, op, outcome string) {
	requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (c *Client) recordSendOutcome(ctx context.Context, report *SendReport) {
	if n := len(report.Deliveries); n > 0 {
		sendRecipientsTotal.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("result", "accepted")))
	}
	if n := len(report.Failures); n > 0 {
		sendRecipientsTotal.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("result", "rejected")))
	}
}

// maskPhone hides all but the last four digits for logs.
func maskPhone(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// SendSMS delivers one message to the given recipients. Structural
// validation failures surface before any transport call. The gateway
// may accept some recipients and reject others; rejections land in the
// report's Failures, so callers must check both sides.
func (c *Client) SendSMS(ctx context.Context, to []string, msg Message) (*SendReport, error) {
	msg = msg.withReference()
	req, err := buildSend(to, msg)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "send_sms", req)
	if err != nil {
		return nil, err
	}
	report, err := decodeSendReport(body, msg.Reference)
	if err != nil {
		return nil, err
	}
	c.recordSendOutcome(ctx, report)
	c.logger.DebugContext(ctx, "sms submitted",
		slog.Int("recipients", len(to)),
		slog.Int("accepted", len(report.Deliveries)),
		slog.Int("rejected", len(report.Failures)),
		slog.String("first_recipient", maskPhone(to[0])),
	)
	return report, nil
}

// SendToGroup delivers one message to every contact in a stored group.
func (c *Client) SendToGroup(ctx context.Context, groupID int64, msg Message) (*SendReport, error) {
	msg = msg.withReference()
	req, err := buildSendToGroup(groupID, msg)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "send_to_group", req)
	if err != nil {
		return nil, err
	}
	report, err := decodeSendReport(body, msg.Reference)
	if err != nil {
		return nil, err
	}
	c.recordSendOutcome(ctx, report)
	return report, nil
}

// CancelScheduled deletes a scheduled message before transmission,
// addressed by the reference it was sent under.
func (c *Client) CancelScheduled(ctx context.Context, reference string) error {
	req, err := buildCancelScheduled(reference)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, "cancel_scheduled", req)
	if err != nil {
		return err
	}
	return decodeAck(body)
}

// Credit fetches the prepaid balance. The value is never cached; each
// call is a fresh round-trip.
func (c *Client) Credit(ctx context.Context) (*CreditBalance, error) {
	body, err := c.do(ctx, "get_credit", buildCredit())
	if err != nil {
		return nil, err
	}
	return decodeCredit(body)
}

// CreateGroup stores a named group and returns it with the id the
// gateway assigned.
func (c *Client) CreateGroup(ctx context.Context, name string) (*Group, error) {
	req, err := buildCreateGroup(name)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "create_group", req)
	if err != nil {
		return nil, err
	}
	return decodeCreateGroup(body)
}

// ListGroups returns all stored groups.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	body, err := c.do(ctx, "list_groups", buildListGroups())
	if err != nil {
		return nil, err
	}
	return decodeGroups(body)
}

// UpdateGroup renames a group. The gateway acknowledges without echoing
// the record, so the result is rebuilt from the request.
func (c *Client) UpdateGroup(ctx context.Context, id int64, name string) (*Group, error) {
	req, err := buildUpdateGroup(id, name)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "update_group", req)
	if err != nil {
		return nil, err
	}
	if err := decodeAck(body); err != nil {
		return nil, err
	}
	return &Group{ID: id, Name: name}, nil
}

// DeleteGroup removes a group. Contacts survive; only the grouping is
// dropped.
func (c *Client) DeleteGroup(ctx context.Context, id int64) error {
	req, err := buildDeleteGroup(id)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, "delete_group", req)
	if err != nil {
		return err
	}
	return decodeAck(body)
}

// CreateContact stores a recipient, optionally straight into a group.
// When the gateway acknowledges without echoing the record, the result
// carries a zero ID; ListContacts recovers it.
func (c *Client) CreateContact(ctx context.Context, contact NewContact) (*Contact, error) {
	req, err := buildCreateContact(contact)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "create_contact", req)
	if err != nil {
		return nil, err
	}
	return decodeCreateContact(body, contact)
}

// ListContacts returns every stored contact across all groups.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	body, err := c.do(ctx, "list_contacts", buildListContacts())
	if err != nil {
		return nil, err
	}
	return decodeContacts(body)
}

// UpdateContact changes a contact's number or display name. Empty
// fields in upd are left unchanged by the gateway; the returned record
// echoes only what this call set.
func (c *Client) UpdateContact(ctx context.Context, id int64, upd ContactUpdate) (*Contact, error) {
	req, err := buildUpdateContact(id, upd)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "update_contact", req)
	if err != nil {
		return nil, err
	}
	if err := decodeAck(body); err != nil {
		return nil, err
	}
	return &Contact{ID: id, PhoneNumber: upd.PhoneNumber, Name: upd.Name}, nil
}

// DeleteContact removes a contact from the account and from every group
// it belonged to.
func (c *Client) DeleteContact(ctx context.Context, id int64) error {
	req, err := buildDeleteContact(id)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, "delete_contact", req)
	if err != nil {
		return err
	}
	return decodeAck(body)
}

// ListGroupMembers returns the contacts belonging to one group.
func (c *Client) ListGroupMembers(ctx context.Context, groupID int64) ([]Contact, error) {
	req, err := buildListGroupMembers(groupID)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "list_group_members", req)
	if err != nil {
		return nil, err
	}
	return decodeContacts(body)
}

// GetLog returns delivery log rows inside the filter's range, in the
// order the gateway serves them. A zero filter leaves the range to the
// gateway's default window.
func (c *Client) GetLog(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	req, err := buildGetLog(filter)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "get_log", req)
	if err != nil {
		return nil, err
	}
	return decodeLog(body)
}
