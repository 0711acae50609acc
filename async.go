package cpsms

import "context"

// Future holds the eventual result of one non-blocking operation. It is
// safe to share across goroutines and Wait may be called any number of
// times.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed once the operation has finished, successfully or not.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation completes or ctx ends. A ctx failure
// abandons only the wait; the operation keeps running on the context it
// was issued with.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// resolve completes the future. Called exactly once, by dispatch.
func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// dispatch runs op on its own goroutine and returns the future carrying
// its outcome. Every call owns its entire request/response state;
// nothing is shared between in-flight operations beyond the transport,
// which is safe for concurrent use.
func dispatch[T any](op func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		f.resolve(op())
	}()
	return f
}

// AsyncClient is the non-blocking variant of Client. Operations return
// immediately with a Future while the round-trip runs on its own
// goroutine. Validation and decoding are identical to the blocking
// client, so a structurally malformed request resolves its future
// without any transport call ever happening. Futures complete in
// network order, not issuance order.
type AsyncClient struct {
	c *Client
}

// NewAsyncClient builds a non-blocking client from cfg. The instance
// owns its transport exactly the way a blocking client does.
func NewAsyncClient(cfg Config) (*AsyncClient, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &AsyncClient{c: c}, nil
}

// Close releases the transport exactly once. In-flight operations are
// unaffected; they finish or fail on their own contexts.
func (a *AsyncClient) Close() error {
	return a.c.Close()
}

// SendSMS is the non-blocking SendSMS. Canceling ctx cancels the
// in-flight request without corrupting the shared transport.
func (a *AsyncClient) SendSMS(ctx context.Context, to []string, msg Message) *Future[*SendReport] {
	return dispatch(func() (*SendReport, error) {
		return a.c.SendSMS(ctx, to, msg)
	})
}

// SendToGroup is the non-blocking SendToGroup.
func (a *AsyncClient) SendToGroup(ctx context.Context, groupID int64, msg Message) *Future[*SendReport] {
	return dispatch(func() (*SendReport, error) {
		return a.c.SendToGroup(ctx, groupID, msg)
	})
}

// CancelScheduled is the non-blocking CancelScheduled.
func (a *AsyncClient) CancelScheduled(ctx context.Context, reference string) *Future[struct{}] {
	return dispatch(func() (struct{}, error) {
		return struct{}{}, a.c.CancelScheduled(ctx, reference)
	})
}

// Credit is the non-blocking Credit.
func (a *AsyncClient) Credit(ctx context.Context) *Future[*CreditBalance] {
	return dispatch(func() (*CreditBalance, error) {
		return a.c.Credit(ctx)
	})
}

// CreateGroup is the non-blocking CreateGroup.
func (a *AsyncClient) CreateGroup(ctx context.Context, name string) *Future[*Group] {
	return dispatch(func() (*Group, error) {
		return a.c.CreateGroup(ctx, name)
	})
}

// ListGroups is the non-blocking ListGroups.
func (a *AsyncClient) ListGroups(ctx context.Context) *Future[[]Group] {
	return dispatch(func() ([]Group, error) {
		return a.c.ListGroups(ctx)
	})
}

// UpdateGroup is the non-blocking UpdateGroup.
func (a *AsyncClient) UpdateGroup(ctx context.Context, id int64, name string) *Future[*Group] {
	return dispatch(func() (*Group, error) {
		return a.c.UpdateGroup(ctx, id, name)
	})
}

// DeleteGroup is the non-blocking DeleteGroup.
func (a *AsyncClient) DeleteGroup(ctx context.Context, id int64) *Future[struct{}] {
	return dispatch(func() (struct{}, error) {
		return struct{}{}, a.c.DeleteGroup(ctx, id)
	})
}

// CreateContact is the non-blocking CreateContact.
func (a *AsyncClient) CreateContact(ctx context.Context, contact NewContact) *Future[*Contact] {
	return dispatch(func() (*Contact, error) {
		return a.c.CreateContact(ctx, contact)
	})
}

// ListContacts is the non-blocking ListContacts.
func (a *AsyncClient) ListContacts(ctx context.Context) *Future[[]Contact] {
	return dispatch(func() ([]Contact, error) {
		return a.c.ListContacts(ctx)
	})
}

// UpdateContact is the non-blocking UpdateContact.
func (a *AsyncClient) UpdateContact(ctx context.Context, id int64, upd ContactUpdate) *Future[*Contact] {
	return dispatch(func() (*Contact, error) {
		return a.c.UpdateContact(ctx, id, upd)
	})
}

// DeleteContact is the non-blocking DeleteContact.
func (a *AsyncClient) DeleteContact(ctx context.Context, id int64) *Future[struct{}] {
	return dispatch(func() (struct{}, error) {
		return struct{}{}, a.c.DeleteContact(ctx, id)
	})
}

// ListGroupMembers is the non-blocking ListGroupMembers.
func (a *AsyncClient) ListGroupMembers(ctx context.Context, groupID int64) *Future[[]Contact] {
	return dispatch(func() ([]Contact, error) {
		return a.c.ListGroupMembers(ctx, groupID)
	})
}

// GetLog is the non-blocking GetLog.
func (a *AsyncClient) GetLog(ctx context.Context, filter LogFilter) *Future[[]LogEntry] {
	return dispatch(func() ([]LogEntry, error) {
		return a.c.GetLog(ctx, filter)
	})
}
