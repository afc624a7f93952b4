package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"todoq/backend"
)

// =============================================================================
// Gated Collection Fake
// =============================================================================

// remoteCall is one request parked in the fake until the test releases it
type remoteCall struct {
	Op      string
	Title   string
	ID      backend.ItemID
	release chan error
}

// Succeed lets the request reach the fake server
func (rc *remoteCall) Succeed() {
	rc.release <- nil
}

// Fail makes the request fail with a transport failure
func (rc *remoteCall) Fail(status int) {
	rc.release <- &backend.TransportFailure{Op: rc.Op, Status: status}
}

// gatedCollection is an in-memory collection whose calls block until released,
// so tests decide exactly when and in which order requests complete.
type gatedCollection struct {
	mu     sync.Mutex
	items  backend.ItemList
	nextID backend.ItemID
	calls  chan *remoteCall
	auto   bool
}

func newGatedCollection(items ...backend.Item) *gatedCollection {
	next := backend.ItemID(1)
	for _, it := range items {
		if it.ID >= next {
			next = it.ID + 1
		}
	}
	return &gatedCollection{
		items:  backend.ItemList(items).Clone(),
		nextID: next,
		calls:  make(chan *remoteCall, 64),
	}
}

// SetAuto makes every call proceed immediately
func (g *gatedCollection) SetAuto(auto bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auto = auto
}

// ServerItems returns what an independent read would see
func (g *gatedCollection) ServerItems() backend.ItemList {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.items.Clone()
}

func (g *gatedCollection) gate(ctx context.Context, rc *remoteCall) error {
	g.mu.Lock()
	auto := g.auto
	g.mu.Unlock()
	if auto {
		return nil
	}

	rc.release = make(chan error, 1)
	g.calls <- rc
	select {
	case err := <-rc.release:
		return err
	case <-ctx.Done():
		return &backend.TransportFailure{Op: rc.Op, Err: ctx.Err()}
	}
}

func (g *gatedCollection) FetchAll(ctx context.Context) (backend.ItemList, error) {
	if err := g.gate(ctx, &remoteCall{Op: "list"}); err != nil {
		return nil, err
	}
	return g.ServerItems(), nil
}

func (g *gatedCollection) Create(ctx context.Context, title string) (*backend.Item, error) {
	if err := g.gate(ctx, &remoteCall{Op: "create", Title: title}); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	it := backend.Item{ID: g.nextID, Title: title}
	g.nextID++
	g.items = append(g.items, it)
	return &it, nil
}

func (g *gatedCollection) Update(ctx context.Context, id backend.ItemID, fields backend.Patch) (*backend.Item, error) {
	if err := g.gate(ctx, &remoteCall{Op: "update", ID: id, Title: *fields.Title}); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.items.IndexOf(id)
	if i < 0 {
		return nil, &backend.TransportFailure{Op: "update", Status: 404}
	}
	g.items[i].Title = *fields.Title
	it := g.items[i]
	return &it, nil
}

func (g *gatedCollection) Remove(ctx context.Context, id backend.ItemID) error {
	if err := g.gate(ctx, &remoteCall{Op: "remove", ID: id}); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.items.IndexOf(id)
	if i < 0 {
		return &backend.TransportFailure{Op: "remove", Status: 404}
	}
	g.items = append(g.items[:i], g.items[i+1:]...)
	return nil
}

// expectCall waits for the next parked request and checks its operation
func (g *gatedCollection) expectCall(t *testing.T, op string) *remoteCall {
	t.Helper()
	select {
	case rc := <-g.calls:
		if rc.Op != op {
			t.Fatalf("expected %s call, got %s", op, rc.Op)
		}
		return rc
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s call", op)
		return nil
	}
}

// expectNoCall asserts that no request is parked
func (g *gatedCollection) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case rc := <-g.calls:
		t.Fatalf("unexpected %s call", rc.Op)
	case <-time.After(50 * time.Millisecond):
	}
}

var _ backend.Collection = (*gatedCollection)(nil)
