package tui_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/sirupsen/logrus/hooks/test"

	"todoq/backend"
	"todoq/backend/rest"
	"todoq/internal/notification"
	"todoq/internal/reconcile"
	"todoq/internal/stubserver"
	"todoq/internal/tui"
)

// sendKeyAndWait sends a key message and waits briefly for processing.
func sendKeyAndWait(tm *teatest.TestModel, key tea.KeyMsg) {
	tm.Send(key)
	time.Sleep(20 * time.Millisecond)
}

// sendRunesAndWait sends a rune key message and waits briefly for processing.
func sendRunesAndWait(tm *teatest.TestModel, runes []rune) {
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyRunes, Runes: runes})
}

// =============================================================================
// TUI Tests
// =============================================================================

type fixture struct {
	stub   *stubserver.Server
	client *rest.Client
	cache  *reconcile.Cache
	notify notification.NotificationManager
}

// newFixture runs the cache against an in-memory collection server
func newFixture(t *testing.T, seed ...string) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	stub := stubserver.New(stubserver.Config{Seed: seed}, logger)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	client, err := rest.New(rest.Config{Endpoint: ts.URL + stub.Path(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	mgr, err := notification.NewManager(notification.DefaultConfig(), notification.WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to create notification manager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	cache := reconcile.New(client, reconcile.WithLogger(logger), reconcile.WithNotifier(mgr))
	t.Cleanup(func() { _ = cache.Close() })

	return &fixture{stub: stub, client: client, cache: cache, notify: mgr}
}

func (f *fixture) start(t *testing.T, width int) *teatest.TestModel {
	t.Helper()
	model := tui.New(f.cache, tui.Options{NewestFirst: true, Notices: f.notify.Notices()})
	return teatest.NewTestModel(t, model, teatest.WithInitialTermSize(width, 24))
}

func waitForOutput(t *testing.T, tm *teatest.TestModel, want string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte(want))
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))
}

func waitForServer(t *testing.T, stub *stubserver.Server, cond func(backend.ItemList) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(stub.Items()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never reached expected state, has %v", stub.Items())
}

func quit(t *testing.T, tm *teatest.TestModel) {
	t.Helper()
	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return out
}

// TestTUILaunch - the list loads from the server on start
func TestTUILaunch(t *testing.T) {
	f := newFixture(t, "Review PR", "Write tests")
	tm := f.start(t, 80)

	waitForOutput(t, tm, "Write tests")
	quit(t, tm)
}

// TestTUIEmptyList - an empty collection renders a placeholder
func TestTUIEmptyList(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t, 80)

	waitForOutput(t, tm, "No items")
	quit(t, tm)
}

// TestTUIAddItem - 'a' opens the input and Enter adds the item remotely
func TestTUIAddItem(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'a'})
	tm.Type("Buy milk")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForOutput(t, tm, "Buy milk")
	waitForServer(t, f.stub, func(items backend.ItemList) bool {
		return len(items) == 2 && items[1].Title == "Buy milk"
	})
	quit(t, tm)
}

// TestTUIAddShowsSpeculativeItem - a slow create shows the item as saving before it is confirmed
func TestTUIAddShowsSpeculativeItem(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	f.stub.SetLatency(500 * time.Millisecond)
	sendRunesAndWait(tm, []rune{'a'})
	tm.Type("Slow item")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForOutput(t, tm, "(saving)")
	quit(t, tm)
}

// TestTUIAddFailureShowsNotice - a rejected create is rolled back and reported in the status bar
func TestTUIAddFailureShowsNotice(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 140)
	waitForOutput(t, tm, "Review PR")

	f.stub.FailNext(http.MethodPost, http.StatusInternalServerError)
	sendRunesAndWait(tm, []rune{'a'})
	tm.Type("Doomed")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForOutput(t, tm, "failed")
	if got := f.cache.Items(); len(got) != 1 || got[0].Title != "Review PR" {
		t.Errorf("expected rollback to the original list, got %v", got)
	}
	quit(t, tm)
}

// TestTUIAddEmptyTitleRejected - a blank title is refused locally
func TestTUIAddEmptyTitleRejected(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 120)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'a'})
	tm.Type("   ")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForOutput(t, tm, "title")
	quit(t, tm)

	if reqs := f.stub.Requests(); len(reqs) != 1 {
		t.Errorf("expected only the initial list request, got %v", reqs)
	}
}

// TestTUIEditItem - 'e' edits the selected item
func TestTUIEditItem(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'e'})
	for range "Review PR" {
		tm.Send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	tm.Type("Merge PR")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForServer(t, f.stub, func(items backend.ItemList) bool {
		return len(items) == 1 && items[0].Title == "Merge PR"
	})
	waitForOutput(t, tm, "Merge PR")
	quit(t, tm)
}

// TestTUIEditCancel - Esc leaves the item untouched
func TestTUIEditCancel(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'e'})
	waitForOutput(t, tm, "Edit Item 1")
	tm.Type(" later")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEsc})
	quit(t, tm)

	if got := f.stub.Items(); got[0].Title != "Review PR" {
		t.Errorf("expected title unchanged, got %q", got[0].Title)
	}
}

// TestTUIDeleteItem - 'd' with confirmation deletes the selected item
func TestTUIDeleteItem(t *testing.T) {
	f := newFixture(t, "Review PR", "Write tests")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Write tests")

	// Newest first: the cursor starts on "Write tests".
	sendRunesAndWait(tm, []rune{'d'})
	waitForOutput(t, tm, "Delete \"Write tests\"?")
	sendRunesAndWait(tm, []rune{'y'})

	waitForServer(t, f.stub, func(items backend.ItemList) bool {
		return len(items) == 1 && items[0].Title == "Review PR"
	})
	quit(t, tm)
}

// TestTUIDeleteDeclined - 'n' keeps the item
func TestTUIDeleteDeclined(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'n'})
	quit(t, tm)

	if got := f.stub.Items(); len(got) != 1 {
		t.Errorf("expected item kept, got %v", got)
	}
}

// TestTUIDeleteTargetsConfirmedItem - 'y' deletes the item shown in the dialog,
// not whatever the cursor landed on after the list changed
func TestTUIDeleteTargetsConfirmedItem(t *testing.T) {
	f := newFixture(t, "Review PR", "Write tests")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Write tests")

	// Newest first: the cursor starts on "Write tests".
	sendRunesAndWait(tm, []rune{'d'})
	waitForOutput(t, tm, "Delete \"Write tests\"?")

	// Someone else removes it; the refreshed list moves the cursor onto "Review PR".
	ctx := context.Background()
	if err := f.client.Remove(ctx, 2); err != nil {
		t.Fatalf("failed to remove item on the server: %v", err)
	}
	if err := f.cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	sendRunesAndWait(tm, []rune{'y'})
	waitForOutput(t, tm, "item not found")
	quit(t, tm)

	got := f.stub.Items()
	if len(got) != 1 || got[0].Title != "Review PR" {
		t.Errorf("expected the neighbour kept, got %v", got)
	}
	deletes := 0
	for _, r := range f.stub.Requests() {
		if strings.HasPrefix(r, "DELETE") {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("expected only the external delete, got %v", f.stub.Requests())
	}
}

// TestTUIRefresh - 'r' picks up changes made on the server
func TestTUIRefresh(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	f.stub.Seed("Added elsewhere")
	sendRunesAndWait(tm, []rune{'r'})

	waitForOutput(t, tm, "Added elsewhere")
	quit(t, tm)
}

// TestTUINavigation - j/k move the cursor within bounds
func TestTUINavigation(t *testing.T) {
	f := newFixture(t, "first", "second", "third")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "first")

	sendRunesAndWait(tm, []rune{'j'})
	sendRunesAndWait(tm, []rune{'j'})
	sendRunesAndWait(tm, []rune{'j'})
	sendRunesAndWait(tm, []rune{'k'})

	// Cursor is on "second"; deleting it proves the selection moved.
	sendRunesAndWait(tm, []rune{'d'})
	waitForOutput(t, tm, "Delete \"second\"?")
	sendRunesAndWait(tm, []rune{'n'})
	quit(t, tm)
}

// TestTUIKeyBindings - '?' shows the help panel
func TestTUIKeyBindings(t *testing.T) {
	f := newFixture(t, "Review PR")
	tm := f.start(t, 80)
	waitForOutput(t, tm, "Review PR")

	sendRunesAndWait(tm, []rune{'?'})
	waitForOutput(t, tm, "Key Bindings")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEsc})
	quit(t, tm)
}

// TestTUIQuit - 'q' exits the TUI gracefully
func TestTUIQuit(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t, 80)

	time.Sleep(50 * time.Millisecond)
	sendRunesAndWait(tm, []rune{'q'})

	out := readAll(t, tm.FinalOutput(t, teatest.WithFinalTimeout(2*time.Second)))
	if len(out) == 0 {
		t.Error("expected TUI to render some output")
	}
}
