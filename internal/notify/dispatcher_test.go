package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
)

type fakeNotifier struct {
	mu         sync.Mutex
	state      PermissionState
	grantOnAsk bool
	requests   int
	notified   []Notification
	notifyErr  error
}

func (f *fakeNotifier) PermissionState() PermissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeNotifier) RequestPermission() PermissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.grantOnAsk {
		f.state = PermissionGranted
	} else {
		f.state = PermissionDenied
	}
	return f.state
}

func (f *fakeNotifier) Notify(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, n)
	return f.notifyErr
}

func (f *fakeNotifier) notifiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notified)
}

type fakeTitleBoard struct {
	mu    sync.Mutex
	title string
}

func (f *fakeTitleBoard) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title
}

func (f *fakeTitleBoard) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

func testNotifyConfig(restoreAfter time.Duration) config.NotifyConfig {
	return config.NotifyConfig{
		TitleRestoreAfter: restoreAfter,
		DoneMarker:        "✅",
	}
}

func waitForTitle(t *testing.T, board *fakeTitleBoard, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if board.Title() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("title = %q, want %q", board.Title(), want)
}

func TestDeliverRaisesNotificationWhenGranted(t *testing.T) {
	n := &fakeNotifier{state: PermissionGranted}
	board := &fakeTitleBoard{title: "Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(time.Minute))

	d.Deliver("Analysis complete", "Results for site-4 are ready")

	if got := n.notifiedCount(); got != 1 {
		t.Fatalf("Notify called %d times, want 1", got)
	}
	n.mu.Lock()
	got := n.notified[0]
	n.mu.Unlock()
	if got.Title != "Analysis complete" || got.Body != "Results for site-4 are ready" {
		t.Errorf("notification = %+v", got)
	}
	if got.ID == "" {
		t.Error("notification has empty ID")
	}
	if n.requests != 0 {
		t.Errorf("RequestPermission called %d times for an already-granted state", n.requests)
	}
}

func TestDeliverRequestsPermissionOnce(t *testing.T) {
	n := &fakeNotifier{state: PermissionUndecided, grantOnAsk: true}
	board := &fakeTitleBoard{title: "Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(time.Minute))

	d.Deliver("Analysis complete", "ready")

	if n.requests != 1 {
		t.Errorf("RequestPermission called %d times, want 1", n.requests)
	}
	if got := n.notifiedCount(); got != 1 {
		t.Errorf("Notify called %d times after newly-granted permission, want 1", got)
	}
}

func TestDeliverSkipsSilentlyWhenDenied(t *testing.T) {
	n := &fakeNotifier{state: PermissionUndecided, grantOnAsk: false}
	board := &fakeTitleBoard{title: "Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(time.Minute))

	d.Deliver("Analysis complete", "ready")

	if got := n.notifiedCount(); got != 0 {
		t.Errorf("Notify called %d times with denied permission, want 0", got)
	}
	// The title flash still happens: notification skipping never blocks it.
	if board.Title() == "Network Inventory" {
		t.Error("title flash skipped when notification permission denied")
	}
}

func TestDeliverSurvivesNotifyError(t *testing.T) {
	n := &fakeNotifier{state: PermissionGranted, notifyErr: errors.New("client gone")}
	board := &fakeTitleBoard{title: "Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(time.Minute))

	d.Deliver("Analysis complete", "ready") // must not panic

	if board.Title() == "Network Inventory" {
		t.Error("title flash skipped after Notify error")
	}
}

func TestTitleFlashAndExactRestore(t *testing.T) {
	n := &fakeNotifier{state: PermissionGranted}
	board := &fakeTitleBoard{title: "Network Inventory - Devices"}
	d := NewDispatcher(n, board, testNotifyConfig(30*time.Millisecond))

	d.Deliver("Analysis complete", "ready")

	want := "✅ Analysis complete | Network Inventory - Devices"
	if got := board.Title(); got != want {
		t.Errorf("flashed title = %q, want %q", got, want)
	}

	waitForTitle(t, board, "Network Inventory - Devices")
}

func TestSecondDeliveryNeverCompoundsPrefixes(t *testing.T) {
	n := &fakeNotifier{state: PermissionGranted}
	board := &fakeTitleBoard{title: "Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(40*time.Millisecond))

	d.Deliver("Analysis complete", "ready")
	// Second notification before the first restoration completes.
	d.Deliver("Topology refreshed", "ready")

	want := "✅ Topology refreshed | Network Inventory"
	if got := board.Title(); got != want {
		t.Errorf("title after second delivery = %q, want %q", got, want)
	}

	// Restoration yields the exact pre-mutation title.
	waitForTitle(t, board, "Network Inventory")
}

func TestFlashStripsLeftoverMarker(t *testing.T) {
	n := &fakeNotifier{state: PermissionGranted}
	board := &fakeTitleBoard{title: "✅ Old flash | Network Inventory"}
	d := NewDispatcher(n, board, testNotifyConfig(30*time.Millisecond))

	d.Deliver("Analysis complete", "ready")

	want := "✅ Analysis complete | Network Inventory"
	if got := board.Title(); got != want {
		t.Errorf("flashed title = %q, want %q", got, want)
	}
	waitForTitle(t, board, "Network Inventory")
}
