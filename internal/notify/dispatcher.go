package notify

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
	"github.com/google/uuid"
)

// PermissionState mirrors the platform notification permission model:
// ask-once, then granted or denied.
type PermissionState int

const (
	PermissionUndecided PermissionState = iota
	PermissionGranted
	PermissionDenied
)

var permissionNames = map[PermissionState]string{
	PermissionUndecided: "undecided",
	PermissionGranted:   "granted",
	PermissionDenied:    "denied",
}

func (p PermissionState) String() string {
	if s, ok := permissionNames[p]; ok {
		return s
	}
	return "unknown"
}

// Notification is one user-visible completion signal.
type Notification struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier is the platform notification collaborator: check or request
// permission, then raise a notification.
type Notifier interface {
	PermissionState() PermissionState
	RequestPermission() PermissionState
	Notify(n Notification) error
}

// TitleBoard is the page-title read/write collaborator.
type TitleBoard interface {
	Title() string
	SetTitle(title string)
}

// titleSep separates the flash prefix from the original title.
const titleSep = " | "

// Dispatcher delivers the user-visible completion signal for a poll
// session: a platform notification plus a temporary page-title flash that
// is restored to the exact pre-mutation title after a fixed delay.
type Dispatcher struct {
	notifier     Notifier
	titles       TitleBoard
	restoreAfter time.Duration
	doneMarker   string

	mu             sync.Mutex
	savedTitle     string
	restorePending bool
	restoreTimer   *time.Timer
}

func NewDispatcher(notifier Notifier, titles TitleBoard, cfg config.NotifyConfig) *Dispatcher {
	return &Dispatcher{
		notifier:     notifier,
		titles:       titles,
		restoreAfter: cfg.TitleRestoreAfter,
		doneMarker:   cfg.DoneMarker,
	}
}

// Deliver raises the completion signal once. Notification failures are
// logged and never propagate: delivery of the result itself has already
// happened by the time the dispatcher runs.
func (d *Dispatcher) Deliver(title, body string) {
	d.raiseNotification(title, body)
	d.flashTitle(title)
}

func (d *Dispatcher) raiseNotification(title, body string) {
	perm := d.notifier.PermissionState()
	if perm == PermissionUndecided {
		perm = d.notifier.RequestPermission()
	}
	if perm != PermissionGranted {
		log.Printf("[notify] skipping platform notification (permission %s)", perm)
		return
	}

	n := Notification{
		ID:    uuid.NewString(),
		Title: title,
		Body:  body,
	}
	if err := d.notifier.Notify(n); err != nil {
		log.Printf("[notify] platform notification failed: %v", err)
	}
}

// flashTitle prefixes the done marker and notification title onto the page
// title and schedules a restore. While a restore is pending the saved
// pre-mutation title is reused, so back-to-back notifications replace the
// flash instead of compounding prefixes, and the eventual restore still
// yields the original title exactly.
func (d *Dispatcher) flashTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	base := d.titles.Title()
	if d.restorePending {
		base = d.savedTitle
	} else {
		base = d.stripDonePrefix(base)
		d.savedTitle = base
		d.restorePending = true
	}

	d.titles.SetTitle(d.doneMarker + " " + title + titleSep + base)

	if d.restoreTimer != nil {
		d.restoreTimer.Stop()
	}
	d.restoreTimer = time.AfterFunc(d.restoreAfter, d.restoreTitle)
}

func (d *Dispatcher) restoreTitle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.restorePending {
		return
	}
	d.titles.SetTitle(d.savedTitle)
	d.restorePending = false
	d.restoreTimer = nil
}

// stripDonePrefix removes a leftover flash prefix from a title. Covers the
// case where the process restarted while a flash was up and the stored
// title still carries the marker.
func (d *Dispatcher) stripDonePrefix(title string) string {
	if !strings.HasPrefix(title, d.doneMarker+" ") {
		return title
	}
	if i := strings.Index(title, titleSep); i >= 0 {
		return title[i+len(titleSep):]
	}
	return title
}
