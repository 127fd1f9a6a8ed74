package bot

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/minecraft"
	"github.com/minefleet/afkconsole/internal/store"
)

type chatLine struct {
	text string
	at   time.Time
}

type controlChange struct {
	control minecraft.Control
	active  bool
}

// fakeConn records every call so tests can assert on control traffic.
type fakeConn struct {
	mu       sync.Mutex
	ended    bool
	chats    []chatLine
	controls []controlChange
	looks    int
	swings   int
}

func (c *fakeConn) Chat(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, chatLine{text: message, at: time.Now()})
	return nil
}

func (c *fakeConn) SetControlState(control minecraft.Control, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, controlChange{control: control, active: active})
	return nil
}

func (c *fakeConn) Look(yaw, pitch float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.looks++
	return nil
}

func (c *fakeConn) SwingArm() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swings++
	return nil
}

func (c *fakeConn) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *fakeConn) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = true
	return nil
}

func (c *fakeConn) chatMessages() []chatLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chatLine, len(c.chats))
	copy(out, c.chats)
	return out
}

func (c *fakeConn) controlLog() []controlChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]controlChange, len(c.controls))
	copy(out, c.controls)
	return out
}

// dialResult is one captured dial: the connection handed out and the callback
// bundle the session registered, so tests can fire connection signals.
type dialResult struct {
	conn   *fakeConn
	events minecraft.Events
	opts   minecraft.Options
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    chan dialResult
	attempts int
	err      error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan dialResult, 16)}
}

func (d *fakeDialer) failWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) Dial(ctx context.Context, opts minecraft.Options, ev minecraft.Events) (minecraft.Conn, error) {
	d.mu.Lock()
	d.attempts++
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	conn := &fakeConn{}
	d.dials <- dialResult{conn: conn, events: ev, opts: opts}
	return conn, nil
}

func (d *fakeDialer) dialAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) waitDial(t *testing.T) dialResult {
	t.Helper()
	select {
	case res := <-d.dials:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for dial")
		return dialResult{}
	}
}

type harness struct {
	store   *store.Store
	events  *event.Listener
	dialer  *fakeDialer
	manager *Manager
	bus     chan event.Event
}

// newHarness builds a manager against a temp-dir store, a real listener and a
// fake dialer. Login delay is zeroed so sessions dial immediately.
func newHarness(t *testing.T, mutate func(*store.Settings)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.SaveInfo(store.ServerInfo{ServerIP: "localhost", ServerPort: 25565, Version: "1.20.1", LoginDelay: 0}); err != nil {
		t.Fatal(err)
	}

	settings, err := st.Settings()
	if err != nil {
		t.Fatal(err)
	}
	settings.AntiAFK = false
	settings.JoinMessages = false
	settings.WorldChangeMessages = false
	settings.Sneak = false
	settings.AutoReconnect = false
	if mutate != nil {
		mutate(&settings)
	}
	if err := st.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveAccounts([]store.Account{
		{Username: "Steve", Auth: store.AuthOffline},
		{Username: "Alex", Auth: store.AuthOffline},
	}); err != nil {
		t.Fatal(err)
	}

	listener := event.NewListener(logger)
	bus := make(chan event.Event, 256)
	listener.Register(func(_ context.Context, e event.Event) error {
		bus <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go listener.Listen(ctx)

	dialer := newFakeDialer()
	manager := NewManager(logger, st, listener, dialer, 0)
	t.Cleanup(manager.StopAll)

	return &harness{store: st, events: listener, dialer: dialer, manager: manager, bus: bus}
}

// waitStatus blocks until a status event for the bot with the given status
// value arrives on the bus.
func (h *harness) waitStatus(t *testing.T, botName, status string) event.StatusEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-h.bus:
			if se, ok := e.(event.StatusEvent); ok && se.BotName() == botName && se.Status == status {
				return se
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q for %s", status, botName)
		}
	}
}

func (h *harness) waitEvent(t *testing.T, match func(event.Event) bool) event.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-h.bus:
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}
