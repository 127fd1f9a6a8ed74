package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/minecraft"
	"github.com/minefleet/afkconsole/internal/store"
)

// State is the session lifecycle position. Kicked and death reports do not
// move the state; only the underlying end signal (or a forced termination)
// reaches StateEnded.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateSpawned
	StateEnded
)

var (
	// connectTimeout guards against connections that never reach login.
	connectTimeout = 45 * time.Second
	// messageStagger separates consecutive scripted chat messages.
	messageStagger = 300 * time.Millisecond
	// inventoryDebounce coalesces rapid multi-slot inventory updates.
	inventoryDebounce = 250 * time.Millisecond
)

// Session owns one live connection for one account: it drives the state
// machine, schedules the behavior timers and translates connection signals
// into domain events. Sessions are created by the Manager and are never
// reused; a reconnect builds a fresh one.
type Session struct {
	account  store.Account
	info     store.ServerInfo
	settings store.Settings
	version  string
	opts     minecraft.Options

	logger *slog.Logger
	dialer minecraft.Dialer
	timers *timerSet

	publish    func(event.Event)
	registered func(*Session) bool
	onSpawned  func(*Session)
	onEnded    func(*Session, bool)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     minecraft.Conn
	timedOut bool

	lastHealth     *event.HealthEvent
	lastExperience *event.ExperienceEvent
	inventory      map[int]event.InventorySlot
	pendingSlots   map[int]event.InventorySlot
}

func (s *Session) Name() string {
	return s.account.Username
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// active reports whether commands can act on the connection right now.
func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected && s.state != StateSpawned {
		return false
	}
	return s.conn != nil && !s.conn.Ended()
}

func (s *Session) liveConn() minecraft.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected && s.state != StateSpawned {
		return nil
	}
	if s.conn == nil || s.conn.Ended() {
		return nil
	}
	return s.conn
}

// run performs the Create→Connecting leg: apply the login delay, arm the
// connect guard and open the connection. Runs on its own goroutine; the
// session is already registered when it starts.
func (s *Session) run() {
	s.publish(event.Status(s.Name(), event.StatusConnecting, "Connecting..."))

	if delay := time.Duration(s.info.LoginDelay) * time.Second; delay > 0 {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	s.timers.after(timerConnectGuard, connectTimeout, s.handleConnectTimeout)

	conn, err := s.dialer.Dial(s.ctx, s.opts, s.callbacks())
	if err != nil {
		s.mu.Lock()
		alreadyEnded := s.state == StateEnded
		s.mu.Unlock()
		if alreadyEnded {
			// terminated while dialing (manual disconnect or guard)
			return
		}
		s.handleError(err)
		// a connection that never opened has nothing to resume; only the
		// end signal of an established connection triggers auto-reconnect
		if s.finish() {
			s.publish(event.Status(s.Name(), event.StatusDisconnected, "Disconnected: "+err.Error()))
			s.onEnded(s, true)
		}
		return
	}

	s.mu.Lock()
	ended := s.state == StateEnded
	if !ended {
		s.conn = conn
	}
	s.mu.Unlock()
	if ended {
		_ = conn.Quit()
	}
}

func (s *Session) callbacks() minecraft.Events {
	return minecraft.Events{
		OnLogin:         s.handleLogin,
		OnSpawn:         s.handleSpawn,
		OnChat:          s.handleChat,
		OnSystemMessage: s.handleSystemMessage,
		OnHealth:        s.handleHealth,
		OnExperience:    s.handleExperience,
		OnInventory:     s.handleInventory,
		OnError:         s.handleError,
		OnEnd:           s.handleEnd,
		OnKicked:        s.handleKicked,
		OnDeath:         s.handleDeath,
	}
}

// finish moves the session to StateEnded exactly once, cancelling every
// timer and releasing the connection. Returns false when already ended.
func (s *Session) finish() bool {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return false
	}
	s.state = StateEnded
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	s.timers.cancelAll()
	if conn != nil && !conn.Ended() {
		_ = conn.Quit()
	}
	return true
}

// Connecting → Connected.
func (s *Session) handleLogin() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.mu.Unlock()

	s.timers.clear(timerConnectGuard)
	s.publish(event.Status(s.Name(), event.StatusConnected, "Connected"))

	if s.settings.JoinMessages && len(s.settings.JoinMessagesList) > 0 {
		delay := time.Duration(s.settings.JoinMessageDelay) * time.Second
		s.scheduleMessages(timerJoinMessages, delay, s.settings.JoinMessagesList)
	}

	if s.settings.Sneak {
		s.timers.after(timerSneak, 500*time.Millisecond, func() {
			if conn := s.liveConn(); conn != nil {
				_ = conn.SetControlState(minecraft.ControlSneak, true)
			}
		})
	}
}

// Connected → Spawned.
func (s *Session) handleSpawn() {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateSpawned
	s.mu.Unlock()

	s.timers.clear(timerConnectGuard)
	s.publish(event.Status(s.Name(), event.StatusSpawned, "Spawned"))

	if s.settings.WorldChangeMessages && len(s.settings.WorldChangeMessagesList) > 0 {
		delay := time.Duration(s.settings.WorldChangeMessageDelay) * time.Second
		s.scheduleMessages(timerWorldMessages, delay, s.settings.WorldChangeMessagesList)
	}

	s.startAntiIdle()

	if s.onSpawned != nil {
		s.onSpawned(s)
	}
}

// scheduleMessages stagger-sends a message list: the first entry goes out
// after delay, each following entry 300ms later. Blank entries keep their
// stagger slot but are not sent.
func (s *Session) scheduleMessages(name string, delay time.Duration, messages []string) {
	actions := make([]timedAction, 0, len(messages))
	for i, msg := range messages {
		trimmed := strings.TrimSpace(msg)
		if trimmed == "" {
			continue
		}
		offset := delay + time.Duration(i)*messageStagger
		actions = append(actions, timedAction{offset: offset, run: func() {
			if conn := s.liveConn(); conn != nil {
				_ = conn.Chat(trimmed)
			}
		}})
	}
	if len(actions) == 0 {
		return
	}
	s.timers.runSchedule(name, actions, s.active)
}

// Any active state → Ended, driven by the low-level end signal.
func (s *Session) handleEnd(reason string) {
	if reason == "" {
		reason = "Unknown"
	}
	if !s.finish() {
		return
	}

	s.publish(event.Status(s.Name(), event.StatusDisconnected, "Disconnected: "+reason))

	s.mu.Lock()
	timedOut := s.timedOut
	s.mu.Unlock()
	s.onEnded(s, timedOut)
}

func (s *Session) handleConnectTimeout() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.timedOut = true
	s.mu.Unlock()

	msg := fmt.Sprintf("connection timed out after %ds", int(connectTimeout.Seconds()))
	s.publish(event.Error(s.Name(), msg))

	if s.finish() {
		s.publish(event.Status(s.Name(), event.StatusDisconnected, "Disconnected: "+msg))
		s.onEnded(s, true)
	}
}

// handleError routes a low-level error through the classifier. Only timeouts
// terminate the session from here; everything else is either swallowed or
// reported and left for the end signal to resolve.
func (s *Session) handleError(err error) {
	classified := Classify(err.Error())
	switch classified.Kind {
	case ErrorIgnorable:
		s.logger.Debug("Ignoring benign connection error",
			slog.String("bot", s.Name()), slog.String("error", classified.Message))
	case ErrorAuthChallenge:
		s.publish(event.MicrosoftAuth(s.Name(), classified.Code, classified.Message))
	case ErrorTimeout:
		s.mu.Lock()
		s.timedOut = true
		s.mu.Unlock()
		s.publish(event.Error(s.Name(), classified.Message))
		if s.finish() {
			s.publish(event.Status(s.Name(), event.StatusDisconnected, "Disconnected: "+classified.Message))
			s.onEnded(s, true)
		}
	default:
		s.publish(event.Error(s.Name(), classified.Message))
	}
}

// Kicked is a status report; the end signal that usually follows drives the
// actual termination.
func (s *Session) handleKicked(reason string) {
	s.publish(event.Status(s.Name(), event.StatusKicked, "Kicked: "+reason))
}

// Death is a status report only; the server respawns the bot.
func (s *Session) handleDeath() {
	s.publish(event.Status(s.Name(), event.StatusDeath, "Died and respawned"))
}

func (s *Session) handleChat(username, message string) {
	s.publish(event.Chat(s.Name(), username, message))
}

func (s *Session) handleSystemMessage(message string) {
	s.publish(event.Chat(s.Name(), "Server", message))
}

func (s *Session) handleHealth(health float64, food int) {
	e := event.Health(s.Name(), health, food)
	s.mu.Lock()
	s.lastHealth = &e
	s.mu.Unlock()
	s.publish(e)
}

func (s *Session) handleExperience(level, points int, progress float64) {
	e := event.Experience(s.Name(), level, points, progress)
	s.mu.Lock()
	s.lastExperience = &e
	s.mu.Unlock()
	s.publish(e)
}

// handleInventory buffers slot updates and flushes them as one event after a
// short quiet window, so rapid multi-slot changes do not flood the bus.
func (s *Session) handleInventory(slot minecraft.Slot) {
	s.mu.Lock()
	if s.pendingSlots == nil {
		s.pendingSlots = make(map[int]event.InventorySlot)
	}
	s.pendingSlots[slot.Slot] = event.InventorySlot{Slot: slot.Slot, Name: slot.Name, Count: slot.Count}
	s.mu.Unlock()

	s.timers.after(timerInventoryFlush, inventoryDebounce, s.flushInventory)
}

func (s *Session) flushInventory() {
	s.mu.Lock()
	if len(s.pendingSlots) == 0 {
		s.mu.Unlock()
		return
	}
	if s.inventory == nil {
		s.inventory = make(map[int]event.InventorySlot)
	}
	slots := make([]event.InventorySlot, 0, len(s.pendingSlots))
	for id, slot := range s.pendingSlots {
		s.inventory[id] = slot
		slots = append(slots, slot)
	}
	s.pendingSlots = nil
	s.mu.Unlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	s.publish(event.Inventory(s.Name(), slots))
}

// Telemetry returns the last known health, experience and inventory for
// resync. Nil pointers and an empty slice mean nothing is known yet.
func (s *Session) Telemetry() (*event.HealthEvent, *event.ExperienceEvent, []event.InventorySlot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	health := s.lastHealth
	experience := s.lastExperience
	var slots []event.InventorySlot
	for _, slot := range s.inventory {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	return health, experience, slots
}

func (s *Session) startAntiIdle() {
	if !s.settings.AntiAFK {
		return
	}
	interval := time.Duration(s.settings.AntiAFKInterval) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}
	s.timers.every(timerAntiIdle, interval, s.antiIdleTick)
}

// antiIdleTick performs the configured micro-actions, each at a small fixed
// offset inside the tick so they do not collide. The tick self-cancels when
// the session is gone, closing the scheduling race where a ticker outlives
// its session.
func (s *Session) antiIdleTick() {
	if !s.registered(s) || !s.active() {
		s.timers.clear(timerAntiIdle)
		return
	}

	physical := s.settings.AntiAFKPhysical
	chat := s.settings.AntiAFKChat
	var actions []timedAction

	press := func(c minecraft.Control, active bool) func() {
		return func() {
			if conn := s.liveConn(); conn != nil {
				_ = conn.SetControlState(c, active)
			}
		}
	}

	if physical.Forward {
		actions = append(actions,
			timedAction{offset: 0, run: press(minecraft.ControlForward, true)},
			timedAction{offset: 500 * time.Millisecond, run: press(minecraft.ControlForward, false)},
		)
	}
	if physical.Jump {
		actions = append(actions,
			timedAction{offset: 600 * time.Millisecond, run: press(minecraft.ControlJump, true)},
			timedAction{offset: 1100 * time.Millisecond, run: press(minecraft.ControlJump, false)},
		)
	}
	if physical.Head {
		actions = append(actions, timedAction{offset: 1200 * time.Millisecond, run: func() {
			if conn := s.liveConn(); conn != nil {
				yaw := rand.Float64() * 2 * math.Pi
				pitch := (rand.Float64() - 0.5) * math.Pi
				_ = conn.Look(yaw, pitch)
			}
		}})
	}
	if physical.Arm {
		actions = append(actions, timedAction{offset: 1300 * time.Millisecond, run: func() {
			if conn := s.liveConn(); conn != nil {
				_ = conn.SwingArm()
			}
		}})
	}
	if chat.Send && chat.Message != "" {
		actions = append(actions, timedAction{offset: 1400 * time.Millisecond, run: func() {
			if conn := s.liveConn(); conn != nil {
				_ = conn.Chat(chat.Message)
			}
		}})
	}

	if len(actions) == 0 {
		return
	}
	s.timers.runSchedule(timerAntiIdleActions, actions, s.active)
}

// EnableSpam starts (or replaces) the recurring operator chat message.
func (s *Session) EnableSpam(message string, delay time.Duration) {
	if message == "" {
		return
	}
	if delay <= 0 {
		delay = 20 * time.Second
	}
	s.timers.every(timerSpam, delay, func() {
		conn := s.liveConn()
		if conn == nil || !s.registered(s) {
			s.timers.clear(timerSpam)
			return
		}
		_ = conn.Chat(message)
	})
}

func (s *Session) DisableSpam() {
	s.timers.clear(timerSpam)
}

// Chat sends a chat line. Commands against inactive sessions are dropped by
// design; the debug trace keeps the drop observable.
func (s *Session) Chat(message string) {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("Dropping chat for inactive session", slog.String("bot", s.Name()))
		return
	}
	_ = conn.Chat(message)
}

// Move sets exactly one directional control active and clears the rest;
// option "stop" clears them all.
func (s *Session) Move(option string) {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("Dropping move for inactive session", slog.String("bot", s.Name()))
		return
	}
	for _, control := range minecraft.MovementControls {
		_ = conn.SetControlState(control, string(control) == option)
	}
}

func (s *Session) Look(yaw, pitch float64) {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("Dropping look for inactive session", slog.String("bot", s.Name()))
		return
	}
	_ = conn.Look(yaw, pitch)
}

// Jump is a one-shot pulse: press, release half a second later.
func (s *Session) Jump() {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("Dropping jump for inactive session", slog.String("bot", s.Name()))
		return
	}
	_ = conn.SetControlState(minecraft.ControlJump, true)
	s.timers.after(timerJumpPulse, 500*time.Millisecond, func() {
		if c := s.liveConn(); c != nil {
			_ = c.SetControlState(minecraft.ControlJump, false)
		}
	})
}

func (s *Session) Swing() {
	conn := s.liveConn()
	if conn == nil {
		s.logger.Debug("Dropping swing for inactive session", slog.String("bot", s.Name()))
		return
	}
	_ = conn.SwingArm()
}
