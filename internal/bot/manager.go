package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/minecraft"
	"github.com/minefleet/afkconsole/internal/store"
)

var (
	ErrAlreadyConnected = errors.New("bot already connected")
	ErrUnknownAccount   = errors.New("bot not found")
)

// Manager is the session registry: the single source of truth for which
// accounts are currently connecting or connected. It owns session creation,
// manual-disconnect bookkeeping, reconnect scheduling and the retained
// last-status snapshots used for resync.
type Manager struct {
	logger *slog.Logger
	store  *store.Store
	events *event.Listener
	dialer minecraft.Dialer

	// Delay between consecutive attempts in ConnectAll.
	connectStagger time.Duration

	mu         sync.RWMutex
	sessions   map[string]*Session
	statuses   map[string]event.StatusEvent
	manual     map[string]bool
	reconnects map[string]*time.Timer
	backoffs   map[string]*backoff.Backoff
}

func NewManager(logger *slog.Logger, st *store.Store, events *event.Listener, dialer minecraft.Dialer, connectStagger time.Duration) *Manager {
	return &Manager{
		logger:         logger,
		store:          st,
		events:         events,
		dialer:         dialer,
		connectStagger: connectStagger,
		sessions:       make(map[string]*Session),
		statuses:       make(map[string]event.StatusEvent),
		manual:         make(map[string]bool),
		reconnects:     make(map[string]*time.Timer),
		backoffs:       make(map[string]*backoff.Backoff),
	}
}

// publish retains the last status per account before fanning the event out,
// so a freshly-joined UI client can reconstruct state after the fact.
func (m *Manager) publish(e event.Event) {
	if status, ok := e.(event.StatusEvent); ok {
		m.mu.Lock()
		m.statuses[status.BotName()] = status
		m.mu.Unlock()
	}
	m.events.Emit(e)
}

// Connect builds and registers a session for the account. The session is
// registered before any network I/O begins, so a concurrent duplicate
// connect is rejected deterministically with ErrAlreadyConnected.
func (m *Manager) Connect(botName, versionOverride string) error {
	m.mu.RLock()
	_, exists := m.sessions[botName]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, botName)
	}

	account, found, err := m.store.Account(botName)
	if err != nil {
		return fmt.Errorf("error loading accounts: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, botName)
	}

	info, err := m.store.Info()
	if err != nil {
		return fmt.Errorf("error loading server info: %w", err)
	}
	settings, err := m.store.Settings()
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	version := versionOverride
	if version == "" {
		version = info.Version
	}

	opts, err := m.buildOptions(account, info, settings, version)
	if err != nil {
		return err
	}

	sess := m.newSession(account, info, settings, version, opts)

	m.mu.Lock()
	// Double-check under the write lock so two concurrent Connect calls
	// cannot both pass the initial existence check.
	if _, alreadyRunning := m.sessions[botName]; alreadyRunning {
		m.mu.Unlock()
		sess.cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, botName)
	}
	if timer, ok := m.reconnects[botName]; ok {
		timer.Stop()
		delete(m.reconnects, botName)
	}
	m.manual[botName] = false
	m.sessions[botName] = sess
	m.mu.Unlock()

	go sess.run()
	return nil
}

func (m *Manager) newSession(account store.Account, info store.ServerInfo, settings store.Settings, version string, opts minecraft.Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		account:    account,
		info:       info,
		settings:   settings,
		version:    version,
		opts:       opts,
		logger:     m.logger,
		dialer:     m.dialer,
		timers:     newTimerSet(),
		publish:    m.publish,
		registered: m.isRegistered,
		onSpawned:  m.sessionSpawned,
		onEnded:    m.sessionEnded,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// buildOptions assembles connection options from the server profile, the
// account and the behavior settings, picking a proxy uniformly at random when
// proxy egress is enabled.
func (m *Manager) buildOptions(account store.Account, info store.ServerInfo, settings store.Settings, version string) (minecraft.Options, error) {
	opts := minecraft.Options{
		Host:               info.ServerIP,
		Port:               info.ServerPort,
		Username:           account.Username,
		Auth:               account.Auth,
		Version:            version,
		PhysicsEnabled:     settings.BotPhysics,
		DisableChatSigning: true,
		FakeHost:           settings.FakeHost,
	}

	if account.Auth == store.AuthMicrosoft && account.Password != "" {
		opts.Password = account.Password
	}

	if settings.Proxies {
		proxy, ok, err := m.store.RandomProxy()
		if err != nil {
			return minecraft.Options{}, fmt.Errorf("error loading proxies: %w", err)
		}
		if ok {
			opts.ProxyAddr = proxy.Addr()
			opts.ProxyUsername = proxy.Username
			opts.ProxyPassword = proxy.Password
		}
	}

	return opts, nil
}

func (m *Manager) isRegistered(s *Session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[s.Name()] == s
}

// sessionSpawned resets the reconnect backoff once a session reaches the
// world, so the next unexpected drop retries at the configured base delay.
func (m *Manager) sessionSpawned(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.backoffs[s.Name()]; ok {
		b.Reset()
	}
}

// sessionEnded deregisters a terminated session and applies the reconnect
// policy: reconnect only on server-initiated ends, never after a manual
// disconnect, a connect timeout or a dial-phase failure.
func (m *Manager) sessionEnded(s *Session, noReconnect bool) {
	name := s.Name()

	m.mu.Lock()
	if m.sessions[name] == s {
		delete(m.sessions, name)
	}
	manual := m.manual[name]
	m.mu.Unlock()

	if manual || noReconnect || !s.settings.AutoReconnect {
		return
	}

	delay := m.reconnectDelay(name, s.settings)
	version := s.version
	m.logger.Info("Scheduling reconnect",
		slog.String("bot", name), slog.Duration("delay", delay))

	timer := time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.reconnects, name)
		m.mu.Unlock()

		m.publish(event.Reconnecting(name))
		if err := m.Connect(name, version); err != nil {
			m.logger.Error("Reconnect attempt failed",
				slog.String("bot", name), slog.Any("error", err))
		}
	})

	m.mu.Lock()
	if prev, ok := m.reconnects[name]; ok {
		prev.Stop()
	}
	m.reconnects[name] = timer
	m.mu.Unlock()
}

// reconnectDelay grows from the configured base delay on repeated failures;
// a successful spawn resets it.
func (m *Manager) reconnectDelay(name string, settings store.Settings) time.Duration {
	base := time.Duration(settings.AutoReconnectDelay) * time.Second
	if base <= 0 {
		base = 4 * time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backoffs[name]
	if !ok || b.Min != base {
		b = &backoff.Backoff{Min: base, Max: 10 * base, Factor: 1.5}
		m.backoffs[name] = b
	}
	return b.Duration()
}

// Disconnect terminates the account's session and suppresses any pending or
// future auto-reconnect. Idempotent when no session exists.
func (m *Manager) Disconnect(botName string) {
	m.mu.Lock()
	m.manual[botName] = true
	sess := m.sessions[botName]
	if sess != nil {
		delete(m.sessions, botName)
	}
	if timer, ok := m.reconnects[botName]; ok {
		timer.Stop()
		delete(m.reconnects, botName)
	}
	m.mu.Unlock()

	if sess == nil {
		return
	}

	m.logger.Info("Disconnecting bot", slog.String("bot", botName))
	if sess.finish() {
		m.publish(event.Status(botName, event.StatusDisconnected, "Disconnected"))
	}
}

// ConnectAll connects every stored account that is not already active,
// staggering attempts to avoid a thundering herd against the server.
func (m *Manager) ConnectAll(versionOverride string) error {
	accounts, err := m.store.Accounts()
	if err != nil {
		return fmt.Errorf("error loading accounts: %w", err)
	}

	for i, account := range accounts {
		if i > 0 && m.connectStagger > 0 {
			time.Sleep(m.connectStagger)
		}
		err := m.Connect(account.Username, versionOverride)
		if errors.Is(err, ErrAlreadyConnected) {
			continue
		}
		if err != nil {
			m.logger.Error("Error connecting bot",
				slog.String("bot", account.Username), slog.Any("error", err))
			m.publish(event.Error(account.Username, err.Error()))
		}
	}
	return nil
}

func (m *Manager) DisconnectAll() error {
	accounts, err := m.store.Accounts()
	if err != nil {
		return fmt.Errorf("error loading accounts: %w", err)
	}
	for _, account := range accounts {
		m.Disconnect(account.Username)
	}
	return nil
}

// Session returns the live session for the account, or nil.
func (m *Manager) Session(botName string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[botName]
}

// Status returns the last known status for the account. Statuses are
// retained after a session ends so late-joining UI clients can catch up.
func (m *Manager) Status(botName string) (event.StatusEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[botName]
	return status, ok
}

// Statuses snapshots the last known status of every account seen so far.
func (m *Manager) Statuses() map[string]event.StatusEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]event.StatusEvent, len(m.statuses))
	for name, status := range m.statuses {
		snapshot[name] = status
	}
	return snapshot
}

// ActiveSessions snapshots the live sessions.
func (m *Manager) ActiveSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		snapshot = append(snapshot, sess)
	}
	return snapshot
}

// StopAll drains the registry on shutdown: every session is terminated and
// every pending reconnect cancelled.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	for name, timer := range m.reconnects {
		timer.Stop()
		delete(m.reconnects, name)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		if sess.finish() {
			m.publish(event.Status(sess.Name(), event.StatusDisconnected, "Disconnected"))
		}
	}
}
