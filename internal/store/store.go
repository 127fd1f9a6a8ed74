package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	cp "github.com/otiai10/copy"
)

const (
	infoFile     = "info.json"
	settingsFile = "settings.json"
	botsFile     = "bots.json"
	proxiesFile  = "proxies.txt"
	logsFile     = "logs.json"
	versionFile  = "version.json"
)

// Store is the flat-file document store backing the console: server info,
// behavior settings, the account list, the proxy pool, a bounded rolling event
// log and a version marker. Every document is created with defaults on first
// read and legacy shapes are migrated in place.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
	logCap int

	// one backup of the data directory per process, taken before the first
	// migration rewrites a document
	backupOnce sync.Once
}

type ServerInfo struct {
	ServerIP   string `json:"serverIP"`
	ServerPort int    `json:"serverPort"`
	Version    string `json:"version"`
	LoginDelay int    `json:"loginDelay"`
}

type PhysicalActions struct {
	Forward bool `json:"forward"`
	Head    bool `json:"head"`
	Arm     bool `json:"arm"`
	Jump    bool `json:"jump"`
}

type ChatPing struct {
	Message string `json:"message"`
	Send    bool   `json:"send"`
}

type Settings struct {
	Sneak                   bool            `json:"sneak"`
	BotPhysics              bool            `json:"botPhysics"`
	AntiAFK                 bool            `json:"antiAFK"`
	AntiAFKInterval         int             `json:"antiAFKInterval"`
	AntiAFKPhysical         PhysicalActions `json:"antiAFKPhysical"`
	AntiAFKChat             ChatPing        `json:"antiAFKChat"`
	JoinMessages            bool            `json:"joinMessages"`
	JoinMessageDelay        int             `json:"joinMessageDelay"`
	JoinMessagesList        []string        `json:"joinMessagesList"`
	WorldChangeMessages     bool            `json:"worldChangeMessages"`
	WorldChangeMessageDelay int             `json:"worldChangeMessageDelay"`
	WorldChangeMessagesList []string        `json:"worldChangeMessagesList"`
	AutoReconnect           bool            `json:"autoReconnect"`
	AutoReconnectDelay      int             `json:"autoReconnectDelay"`
	Proxies                 bool            `json:"proxies"`
	FakeHost                bool            `json:"fakeHost"`

	// Legacy single-message fields, migrated into the list fields on load.
	JoinMessageText        *string `json:"joinMessageText,omitempty"`
	WorldChangeMessageText *string `json:"worldChangeMessageText,omitempty"`
}

const (
	AuthMicrosoft = "microsoft"
	AuthMojang    = "mojang"
	AuthOffline   = "offline"
)

type Account struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Auth     string `json:"auth"`
}

type VersionInfo struct {
	Version string `json:"version"`
}

func defaultInfo() ServerInfo {
	return ServerInfo{
		ServerIP:   "localhost",
		ServerPort: 25565,
		Version:    "1.20.1",
		LoginDelay: 5,
	}
}

func defaultSettings() Settings {
	return Settings{
		Sneak:                   false,
		BotPhysics:              true,
		AntiAFK:                 true,
		AntiAFKInterval:         1,
		AntiAFKPhysical:         PhysicalActions{Forward: true, Head: true, Arm: false, Jump: true},
		AntiAFKChat:             ChatPing{Message: "/ping", Send: false},
		JoinMessages:            true,
		JoinMessageDelay:        2,
		JoinMessagesList:        []string{"Hello world"},
		WorldChangeMessages:     true,
		WorldChangeMessageDelay: 5,
		WorldChangeMessagesList: []string{"/home"},
		AutoReconnect:           true,
		AutoReconnectDelay:      4,
		Proxies:                 false,
		FakeHost:                false,
	}
}

// New opens the store rooted at dir, seeding any missing document with its
// default content and applying pending migrations immediately.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}

	s := &Store{dir: dir, logger: logger, logCap: 1000}

	if _, err := s.Info(); err != nil {
		return nil, err
	}
	if _, err := s.Settings(); err != nil {
		return nil, err
	}
	if _, err := s.Accounts(); err != nil {
		return nil, err
	}
	if _, err := s.proxiesText(); err != nil {
		return nil, err
	}
	if _, err := s.Logs(); err != nil {
		return nil, err
	}
	if _, err := s.VersionMarker(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Backup copies the whole data directory next to itself.
func (s *Store) Backup() error {
	dst := s.dir + "-backup-" + time.Now().Format("20060102-150405")
	if err := cp.Copy(s.dir, dst); err != nil {
		return fmt.Errorf("error backing up data directory: %w", err)
	}
	s.logger.Info("Data directory backed up", slog.String("path", dst))
	return nil
}

func (s *Store) backupBeforeMigration() {
	s.backupOnce.Do(func() {
		if err := s.Backup(); err != nil {
			s.logger.Warn("Could not back up data directory before migration", slog.Any("error", err))
		}
	})
}

func (s *Store) loadJSON(name string, v any, defaults func() ([]byte, error)) error {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = defaults()
		if err != nil {
			return err
		}
		if err = os.WriteFile(s.path(name), data, 0o644); err != nil {
			return fmt.Errorf("error seeding %s: %w", name, err)
		}
	} else if err != nil {
		return fmt.Errorf("error reading %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error parsing %s: %w", name, err)
	}
	return nil
}

func (s *Store) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	return nil
}

func marshalDefault(v any) func() ([]byte, error) {
	return func() ([]byte, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshalling defaults: %w", err)
		}
		return data, nil
	}
}

func (s *Store) Info() (ServerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := ServerInfo{}
	if err := s.loadJSON(infoFile, &info, marshalDefault(defaultInfo())); err != nil {
		return ServerInfo{}, err
	}
	if info.ServerPort == 0 {
		info.ServerPort = 25565
	}
	if info.Version == "" {
		info.Version = "1.20.1"
	}
	return info, nil
}

func (s *Store) SaveInfo(info ServerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveJSON(infoFile, info)
}

// Settings loads the behavior settings document, migrating legacy
// single-message fields into the message lists and persisting the migrated
// shape right away.
func (s *Store) Settings() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := Settings{}
	if err := s.loadJSON(settingsFile, &settings, marshalDefault(defaultSettings())); err != nil {
		return Settings{}, err
	}

	migrated, changed := migrateSettings(settings)
	if changed {
		s.backupBeforeMigration()
		if err := s.saveJSON(settingsFile, migrated); err != nil {
			return Settings{}, err
		}
		s.logger.Info("Settings document migrated to message lists")
	}
	return migrated, nil
}

func (s *Store) SaveSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	migrated, _ := migrateSettings(settings)
	return s.saveJSON(settingsFile, migrated)
}

func migrateSettings(settings Settings) (Settings, bool) {
	changed := false

	if settings.JoinMessageText != nil && settings.JoinMessagesList == nil {
		settings.JoinMessagesList = []string{*settings.JoinMessageText}
		changed = true
	}
	if settings.JoinMessageText != nil {
		settings.JoinMessageText = nil
		changed = true
	}
	if settings.JoinMessagesList == nil {
		settings.JoinMessagesList = []string{"Hello world"}
		changed = true
	}

	if settings.WorldChangeMessageText != nil && settings.WorldChangeMessagesList == nil {
		settings.WorldChangeMessagesList = []string{*settings.WorldChangeMessageText}
		changed = true
	}
	if settings.WorldChangeMessageText != nil {
		settings.WorldChangeMessageText = nil
		changed = true
	}
	if settings.WorldChangeMessagesList == nil {
		settings.WorldChangeMessagesList = []string{"/home"}
		changed = true
	}

	return settings, changed
}

// Accounts loads the ordered account list, filling a missing auth mode with
// "microsoft" and persisting that migration.
func (s *Store) Accounts() ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := []Account{}
	if err := s.loadJSON(botsFile, &accounts, marshalDefault([]Account{})); err != nil {
		return nil, err
	}

	changed := false
	for i := range accounts {
		if accounts[i].Auth == "" {
			accounts[i].Auth = AuthMicrosoft
			changed = true
		}
	}
	if changed {
		s.backupBeforeMigration()
		if err := s.saveJSON(botsFile, accounts); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (s *Store) SaveAccounts(accounts []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range accounts {
		if accounts[i].Auth == "" {
			accounts[i].Auth = AuthMicrosoft
		}
	}
	return s.saveJSON(botsFile, accounts)
}

// Account returns the stored account with the given username.
func (s *Store) Account(username string) (Account, bool, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return Account{}, false, err
	}
	for _, acc := range accounts {
		if acc.Username == username {
			return acc, true, nil
		}
	}
	return Account{}, false, nil
}

func (s *Store) VersionMarker() (VersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := VersionInfo{}
	if err := s.loadJSON(versionFile, &v, marshalDefault(VersionInfo{Version: "1.0.0"})); err != nil {
		return VersionInfo{}, err
	}
	return v, nil
}
