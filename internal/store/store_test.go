package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestDefaultsSeededOnFirstRun(t *testing.T) {
	s := newTestStore(t)

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.ServerIP != "localhost" || info.ServerPort != 25565 || info.Version != "1.20.1" || info.LoginDelay != 5 {
		t.Errorf("unexpected default info: %+v", info)
	}

	settings, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !settings.BotPhysics || !settings.AntiAFK || settings.AntiAFKInterval != 1 {
		t.Errorf("unexpected default settings: %+v", settings)
	}
	if len(settings.JoinMessagesList) != 1 || settings.JoinMessagesList[0] != "Hello world" {
		t.Errorf("unexpected default join messages: %v", settings.JoinMessagesList)
	}
	if len(settings.WorldChangeMessagesList) != 1 || settings.WorldChangeMessagesList[0] != "/home" {
		t.Errorf("unexpected default world change messages: %v", settings.WorldChangeMessagesList)
	}
	if !settings.AutoReconnect || settings.AutoReconnectDelay != 4 {
		t.Errorf("unexpected default reconnect settings: %+v", settings)
	}

	accounts, err := s.Accounts()
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected empty account list, got %v", accounts)
	}

	marker, err := s.VersionMarker()
	if err != nil {
		t.Fatalf("VersionMarker: %v", err)
	}
	if marker.Version != "1.0.0" {
		t.Errorf("unexpected version marker: %q", marker.Version)
	}
}

func TestLegacyMessageTextMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := `{
		"joinMessageText": "hi there",
		"worldChangeMessageText": "/spawn"
	}`
	if err := os.WriteFile(filepath.Join(dir, settingsFile), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	settings, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(settings.JoinMessagesList) != 1 || settings.JoinMessagesList[0] != "hi there" {
		t.Errorf("join message not migrated: %v", settings.JoinMessagesList)
	}
	if len(settings.WorldChangeMessagesList) != 1 || settings.WorldChangeMessagesList[0] != "/spawn" {
		t.Errorf("world change message not migrated: %v", settings.WorldChangeMessagesList)
	}
	if settings.JoinMessageText != nil || settings.WorldChangeMessageText != nil {
		t.Error("legacy fields should be cleared after migration")
	}

	// migrated shape must be persisted without the legacy fields
	raw, err := os.ReadFile(filepath.Join(dir, settingsFile))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	if _, ok := onDisk["joinMessageText"]; ok {
		t.Error("joinMessageText still present on disk")
	}

	// second load must be a no-op
	again, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings second load: %v", err)
	}
	if again.JoinMessagesList[0] != "hi there" {
		t.Errorf("migration not idempotent: %v", again.JoinMessagesList)
	}
}

func TestMissingListsGetDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, settingsFile), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	settings, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(settings.JoinMessagesList) != 1 || settings.JoinMessagesList[0] != "Hello world" {
		t.Errorf("missing join list should default: %v", settings.JoinMessagesList)
	}
	if len(settings.WorldChangeMessagesList) != 1 || settings.WorldChangeMessagesList[0] != "/home" {
		t.Errorf("missing world change list should default: %v", settings.WorldChangeMessagesList)
	}
}

func TestAccountAuthMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"username":"Steve","password":"pw"},{"username":"Alex","auth":"offline"}]`
	if err := os.WriteFile(filepath.Join(dir, botsFile), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	accounts, err := s.Accounts()
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if accounts[0].Auth != AuthMicrosoft {
		t.Errorf("missing auth should default to microsoft, got %q", accounts[0].Auth)
	}
	if accounts[1].Auth != AuthOffline {
		t.Errorf("existing auth must be kept, got %q", accounts[1].Auth)
	}
}

func TestAccountLookup(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveAccounts([]Account{{Username: "Steve", Auth: AuthOffline}}); err != nil {
		t.Fatal(err)
	}

	acc, found, err := s.Account("Steve")
	if err != nil || !found {
		t.Fatalf("Account: found=%v err=%v", found, err)
	}
	if acc.Auth != AuthOffline {
		t.Errorf("unexpected account: %+v", acc)
	}

	_, found, err = s.Account("Nobody")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("unknown account reported as found")
	}
}

func TestRollingLogBounded(t *testing.T) {
	s := newTestStore(t)
	s.logCap = 10

	for i := 0; i < 25; i++ {
		entry := LogEntry{ID: fmt.Sprintf("e%d", i), Type: TypeChat, Message: fmt.Sprintf("m%d", i)}
		if err := s.AppendLog(entry); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}

	logs, err := s.Logs()
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(logs))
	}
	if logs[0].ID != "e15" || logs[9].ID != "e24" {
		t.Errorf("expected oldest entries evicted, got %s..%s", logs[0].ID, logs[9].ID)
	}
}

func TestRecentLogsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.AppendLog(LogEntry{ID: fmt.Sprintf("c%d", i), Type: TypeChat}); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendLog(LogEntry{ID: fmt.Sprintf("s%d", i), Type: TypeStatus}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.RecentLogs(3, TypeChat)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].ID != "c2" || recent[2].ID != "c4" {
		t.Errorf("expected chronological tail c2..c4, got %s..%s", recent[0].ID, recent[2].ID)
	}
	for _, entry := range recent {
		if entry.Type != TypeChat {
			t.Errorf("unexpected type %q in filtered result", entry.Type)
		}
	}
}

func TestParseProxies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Proxy
	}{
		{"empty", "", nil},
		{"blank lines skipped", "\n\n  \n", nil},
		{
			"host port only",
			"10.0.0.1:1080",
			[]Proxy{{Host: "10.0.0.1", Port: "1080"}},
		},
		{
			"with credentials",
			"10.0.0.1:1080:user:pass",
			[]Proxy{{Host: "10.0.0.1", Port: "1080", Username: "user", Password: "pass"}},
		},
		{
			"mixed with garbage",
			"10.0.0.1:1080\nnot-a-proxy\n10.0.0.2:1081:u:p\n",
			[]Proxy{
				{Host: "10.0.0.1", Port: "1080"},
				{Host: "10.0.0.2", Port: "1081", Username: "u", Password: "p"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProxies(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d proxies, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("proxy %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRandomProxyEmptyPool(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.RandomProxy()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("empty pool should report ok=false")
	}
}
