package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minefleet/afkconsole/internal/config"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/store"
)

// HttpServer exposes the REST config surface and the websocket push channel.
type HttpServer struct {
	logger   *slog.Logger
	server   *http.Server
	store    *store.Store
	wsServer *WebSocketServer
	gateway  *Gateway
}

func New(logger *slog.Logger, st *store.Store, gateway *Gateway) *HttpServer {
	wsServer := NewWebSocketServer(logger, gateway)
	gateway.Bind(wsServer)
	return &HttpServer{
		logger:   logger,
		store:    st,
		wsServer: wsServer,
		gateway:  gateway,
	}
}

func (s *HttpServer) Listen(port int) error {
	go s.wsServer.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/info", s.info)
	mux.HandleFunc("/api/settings", s.settings)
	mux.HandleFunc("/api/bots", s.bots)
	mux.HandleFunc("/api/proxies", s.proxies)
	mux.HandleFunc("/api/anti-afk-config", s.antiAFKConfig)
	mux.HandleFunc("/api/join-messages-config", s.joinMessagesConfig)
	mux.HandleFunc("/api/world-change-messages-config", s.worldChangeMessagesConfig)
	mux.HandleFunc("/api/autoreconnect-config", s.autoReconnectConfig)
	mux.HandleFunc("/api/logs", s.logs)
	mux.HandleFunc("/api/version", s.version)
	mux.HandleFunc("/ws", s.wsServer.HandleWebSocket)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// HandleEvent fans every domain event out to the connected UI clients,
// both as its typed frame and as a new-log row. Registered on the event
// listener at startup.
func (s *HttpServer) HandleEvent(_ context.Context, e event.Event) error {
	if name, payload, ok := payloadFromEvent(e); ok {
		s.wsServer.Broadcast(name, payload)
	}
	s.wsServer.Broadcast("new-log", store.EntryFromEvent(e))
	return nil
}

func (s *HttpServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", slog.Any("error", err))
	}
}

func (s *HttpServer) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("Request failed", slog.Any("error", err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("error parsing request body: %w", err)
	}
	return nil
}

func (s *HttpServer) info(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.store.Info()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, info)
	case http.MethodPost:
		var info store.ServerInfo
		if err := decodeBody(r, &info); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.SaveInfo(info); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, info)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *HttpServer) settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.Settings()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, settings)
	case http.MethodPost:
		var settings store.Settings
		if err := decodeBody(r, &settings); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.SaveSettings(settings); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		saved, err := s.store.Settings()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, saved)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *HttpServer) bots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := s.store.Accounts()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, accounts)
	case http.MethodPost:
		var accounts []store.Account
		if err := decodeBody(r, &accounts); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.SaveAccounts(accounts); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		saved, err := s.store.Accounts()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, saved)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// proxies is the one plain-text endpoint: the proxy pool is stored and edited
// as a raw host:port[:user:pass] line list.
func (s *HttpServer) proxies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		text, err := s.store.Proxies()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("error reading request body: %w", err))
			return
		}
		if err := s.store.SaveProxies(string(body)); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, map[string]int{"count": len(store.ParseProxies(string(body)))})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type antiAFKConfig struct {
	Sneak           bool                  `json:"sneak"`
	AntiAFK         bool                  `json:"antiAFK"`
	AntiAFKInterval int                   `json:"antiAFKInterval"`
	AntiAFKPhysical store.PhysicalActions `json:"antiAFKPhysical"`
	AntiAFKChat     store.ChatPing        `json:"antiAFKChat"`
}

func (s *HttpServer) antiAFKConfig(w http.ResponseWriter, r *http.Request) {
	s.settingsSection(w, r,
		func(settings store.Settings) any {
			return antiAFKConfig{
				Sneak:           settings.Sneak,
				AntiAFK:         settings.AntiAFK,
				AntiAFKInterval: settings.AntiAFKInterval,
				AntiAFKPhysical: settings.AntiAFKPhysical,
				AntiAFKChat:     settings.AntiAFKChat,
			}
		},
		func(r *http.Request, settings *store.Settings) error {
			var cfg antiAFKConfig
			if err := decodeBody(r, &cfg); err != nil {
				return err
			}
			if cfg.AntiAFKInterval <= 0 {
				cfg.AntiAFKInterval = 1
			}
			settings.Sneak = cfg.Sneak
			settings.AntiAFK = cfg.AntiAFK
			settings.AntiAFKInterval = cfg.AntiAFKInterval
			settings.AntiAFKPhysical = cfg.AntiAFKPhysical
			settings.AntiAFKChat = cfg.AntiAFKChat
			return nil
		})
}

type messagesConfig struct {
	Enabled  bool     `json:"enabled"`
	Delay    int      `json:"delay"`
	Messages []string `json:"messages"`
}

func (s *HttpServer) joinMessagesConfig(w http.ResponseWriter, r *http.Request) {
	s.settingsSection(w, r,
		func(settings store.Settings) any {
			return messagesConfig{
				Enabled:  settings.JoinMessages,
				Delay:    settings.JoinMessageDelay,
				Messages: settings.JoinMessagesList,
			}
		},
		func(r *http.Request, settings *store.Settings) error {
			var cfg messagesConfig
			if err := decodeBody(r, &cfg); err != nil {
				return err
			}
			settings.JoinMessages = cfg.Enabled
			settings.JoinMessageDelay = cfg.Delay
			settings.JoinMessagesList = cleanMessages(cfg.Messages)
			return nil
		})
}

func (s *HttpServer) worldChangeMessagesConfig(w http.ResponseWriter, r *http.Request) {
	s.settingsSection(w, r,
		func(settings store.Settings) any {
			return messagesConfig{
				Enabled:  settings.WorldChangeMessages,
				Delay:    settings.WorldChangeMessageDelay,
				Messages: settings.WorldChangeMessagesList,
			}
		},
		func(r *http.Request, settings *store.Settings) error {
			var cfg messagesConfig
			if err := decodeBody(r, &cfg); err != nil {
				return err
			}
			settings.WorldChangeMessages = cfg.Enabled
			settings.WorldChangeMessageDelay = cfg.Delay
			settings.WorldChangeMessagesList = cleanMessages(cfg.Messages)
			return nil
		})
}

type autoReconnectConfig struct {
	Enabled bool `json:"enabled"`
	Delay   int  `json:"delay"`
}

func (s *HttpServer) autoReconnectConfig(w http.ResponseWriter, r *http.Request) {
	s.settingsSection(w, r,
		func(settings store.Settings) any {
			return autoReconnectConfig{
				Enabled: settings.AutoReconnect,
				Delay:   settings.AutoReconnectDelay,
			}
		},
		func(r *http.Request, settings *store.Settings) error {
			var cfg autoReconnectConfig
			if err := decodeBody(r, &cfg); err != nil {
				return err
			}
			if cfg.Delay <= 0 {
				cfg.Delay = 4
			}
			settings.AutoReconnect = cfg.Enabled
			settings.AutoReconnectDelay = cfg.Delay
			return nil
		})
}

// settingsSection implements the GET/POST pattern shared by the partial
// settings endpoints: read the current document, apply the section update
// and echo the saved section back.
func (s *HttpServer) settingsSection(w http.ResponseWriter, r *http.Request, view func(store.Settings) any, apply func(*http.Request, *store.Settings) error) {
	settings, err := s.store.Settings()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, view(settings))
	case http.MethodPost:
		if err := apply(r, &settings); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.SaveSettings(settings); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, view(settings))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// cleanMessages trims each message and drops the blank ones. An empty result
// means nothing to send; the stored list is kept non-nil so it does not
// re-trigger the legacy-shape migration.
func cleanMessages(messages []string) []string {
	cleaned := make([]string, 0, len(messages))
	for _, m := range messages {
		m = strings.TrimSpace(m)
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	return cleaned
}

func (s *HttpServer) logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logs, err := s.store.Logs()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, logs)
}

func (s *HttpServer) version(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	marker, err := s.store.VersionMarker()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, map[string]string{
		"version": marker.Version,
		"console": config.Version,
	})
}
