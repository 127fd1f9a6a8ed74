package store

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"net"
	"os"
	"strings"
)

// Proxy is one egress proxy descriptor from proxies.txt, in
// host:port[:user:pass] form.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (p Proxy) Addr() string {
	return net.JoinHostPort(p.Host, p.Port)
}

func (s *Store) proxiesText() (string, error) {
	data, err := os.ReadFile(s.path(proxiesFile))
	if errors.Is(err, fs.ErrNotExist) {
		if err = os.WriteFile(s.path(proxiesFile), nil, 0o644); err != nil {
			return "", fmt.Errorf("error seeding %s: %w", proxiesFile, err)
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", proxiesFile, err)
	}
	return string(data), nil
}

// Proxies returns the raw newline-delimited proxy list.
func (s *Store) Proxies() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proxiesText()
}

func (s *Store) SaveProxies(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(proxiesFile), []byte(text), 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", proxiesFile, err)
	}
	return nil
}

// ParseProxies parses a newline-delimited proxy list, skipping blank lines.
func ParseProxies(text string) []Proxy {
	var proxies []Proxy
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}
		p := Proxy{Host: parts[0], Port: parts[1]}
		if len(parts) >= 4 {
			p.Username = parts[2]
			p.Password = parts[3]
		}
		proxies = append(proxies, p)
	}
	return proxies
}

// RandomProxy picks one proxy uniformly at random, or ok=false when the pool
// is empty.
func (s *Store) RandomProxy() (Proxy, bool, error) {
	text, err := s.Proxies()
	if err != nil {
		return Proxy{}, false, err
	}
	proxies := ParseProxies(text)
	if len(proxies) == 0 {
		return Proxy{}, false, nil
	}
	return proxies[rand.Intn(len(proxies))], true, nil
}
