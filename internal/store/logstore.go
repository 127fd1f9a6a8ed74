package store

import "time"

// LogEntry is one row of the rolling event log. Only the fields relevant to
// the entry type are set; the shape mirrors what the UI consumes over the push
// channel.
type LogEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	BotName   string    `json:"botName,omitempty"`
	Status    string    `json:"status,omitempty"`
	Username  string    `json:"username,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
}

// Logs returns the rolling log, oldest entry first.
func (s *Store) Logs() ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []LogEntry{}
	if err := s.loadJSON(logsFile, &logs, marshalDefault([]LogEntry{})); err != nil {
		return nil, err
	}
	return logs, nil
}

// AppendLog appends one entry, evicting the oldest entries beyond the cap.
func (s *Store) AppendLog(entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := []LogEntry{}
	if err := s.loadJSON(logsFile, &logs, marshalDefault([]LogEntry{})); err != nil {
		return err
	}

	logs = append(logs, entry)
	if len(logs) > s.logCap {
		logs = logs[len(logs)-s.logCap:]
	}
	return s.saveJSON(logsFile, logs)
}

// RecentLogs returns up to n most recent entries of the given type (any type
// when typ is empty), oldest first.
func (s *Store) RecentLogs(n int, typ string) ([]LogEntry, error) {
	logs, err := s.Logs()
	if err != nil {
		return nil, err
	}

	matched := make([]LogEntry, 0, n)
	for i := len(logs) - 1; i >= 0 && len(matched) < n; i-- {
		if typ == "" || logs[i].Type == typ {
			matched = append(matched, logs[i])
		}
	}
	// reverse back into chronological order
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}
