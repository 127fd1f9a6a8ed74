package log

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	flusher *time.Ticker
)

// NewLogger builds the process logger. Output goes to stdout and, when dir is
// not empty, to a timestamped log file inside it. name distinguishes
// per-session log files from the main console log.
func NewLogger(debug bool, dir, name string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stdout)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating log directory: %w", err)
		}

		fileName := fmt.Sprintf("console-%s.log", time.Now().Format("2006-01-02-15_04_05"))
		if name != "" {
			fileName = fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02-15_04_05"))
		}

		mu.Lock()
		defer mu.Unlock()
		if file == nil {
			f, err := os.Create(filepath.Join(dir, fileName))
			if err != nil {
				return nil, fmt.Errorf("error creating log file: %w", err)
			}
			file = f
			writer = bufio.NewWriter(f)
			flusher = time.NewTicker(3 * time.Second)
			go func() {
				for range flusher.C {
					FlushLog()
				}
			}()
		}
		out = io.MultiWriter(os.Stdout, writer)
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

// FlushLog forces any buffered log output to disk.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	if writer != nil {
		_ = writer.Flush()
	}
}

// FlushAndClose flushes and closes the underlying log file. Safe to call more
// than once.
func FlushAndClose() {
	mu.Lock()
	defer mu.Unlock()
	if flusher != nil {
		flusher.Stop()
		flusher = nil
	}
	if writer != nil {
		_ = writer.Flush()
		writer = nil
	}
	if file != nil {
		_ = file.Close()
		file = nil
	}
}
