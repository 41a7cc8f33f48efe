package actionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Recorder accepts audit events. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, evt Event)
}

// Nop discards every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}

// FileRecorder appends one JSON line per event to
// <dir>/user_<user>_actions.log. The file is opened in append mode for each
// write.
type FileRecorder struct {
	dir         string
	defaultUser string
	logger      *slog.Logger

	mu sync.Mutex
}

// NewFileRecorder creates a recorder writing under dir.
func NewFileRecorder(dir, defaultUser string, logger *slog.Logger) *FileRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRecorder{dir: dir, defaultUser: defaultUser, logger: logger}
}

// Path returns the log file for user.
func (r *FileRecorder) Path(user string) string {
	if user == "" {
		user = r.defaultUser
	}
	return filepath.Join(r.dir, fmt.Sprintf("user_%s_actions.log", SafeUserID(user)))
}

// Record implements Recorder.
func (r *FileRecorder) Record(ctx context.Context, evt Event) {
	line, err := json.Marshal(evt)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to encode action log event",
			slog.String("action_type", evt.ActionType),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := r.appendLine(r.Path(evt.UserID), append(line, '\n')); err != nil {
		r.logger.WarnContext(ctx, "failed to write action log",
			slog.String("action_type", evt.ActionType),
			slog.String("error", err.Error()),
		)
	}
}

func (r *FileRecorder) appendLine(path string, line []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return appendFile(path, line)
}

func appendFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SafeUserID maps a client-supplied user id onto a file-name-safe token.
func SafeUserID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "anonymous"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Memory keeps events in memory. It is meant for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
