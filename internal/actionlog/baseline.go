package actionlog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// BaselineLog appends plain-text records of baseline generations and
// revisions to <dir>/_baseline/user_<user>_baseline.log.
type BaselineLog struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewBaselineLog creates a baseline log for user under dir.
func NewBaselineLog(dir, user string, logger *slog.Logger) *BaselineLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaselineLog{
		path:   filepath.Join(dir, "_baseline", fmt.Sprintf("user_%s_baseline.log", SafeUserID(user))),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the log file.
func (b *BaselineLog) Path() string {
	return b.path
}

// Initial records the first baseline a user saw.
func (b *BaselineLog) Initial(ctx context.Context, result string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] initial_baseline\n", b.stamp())
	fmt.Fprintf(&sb, "---result---\n%s\n\n", result)
	b.write(ctx, sb.String())
}

// Revision records a user-requested revision.
func (b *BaselineLog) Revision(ctx context.Context, note, before, after string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] user_update: %s\n", b.stamp(), note)
	fmt.Fprintf(&sb, "---before---\n%s\n", before)
	fmt.Fprintf(&sb, "---after---\n%s\n\n", after)
	b.write(ctx, sb.String())
}

func (b *BaselineLog) stamp() string {
	return b.now().Format("2006-01-02T15:04:05.000000")
}

func (b *BaselineLog) write(ctx context.Context, block string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := appendFile(b.path, []byte(block)); err != nil {
		b.logger.WarnContext(ctx, "failed to write baseline log",
			slog.String("path", b.path),
			slog.String("error", err.Error()),
		)
	}
}
