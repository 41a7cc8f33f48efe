package actionlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestFileRecorder_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(filepath.Join(dir, "logs"), "p01", nil)

	ctx := context.Background()
	r.Record(ctx, StepResult("step1", "Select music video to play", "/stores/67512.jpg", map[string]any{"app_ui": map[string]any{}}))
	r.Record(ctx, GuidelineUpdated("before", "after"))

	lines := readLines(t, filepath.Join(dir, "logs", "user_p01_actions.log"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	for _, key := range []string{"timestamp", "action_type", "step", "detail"} {
		if _, ok := first[key]; !ok {
			t.Errorf("missing %q in %v", key, first)
		}
	}
	if first["action_type"] != ActionStepResult || first["step"] != "step1" {
		t.Errorf("unexpected first line %v", first)
	}
	ts, _ := first["timestamp"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("timestamp %q should be UTC with Z suffix", ts)
	}
	detail := first["detail"].(map[string]any)
	if detail["imagePath"] != "/stores/67512.jpg" {
		t.Errorf("imagePath = %v", detail["imagePath"])
	}

	if lines[1]["step"] != "Guideline updated" {
		t.Errorf("second line step = %v", lines[1]["step"])
	}
}

func TestFileRecorder_UserSelectsFile(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir, "p01", nil)

	evt := Event{ActionType: "edit_table_start", Step: "PERCEPTION-SECTION"}
	evt.UserID = "../../etc/passwd"
	r.Record(context.Background(), evt)

	want := filepath.Join(dir, "user_______etc_passwd_actions.log")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected sanitised file %s: %v", want, err)
	}
}

func TestFileRecorder_SwallowsWriteErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewFileRecorder(blocker, "p01", nil)
	// Must not panic or block.
	r.Record(context.Background(), Event{ActionType: "edit_table_end", Step: "t"})
}

func TestSafeUserID(t *testing.T) {
	tests := map[string]string{
		"p01":       "p01",
		"":          "anonymous",
		"a b/c":     "a_b_c",
		"user-2_ok": "user-2_ok",
	}
	for in, want := range tests {
		if got := SafeUserID(in); got != want {
			t.Errorf("SafeUserID(%q) = %q, want %q", in, got, want)
		}
	}
}

type blockingRecorder struct {
	mu      sync.Mutex
	release chan struct{}
	events  []Event
}

func (b *blockingRecorder) Record(_ context.Context, evt Event) {
	<-b.release
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

func TestAsync_DoesNotBlockAndDrainsOnClose(t *testing.T) {
	next := &blockingRecorder{release: make(chan struct{})}
	a := NewAsync(next, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	for range 3 {
		a.Record(ctx, Event{ActionType: "edit_table_start", Step: "t"})
	}
	cancel()
	if time.Since(start) > time.Second {
		t.Fatal("Record blocked on the writer")
	}

	close(next.release)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	next.mu.Lock()
	defer next.mu.Unlock()
	if len(next.events) != 3 {
		t.Errorf("drained %d events, want 3", len(next.events))
	}

	// Records after Close are ignored.
	a.Record(context.Background(), Event{ActionType: "edit_table_end", Step: "t"})
}

func TestBaselineLog_Blocks(t *testing.T) {
	dir := t.TempDir()
	b := NewBaselineLog(dir, "p01", nil)
	b.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	ctx := context.Background()
	b.Initial(ctx, "- component: Logo")
	b.Revision(ctx, "make it shorter", "- component: Logo", "- component: Title")

	data, err := os.ReadFile(filepath.Join(dir, "_baseline", "user_p01_baseline.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "[2025-03-04T05:06:07.000000] initial_baseline\n---result---\n- component: Logo\n\n" +
		"[2025-03-04T05:06:07.000000] user_update: make it shorter\n---before---\n- component: Logo\n---after---\n- component: Title\n\n"
	if string(data) != want {
		t.Errorf("log = %q\nwant %q", data, want)
	}
}

func TestEvent_EmptyDetailIsObject(t *testing.T) {
	b, err := json.Marshal(Event{ActionType: "x", Step: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"detail":{}`) {
		t.Errorf("got %s", b)
	}
}
