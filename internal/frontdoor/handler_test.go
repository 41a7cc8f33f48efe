package frontdoor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/uxcritique/internal/actionlog"
	"github.com/tjfontaine/uxcritique/internal/codec"
	"github.com/tjfontaine/uxcritique/internal/critique"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/pkg/config"
	"github.com/tjfontaine/uxcritique/internal/prompts"
)

const testImage = "67512.jpg"

// stubAgent answers with reply and counts invocations.
type stubAgent struct {
	calls atomic.Int32
	reply func(p domain.Prompt) (string, error)
}

func (a *stubAgent) Invoke(_ context.Context, p domain.Prompt) (string, error) {
	a.calls.Add(1)
	return a.reply(p)
}

func fixedReply(text string) func(domain.Prompt) (string, error) {
	return func(domain.Prompt) (string, error) { return text, nil }
}

type testEnv struct {
	router    http.Handler
	imageHost string
	imageHits *atomic.Int32
	recorder  *actionlog.Memory
	logDir    string
}

// newTestEnv wires a handler to agent. A nil agent leaves the service
// unconfigured.
func newTestEnv(t *testing.T, agent domain.Agent) *testEnv {
	t.Helper()

	var hits atomic.Int32
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/stores/"+testImage {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'g'})
	}))
	t.Cleanup(images.Close)

	catalog, err := prompts.New()
	if err != nil {
		t.Fatalf("prompts.New() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := critique.New(agent, catalog, critique.WithLogger(logger))

	logDir := t.TempDir()
	rec := &actionlog.Memory{}
	h := NewHandler(HandlerConfig{
		Service:  svc,
		Images:   codec.NewImageResolver(codec.WithDevFallback(nil, nil)),
		Recorder: rec,
		Baseline: actionlog.NewBaselineLog(logDir, "p01", logger),
		Defaults: config.DefaultsConfig{
			ImageFilename:   testImage,
			TaskDescription: "Select music video to play",
		},
		Logger: logger,
	})

	r := chi.NewRouter()
	Mount(r, h.Registrations())
	return &testEnv{
		router:    r,
		imageHost: strings.TrimPrefix(images.URL, "http://"),
		imageHits: &hits,
		recorder:  rec,
		logDir:    logDir,
	}
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	// Requests arrive on the image server's host so the resolver's
	// same-origin candidate points at it.
	req.Host = e.imageHost
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLayout_EndToEnd(t *testing.T) {
	agent := &stubAgent{reply: fixedReply("```yaml\napp_ui:\n  Header:\n    position: \"top\"\n    size_shape: \"full width\"\n```")}
	env := newTestEnv(t, agent)

	rec := env.postForm(t, "/api/step1", url.Values{
		"task":           {"Select music video to play"},
		"image_filename": {testImage},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	appUI, ok := body["app_ui"].(map[string]any)
	if !ok || len(appUI) == 0 {
		t.Fatalf("app_ui = %v, want non-empty mapping", body["app_ui"])
	}
	if header, _ := appUI["Header"].(map[string]any); header["position"] != "top" {
		t.Errorf("Header = %v", appUI["Header"])
	}
	if s, _ := body["image_base64"].(string); s == "" {
		t.Error("image_base64 is empty")
	}
	if nonApp, ok := body["non_app_ui"].([]any); !ok || len(nonApp) != 0 {
		t.Errorf("non_app_ui = %v, want empty list", body["non_app_ui"])
	}
	if body["image_path"] != "/stores/"+testImage || body["image_url"] != "/stores/"+testImage {
		t.Errorf("image_path = %v, image_url = %v", body["image_path"], body["image_url"])
	}
	if body["task"] != "Select music video to play" {
		t.Errorf("task = %v", body["task"])
	}

	events := env.recorder.Events()
	if len(events) != 1 || events[0].ActionType != actionlog.ActionStepResult || events[0].Step != "step1" {
		t.Errorf("recorded events = %+v", events)
	}
}

func TestLayout_ParseErrorCarriesRaw(t *testing.T) {
	reply := "```yaml\napp_ui: [unclosed\n```"
	env := newTestEnv(t, &stubAgent{reply: fixedReply(reply)})

	rec := env.postForm(t, "/step1/", url.Values{"task": {"t"}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["type"] != string(domain.ErrorTypeResponseParse) {
		t.Errorf("type = %v", body["type"])
	}
	if body["raw_output"] != reply {
		t.Errorf("raw_output = %v, want the reply", body["raw_output"])
	}
}

func TestLayout_ImageFetchFailure(t *testing.T) {
	agent := &stubAgent{reply: fixedReply("app_ui: {A: {position: top}}")}
	env := newTestEnv(t, agent)

	rec := env.postForm(t, "/api/step1/", url.Values{"task": {"t"}, "image_filename": {"missing.png"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	attempted, _ := body["attempted_urls"].([]any)
	if len(attempted) != 1 || !strings.HasSuffix(attempted[0].(string), "/stores/missing.png") {
		t.Errorf("attempted_urls = %v", body["attempted_urls"])
	}
	if agent.calls.Load() != 0 {
		t.Error("agent should not be called when the image is missing")
	}
}

func TestMissingConfig_Returns503(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/step1"},
		{http.MethodPost, "/api/step2"},
		{http.MethodPost, "/api/step3"},
		{http.MethodPost, "/api/step4"},
		{http.MethodPost, "/api/step5_6"},
		{http.MethodPost, "/api/step7"},
		{http.MethodPost, "/api/update_guidelines"},
		{http.MethodPost, "/api/baseline"},
		{http.MethodGet, "/api/baseline"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			form := url.Values{"task": {"t"}, "image_filename": {testImage}}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := env.do(req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", rec.Code)
			}
			body := decodeBody(t, rec)
			if body["type"] != string(domain.ErrorTypeConfigMissing) {
				t.Errorf("type = %v", body["type"])
			}
			if msg, _ := body["error"].(string); !strings.Contains(msg, "OPENAI_API_KEY") {
				t.Errorf("error = %q, want remediation hint", msg)
			}
		})
	}
	if n := env.imageHits.Load(); n != 0 {
		t.Errorf("image server hit %d times, want 0", n)
	}
}

func TestComponents_PartialFailure(t *testing.T) {
	agent := &stubAgent{reply: func(p domain.Prompt) (string, error) {
		if strings.Contains(p.User, "'Broken'") {
			return "Broken: [unclosed", nil
		}
		return "Header:\n  Logo:\n    position: left\n    size_shape: square\n", nil
	}}
	env := newTestEnv(t, agent)

	rec := env.postJSON(t, "/api/step2", map[string]any{
		"task":         "t",
		"image_base64": "aGVsbG8=",
		"app_ui": map[string]any{
			"Header": map[string]any{"position": "top"},
			"Broken": map[string]any{"position": "bottom"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	result, _ := decodeBody(t, rec)["result"].(map[string]any)
	broken, _ := result["Broken"].(map[string]any)
	if _, ok := broken["error"]; !ok || len(broken) != 1 {
		t.Errorf("Broken = %v, want error placeholder", result["Broken"])
	}
	header, _ := result["Header"].(map[string]any)
	if _, ok := header["Logo"]; !ok {
		t.Errorf("Header = %v, want Logo", result["Header"])
	}
	if env.imageHits.Load() != 0 {
		t.Error("client image should be used instead of fetching")
	}
}

func TestComponents_KeepsSectionOrder(t *testing.T) {
	agent := &stubAgent{reply: func(p domain.Prompt) (string, error) {
		for _, s := range []string{"Zeta", "Alpha", "Mid"} {
			if strings.Contains(p.User, "'"+s+"'") {
				return s + ":\n  Item:\n    position: x\n    size_shape: y\n", nil
			}
		}
		return "", nil
	}}
	env := newTestEnv(t, agent)

	body := `{"task":"t","image_base64":"aGVsbG8=","app_ui":{"Zeta":{},"Alpha":{},"Mid":{}}}`
	req := httptest.NewRequest(http.MethodPost, "/step2", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	out := rec.Body.String()
	z, a, m := strings.Index(out, `"Zeta"`), strings.Index(out, `"Alpha"`), strings.Index(out, `"Mid"`)
	if !(z >= 0 && z < a && a < m) {
		t.Errorf("sections out of order: %s", out)
	}
}

func TestUpdateGuidelines_CacheHitKeepsCurrentPassThrough(t *testing.T) {
	agent := &stubAgent{reply: fixedReply("```yaml\nchange_log:\n  - emphasized accessibility\nguidelines:\n  - id: 1\n    title: Accessibility\n    description: contrast and size\n```")}
	env := newTestEnv(t, agent)

	call := func(task, step3 string) *httptest.ResponseRecorder {
		return env.postForm(t, "/api/update_guidelines", url.Values{
			"user_update":        {"emphasize accessibility"},
			"default_guidelines": {"1. **Visibility**: show status"},
			"task":               {task},
			"image_base64":       {"aGVsbG8="},
			"step3_results_str":  {step3},
			"step4_results_str":  {"s4"},
		})
	}

	first := call("first task", "first s3")
	second := call("second task", "second s3")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d / %d", first.Code, second.Code)
	}
	if got := first.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("first X-Cache = %q, want miss", got)
	}
	if got := second.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}
	if n := agent.calls.Load(); n != 1 {
		t.Errorf("agent called %d times, want 1", n)
	}

	a, b := decodeBody(t, first), decodeBody(t, second)
	if a["guidelines"] != b["guidelines"] || a["change_log"] != b["change_log"] {
		t.Errorf("cached content differs: %v vs %v", a, b)
	}
	if a["guidelines"] != "1. **Accessibility**: contrast and size" {
		t.Errorf("guidelines = %v", a["guidelines"])
	}
	if b["task"] != "second task" || b["step3_results_str"] != "second s3" {
		t.Errorf("pass-through fields are stale: %v", b)
	}

	if events := env.recorder.Events(); len(events) != 2 {
		t.Errorf("recorded %d events, want 2 (miss only)", len(events))
	}
}

func TestUpdateGuidelines_MissingField(t *testing.T) {
	env := newTestEnv(t, &stubAgent{reply: fixedReply("")})
	rec := env.postForm(t, "/api/update_guidelines", url.Values{"user_update": {"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := decodeBody(t, rec)["error"].(string); !strings.Contains(msg, "default_guidelines") {
		t.Errorf("error = %q", msg)
	}
}

func TestEvaluation(t *testing.T) {
	agent := &stubAgent{reply: func(p domain.Prompt) (string, error) {
		if p.Name == "layout_evaluation" {
			return "global_issues:\n  - expected_standard: a\n    identified_gap: b\nsection_issues: {}\n", nil
		}
		return "Header:\n  component_issues: {}\n", nil
	}}
	env := newTestEnv(t, agent)

	rec := env.postForm(t, "/api/step5_6", url.Values{
		"task":              {"t"},
		"image_base64":      {"aGVsbG8="},
		"step3_results_str": {"Header:\n  Logo: {visual_characteristics: red}\n"},
		"step4_results_str": {"Header: {visual_characteristics: bar}\n"},
		"guidelines_str":    {"1. **Visibility**: show status"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	step5, _ := body["step5_result"].(map[string]any)
	if issues, _ := step5["global_issues"].([]any); len(issues) != 1 {
		t.Errorf("step5_result = %v", body["step5_result"])
	}
	step6, _ := body["step6_result"].(map[string]any)
	if _, ok := step6["Header"]; !ok {
		t.Errorf("step6_result = %v", body["step6_result"])
	}

	var steps []string
	for _, e := range env.recorder.Events() {
		steps = append(steps, e.Step)
	}
	if strings.Join(steps, ",") != "step5,step6" {
		t.Errorf("recorded steps = %v", steps)
	}
}

func TestSolution_InvalidInputIs400(t *testing.T) {
	agent := &stubAgent{reply: fixedReply("")}
	env := newTestEnv(t, agent)

	rec := env.postForm(t, "/api/step7", url.Values{
		"task":              {"t"},
		"step3_results_str": {"a: [unclosed"},
		"step4_results_str": {""},
		"step5_results_str": {""},
		"step6_results_str": {""},
		"guidelines_str":    {""},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := decodeBody(t, rec)["error"].(string); !strings.HasPrefix(msg, "Error in Step 7: ") {
		t.Errorf("error = %q", msg)
	}
	if agent.calls.Load() != 0 {
		t.Error("agent should not be called")
	}
}

func TestBaseline_Generate(t *testing.T) {
	env := newTestEnv(t, &stubAgent{reply: fixedReply("```yaml\n- component: Header\n  proposed_fix: larger\n```")})

	rec := env.postForm(t, "/baseline", url.Values{"task": {"t"}, "rico_id": {"67512"}, "guidelines_str": {"g"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["raw"] != "- component: Header\n  proposed_fix: larger" {
		t.Errorf("raw = %q", body["raw"])
	}
	if body["rico_id"] != "67512" || body["image_base64"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestBaseline_InvalidPreviousYAML(t *testing.T) {
	agent := &stubAgent{reply: fixedReply("")}
	env := newTestEnv(t, agent)

	rec := env.postForm(t, "/api/baseline", url.Values{
		"user_update":       {"shorter"},
		"baseline_solution": {"a: [unclosed"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "Invalid baseline_solution YAML: ") {
		t.Errorf("error = %q", msg)
	}
	if body["raw"] != "a: [unclosed" {
		t.Errorf("raw = %v", body["raw"])
	}
	if agent.calls.Load() != 0 {
		t.Error("agent should not be called")
	}
}

func TestBaseline_ReviseWritesBaselineLog(t *testing.T) {
	env := newTestEnv(t, &stubAgent{reply: fixedReply("```yaml\n- component: Header\n  proposed_fix: shorter label\n```")})

	rec := env.postForm(t, "/api/baseline/", url.Values{
		"task":              {"t"},
		"user_update":       {"make it shorter"},
		"baseline_solution": {"- component: Header\n  proposed_fix: a much longer label\n"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if raw, _ := decodeBody(t, rec)["raw"].(string); !strings.Contains(raw, "shorter label") {
		t.Errorf("raw = %q", raw)
	}

	data, err := os.ReadFile(env.logDir + "/_baseline/user_p01_baseline.log")
	if err != nil {
		t.Fatalf("read baseline log: %v", err)
	}
	if !strings.Contains(string(data), "user_update: make it shorter") {
		t.Errorf("baseline log = %s", data)
	}
}

func TestBaseline_Probe(t *testing.T) {
	env := newTestEnv(t, &stubAgent{reply: fixedReply("")})

	req := httptest.NewRequest(http.MethodGet, "/api/baseline?task=t", nil)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["task"] != "t" || body["rico_id"] != nil {
		t.Errorf("body = %v", body)
	}
}

func TestLogAction_DefaultsToAnonymous(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postJSON(t, "/log-action", map[string]any{
		"action":  "user_prompt",
		"content": "make buttons bigger",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["success"] != true {
		t.Errorf("body = %s", rec.Body.String())
	}

	events := env.recorder.Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events", len(events))
	}
	e := events[0]
	if e.UserID != "anonymous" || e.ActionType != "user_prompt" || e.Step != "make buttons bigger" {
		t.Errorf("event = %+v", e)
	}
}

func TestLogUserAction(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.postJSON(t, "/api/log-user-action/", map[string]any{
		"action_type": "edit_table_start",
		"content":     "step3",
	})
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if events := env.recorder.Events(); len(events) != 1 || events[0].Step != "step3" {
		t.Errorf("events = %+v", events)
	}

	for _, tt := range []struct {
		content any
		want    string
	}{
		{map[string]any{"table": "step4", "row": 2}, `{"row":2,"table":"step4"}`},
		{[]any{"a", "b"}, `["a","b"]`},
		{7, "7"},
		{nil, ""},
	} {
		rec := env.postJSON(t, "/log-user-action", map[string]any{
			"action_type": "edit_table_field",
			"content":     tt.content,
		})
		if rec.Code != http.StatusOK {
			t.Errorf("content %v: status = %d, body = %s", tt.content, rec.Code, rec.Body.String())
			continue
		}
		events := env.recorder.Events()
		if got := events[len(events)-1].Step; got != tt.want {
			t.Errorf("content %v: step = %q, want %q", tt.content, got, tt.want)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/log-user-action", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if rec := env.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestConstantsOnEverySpelling(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range Spellings("constants") {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
			continue
		}
		body := decodeBody(t, rec)
		if body["image_filename"] != testImage || body["image_url"] != "/stores/"+testImage || body["task_description"] != "Select music video to play" {
			t.Errorf("GET %s body = %v", path, body)
		}
	}
}

func TestSpellings(t *testing.T) {
	got := strings.Join(Spellings("/step1/"), " ")
	if want := "/api/step1 /api/step1/ /step1 /step1/"; got != want {
		t.Errorf("Spellings() = %q, want %q", got, want)
	}
}
