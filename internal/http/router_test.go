package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fitbuddy/go-coach-backend/internal/config"
	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/llm"
)

// stubClient is a canned completion backend for transport tests.
type stubClient struct {
	reply  string
	deltas []string
	err    error
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubClient) Stream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	var full strings.Builder
	for _, d := range s.deltas {
		full.WriteString(d)
		if err := fn(d); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&domain.UserProfile{}, &domain.ChatSession{}, &domain.ChatMessage{},
		&domain.Preference{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	client := &stubClient{reply: "Drink more water. 💧"}
	cfg := config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: 24 * time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test"},
	}

	r := gin.New()
	RegisterRoutes(r, db, client, cfg)
	return r, client
}

func do(t *testing.T, r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

const onboardBody = `{"name":"Maria","age":29,"gender":"female","height_cm":168,"weight_kg":62,"goal":"Build muscle","country":"Greece"}`

func onboard(t *testing.T, r *gin.Engine) {
	t.Helper()
	if w := do(t, r, http.MethodPost, "/api/v1/profile", onboardBody, nil); w.Code != http.StatusCreated {
		t.Fatalf("onboard: %d %s", w.Code, w.Body.String())
	}
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/sessions", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var sess domain.ChatSession
	decode(t, w, &sess)
	return sess.ID
}

func TestHealthAndFallbacks(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(t, r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/definitely/not/here", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no route: %d", w.Code)
	}
	var e struct {
		Code string `json:"code"`
	}
	decode(t, w, &e)
	if e.Code != "not_found" {
		t.Fatalf("error code = %q", e.Code)
	}

	if w := do(t, r, http.MethodDelete, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("no method: %d", w.Code)
	}
}

func TestProfileEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(t, r, http.MethodGet, "/api/v1/profile", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("profile before onboarding: %d", w.Code)
	}

	onboard(t, r)

	w := do(t, r, http.MethodPost, "/api/v1/profile", onboardBody, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate onboarding: %d %s", w.Code, w.Body.String())
	}
	var e struct {
		Code string `json:"code"`
	}
	decode(t, w, &e)
	if e.Code != "profile_exists" {
		t.Fatalf("error code = %q", e.Code)
	}

	w = do(t, r, http.MethodGet, "/api/v1/profile", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get profile: %d", w.Code)
	}
	var p domain.UserProfile
	decode(t, w, &p)
	if p.Name != "Maria" || p.HeightCM != 168 {
		t.Fatalf("profile round trip: %+v", p)
	}
}

func TestPostMessage_JSONFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	sessID := createSession(t, r)

	w := do(t, r, http.MethodPost, "/api/v1/sessions/"+sessID+"/messages",
		`{"content":"I want to build muscle"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("post message: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Message struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content string `json:"content"`
			HTML    string `json:"html"`
		} `json:"message"`
	}
	decode(t, w, &resp)
	if resp.Message.Role != domain.RoleAssistant {
		t.Fatalf("role = %q", resp.Message.Role)
	}
	if resp.Message.Content == "" || resp.Message.HTML == "" {
		t.Fatalf("reply missing content or html: %+v", resp.Message)
	}

	// Transcript now carries greeting + user + assistant, with an ETag.
	w = do(t, r, http.MethodGet, "/api/v1/sessions/"+sessID+"/messages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages: %d", w.Code)
	}
	var list struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	decode(t, w, &list)
	if len(list.Messages) != 3 {
		t.Fatalf("transcript = %d turns; want 3", len(list.Messages))
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	if w = do(t, r, http.MethodGet, "/api/v1/sessions/"+sessID+"/messages", "",
		map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("conditional get: %d", w.Code)
	}
}

func TestPostMessage_Validation(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	sessID := createSession(t, r)

	// Whitespace content is a silent no-op.
	w := do(t, r, http.MethodPost, "/api/v1/sessions/"+sessID+"/messages", `{"content":"  \n  "}`, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("whitespace: %d %s", w.Code, w.Body.String())
	}

	if w = do(t, r, http.MethodPost, "/api/v1/sessions/not-a-uuid/messages", `{"content":"hi"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad session id: %d", w.Code)
	}

	if w = do(t, r, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/messages", `{"content":"hi"}`, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}
}

func TestPostMessage_IdempotentReplay(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	sessID := createSession(t, r)
	hdr := map[string]string{"Idempotency-Key": uuid.NewString()}
	path := "/api/v1/sessions/" + sessID + "/messages"

	first := do(t, r, http.MethodPost, path, `{"content":"meal plan please"}`, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("first post: %d %s", first.Code, first.Body.String())
	}
	second := do(t, r, http.MethodPost, path, `{"content":"meal plan please"}`, hdr)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay not flagged")
	}

	var a, b struct {
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	decode(t, first, &a)
	decode(t, second, &b)
	if a.Message.ID != b.Message.ID {
		t.Fatalf("replay returned a different message: %s vs %s", a.Message.ID, b.Message.ID)
	}

	// The replay appended nothing.
	w := do(t, r, http.MethodGet, path, "", nil)
	var list struct {
		Messages []json.RawMessage `json:"messages"`
	}
	decode(t, w, &list)
	if len(list.Messages) != 3 {
		t.Fatalf("transcript = %d turns after replay; want 3", len(list.Messages))
	}
}

func TestPostMessage_SSE(t *testing.T) {
	r, client := newTestRouter(t)
	client.deltas = []string{"Stay ", "hydrated", "!"}
	onboard(t, r)
	sessID := createSession(t, r)

	w := do(t, r, http.MethodPost, "/api/v1/sessions/"+sessID+"/messages",
		`{"content":"quick tip"}`, map[string]string{"Accept": "text/event-stream"})
	if w.Code != http.StatusOK {
		t.Fatalf("sse post: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, `data: {"delta":"Stay "}`) {
		t.Fatalf("missing first delta event:\n%s", body)
	}
	if !strings.Contains(body, `"message"`) {
		t.Fatalf("missing final message event:\n%s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Fatalf("stream not terminated:\n%s", body)
	}
	if strings.Index(body, `"delta"`) > strings.Index(body, `"message"`) {
		t.Fatalf("deltas must precede the final message:\n%s", body)
	}
}

func TestCompression_JSONGzippedSSEUntouched(t *testing.T) {
	r, client := newTestRouter(t)
	client.deltas = []string{"Stay ", "hydrated", "!"}
	onboard(t, r)
	sessID := createSession(t, r)

	// Plain JSON listings compress when the client advertises gzip support.
	w := do(t, r, http.MethodGet, "/api/v1/sessions/"+sessID+"/messages", "",
		map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK {
		t.Fatalf("list messages: %d", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Content-Encoding = %q; want gzip", enc)
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !json.Valid(plain) || !strings.Contains(string(plain), `"assistant"`) {
		t.Fatalf("unexpected decompressed body: %s", plain)
	}

	// A request negotiating SSE stays uncompressed even when it also accepts
	// gzip, so each delta reaches the client as it is flushed.
	w = do(t, r, http.MethodPost, "/api/v1/sessions/"+sessID+"/messages",
		`{"content":"quick tip"}`, map[string]string{
			"Accept":          "text/event-stream",
			"Accept-Encoding": "gzip",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("sse post: %d %s", w.Code, w.Body.String())
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("sse Content-Encoding = %q; want none", enc)
	}
	if !strings.Contains(w.Body.String(), `data: {"delta":"Stay "}`) {
		t.Fatalf("sse stream not readable as plain text:\n%s", w.Body.String())
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	first := createSession(t, r)
	second := createSession(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list sessions: %d", w.Code)
	}
	var list struct {
		Sessions        []domain.ChatSession `json:"sessions"`
		ActiveSessionID string               `json:"active_session_id"`
	}
	decode(t, w, &list)
	if len(list.Sessions) != 2 || list.ActiveSessionID != second {
		t.Fatalf("list = %d sessions, active %s; want 2 with active %s", len(list.Sessions), list.ActiveSessionID, second)
	}

	w = do(t, r, http.MethodGet, "/api/v1/sessions/"+second+"/state", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session state: %d %s", w.Code, w.Body.String())
	}
	var st struct {
		State string `json:"state"`
	}
	decode(t, w, &st)
	if st.State != "idle" {
		t.Fatalf("state = %q; want idle", st.State)
	}

	w = do(t, r, http.MethodGet, "/api/v1/sessions?limit=1", "", nil)
	decode(t, w, &list)
	if len(list.Sessions) != 1 {
		t.Fatalf("limited list = %d sessions; want 1", len(list.Sessions))
	}

	if w = do(t, r, http.MethodPut, "/api/v1/sessions/"+first+"/activate", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("activate: %d %s", w.Code, w.Body.String())
	}

	// Removing the active session promotes the survivor.
	w = do(t, r, http.MethodDelete, "/api/v1/sessions/"+first, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: %d %s", w.Code, w.Body.String())
	}
	var rm struct {
		ActiveSessionID string `json:"active_session_id"`
	}
	decode(t, w, &rm)
	if rm.ActiveSessionID != second {
		t.Fatalf("promoted %s; want %s", rm.ActiveSessionID, second)
	}

	// Clearing leaves exactly one fresh active session.
	w = do(t, r, http.MethodDelete, "/api/v1/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: %d %s", w.Code, w.Body.String())
	}
	var fresh domain.ChatSession
	decode(t, w, &fresh)
	if fresh.ID == second {
		t.Fatal("clear must open a fresh session")
	}
	w = do(t, r, http.MethodGet, "/api/v1/sessions", "", nil)
	decode(t, w, &list)
	if len(list.Sessions) != 1 || list.ActiveSessionID != fresh.ID {
		t.Fatalf("after clear: %d sessions, active %s", len(list.Sessions), list.ActiveSessionID)
	}
}

func TestSpeechEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	sessID := createSession(t, r)

	w := do(t, r, http.MethodPost, "/api/v1/sessions/"+sessID+"/messages", `{"content":"one tip"}`, nil)
	var resp struct {
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	decode(t, w, &resp)

	toggle := fmt.Sprintf(`{"message_id":%q}`, resp.Message.ID)
	w = do(t, r, http.MethodPost, "/api/v1/speech/utterances", toggle, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", w.Code, w.Body.String())
	}
	var u struct {
		Speaking bool   `json:"speaking"`
		Text     string `json:"text"`
	}
	decode(t, w, &u)
	if !u.Speaking || u.Text == "" {
		t.Fatalf("utterance = %+v", u)
	}

	// Same message toggles playback off.
	w = do(t, r, http.MethodPost, "/api/v1/speech/utterances", toggle, nil)
	decode(t, w, &u)
	if u.Speaking {
		t.Fatal("second toggle must stop playback")
	}

	// Messages of other users are invisible.
	w = do(t, r, http.MethodPost, "/api/v1/speech/utterances", toggle, map[string]string{"X-User-ID": "intruder"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign toggle: %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/v1/speech/captures", `{"transcript":"  best post workout meal  "}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("capture: %d %s", w.Code, w.Body.String())
	}
	var capture struct {
		Transcript string `json:"transcript"`
	}
	decode(t, w, &capture)
	if capture.Transcript != "best post workout meal" {
		t.Fatalf("transcript = %q", capture.Transcript)
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)
	sessID := createSession(t, r)

	w := do(t, r, http.MethodPut, "/api/v1/preferences", `{"go_to_chat":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update preferences: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/v1/preferences", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get preferences: %d", w.Code)
	}
	var pref struct {
		GoToChat        bool   `json:"go_to_chat"`
		ActiveSessionID string `json:"active_session_id"`
	}
	decode(t, w, &pref)
	if !pref.GoToChat {
		t.Fatal("go_to_chat flag lost")
	}
	if pref.ActiveSessionID != sessID {
		t.Fatalf("active pointer clobbered by flag update: %q", pref.ActiveSessionID)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	onboard(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/dashboard/bmi", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bmi: %d %s", w.Code, w.Body.String())
	}
	var bmi struct {
		Value    float64 `json:"value"`
		Category string  `json:"category"`
	}
	decode(t, w, &bmi)
	if bmi.Value != 22.0 || bmi.Category != "Normal" {
		t.Fatalf("bmi = %+v", bmi)
	}

	w = do(t, r, http.MethodGet, "/api/v1/dashboard/gyms?lat=37.9838&lng=23.7275&platform=ios", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("gyms: %d %s", w.Code, w.Body.String())
	}
	var gyms struct {
		URL string `json:"url"`
	}
	decode(t, w, &gyms)
	if !strings.HasPrefix(gyms.URL, "maps://search/") {
		t.Fatalf("gyms url = %q", gyms.URL)
	}

	if w = do(t, r, http.MethodGet, "/api/v1/dashboard/gyms?lat=north&lng=23", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad coords: %d", w.Code)
	}

	for _, path := range []string{"/api/v1/dashboard/recipes", "/api/v1/dashboard/workouts"} {
		w = do(t, r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
		var cards []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		decode(t, w, &cards)
		if len(cards) != 3 {
			t.Fatalf("%s cards = %d; want 3", path, len(cards))
		}
	}

	w = do(t, r, http.MethodGet, "/api/v1/chat/quick-prompts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quick prompts: %d", w.Code)
	}
	var qp []struct {
		Label  string `json:"label"`
		Prompt string `json:"prompt"`
	}
	decode(t, w, &qp)
	if len(qp) != 4 {
		t.Fatalf("quick prompts = %d; want 4", len(qp))
	}
}
