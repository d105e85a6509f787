package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/llm"
)

// ----- Fake completion client -----

type fakeClient struct {
	mu sync.Mutex

	reply  string
	deltas []string
	err    error

	// block, when non-nil, stalls Stream/Complete until closed.
	block chan struct{}

	gotReq llm.Request
	calls  int
}

func (f *fakeClient) record(req llm.Request) {
	f.mu.Lock()
	f.gotReq = req
	f.calls++
	f.mu.Unlock()
}

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.record(req)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeClient) Stream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (string, error) {
	f.record(req)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	var full strings.Builder
	for _, d := range f.deltas {
		full.WriteString(d)
		if err := fn(d); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func (f *fakeClient) request() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotReq
}

// newChatEnv seeds a profile plus one session and wires a controller around
// the fake client.
func newChatEnv(t *testing.T, client llm.Client) (*ChatService, *SessionService, string) {
	t.Helper()
	db := newServiceDB(t)
	seedProfile(t, db, "u1", "Maria")
	sessions := &SessionService{DB: db}
	sess, err := sessions.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	chat := &ChatService{DB: db, Client: client, Sessions: sessions}
	return chat, sessions, sess.ID
}

// ----- Tests -----

func TestSend_PersistsPromptAndReply(t *testing.T) {
	fc := &fakeClient{reply: "Great goal! Start with compound lifts."}
	chat, sessions, sessID := newChatEnv(t, fc)
	ctx := context.Background()

	m, err := chat.Send(ctx, "u1", sessID, "I want to build muscle", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Role != domain.RoleAssistant || m.Content != fc.reply {
		t.Fatalf("unexpected assistant message: %+v", m)
	}

	// greeting + user + assistant
	msgs, err := sessions.History(ctx, "u1", sessID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("transcript length = %d; want 3", len(msgs))
	}
	if msgs[1].Role != domain.RoleUser || msgs[1].Content != "I want to build muscle" {
		t.Fatalf("user turn wrong: %+v", msgs[1])
	}
	if msgs[2].Role != domain.RoleAssistant || msgs[2].Content != fc.reply {
		t.Fatalf("assistant turn wrong: %+v", msgs[2])
	}

	// Registry metadata is refreshed from the transcript.
	sess, err := sessions.Get(ctx, "u1", sessID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Title != "I want to build muscle" {
		t.Fatalf("title not derived from first user turn: %q", sess.Title)
	}
	if !strings.HasPrefix(fc.reply, strings.TrimSuffix(sess.Preview, "...")) {
		t.Fatalf("preview not derived from last turn: %q", sess.Preview)
	}

	if st := chat.State(sessID); st != StateIdle {
		t.Fatalf("state after success = %v; want idle", st)
	}
}

func TestSend_RequestCarriesPersonaAndHistory(t *testing.T) {
	fc := &fakeClient{reply: "ok"}
	chat, _, sessID := newChatEnv(t, fc)

	if _, err := chat.Send(context.Background(), "u1", sessID, "any advice?", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	req := fc.request()
	for _, frag := range []string{"FitBuddy", "Maria", "Build muscle", "Greece"} {
		if !strings.Contains(req.System, frag) {
			t.Fatalf("persona missing %q:\n%s", frag, req.System)
		}
	}
	// greeting + the new prompt, no in-flight placeholder
	if len(req.Turns) != 2 {
		t.Fatalf("turns = %d; want greeting + prompt", len(req.Turns))
	}
	last := req.Turns[len(req.Turns)-1]
	if last.Role != llm.RoleUser || last.Content != "any advice?" {
		t.Fatalf("prompt must be the final turn, got %+v", last)
	}
}

func TestSend_WhitespaceIsSilentNoOp(t *testing.T) {
	fc := &fakeClient{reply: "never sent"}
	chat, sessions, sessID := newChatEnv(t, fc)
	ctx := context.Background()

	for _, in := range []string{"", "   ", "\n\t "} {
		if _, err := chat.Send(ctx, "u1", sessID, in, nil); err != ErrEmptyPrompt {
			t.Fatalf("Send(%q) err = %v; want ErrEmptyPrompt", in, err)
		}
	}
	if fc.calls != 0 {
		t.Fatalf("remote client called %d times for empty input", fc.calls)
	}
	msgs, _ := sessions.History(ctx, "u1", sessID)
	if len(msgs) != 1 {
		t.Fatalf("transcript grew on empty input: %d turns", len(msgs))
	}
	if st := chat.State(sessID); st != StateIdle {
		t.Fatalf("state = %v; want idle", st)
	}
}

func TestSend_TooLong(t *testing.T) {
	fc := &fakeClient{reply: "never sent"}
	chat, _, sessID := newChatEnv(t, fc)
	chat.MaxPromptRunes = 10

	if _, err := chat.Send(context.Background(), "u1", sessID, strings.Repeat("x", 11), nil); err != ErrTooLong {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestSend_UnknownSession(t *testing.T) {
	fc := &fakeClient{reply: "ok"}
	chat, _, _ := newChatEnv(t, fc)

	_, err := chat.Send(context.Background(), "u1", "no-such-session", "hi", nil)
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSend_RateLimit_SynthesizesWaitNotice(t *testing.T) {
	fc := &fakeClient{err: &llm.RateLimitError{RetryAfter: 40, Detail: "Rate limit exceeded"}}
	chat, sessions, sessID := newChatEnv(t, fc)
	ctx := context.Background()

	m, err := chat.Send(ctx, "u1", sessID, "plan please", nil)
	if err != nil {
		t.Fatalf("remote failure must not surface as error, got %v", err)
	}
	if !strings.Contains(m.Content, "wait") || !strings.Contains(m.Content, "40") {
		t.Fatalf("notice missing wait hint: %q", m.Content)
	}

	// The notice is persisted like any other assistant turn and drives the
	// registry preview.
	msgs, _ := sessions.History(ctx, "u1", sessID)
	if len(msgs) != 3 || msgs[2].Content != m.Content {
		t.Fatalf("notice not persisted: %+v", msgs)
	}
	sess, _ := sessions.Get(ctx, "u1", sessID)
	if !strings.Contains(sess.Preview, "40") {
		t.Fatalf("preview not driven by notice: %q", sess.Preview)
	}

	if st := chat.State(sessID); st != StateError {
		t.Fatalf("state after failure = %v; want error", st)
	}

	// The error state still accepts new input.
	fc.err = nil
	fc.reply = "recovered"
	if _, err := chat.Send(ctx, "u1", sessID, "try again", nil); err != nil {
		t.Fatalf("Send after error state: %v", err)
	}
	if st := chat.State(sessID); st != StateIdle {
		t.Fatalf("state after recovery = %v; want idle", st)
	}
}

func TestSend_Unreachable_SynthesizesOfflineNotice(t *testing.T) {
	fc := &fakeClient{err: llm.ErrUnreachable}
	chat, _, sessID := newChatEnv(t, fc)

	m, err := chat.Send(context.Background(), "u1", sessID, "hello?", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(m.Content, "No internet connection") {
		t.Fatalf("offline notice wrong: %q", m.Content)
	}
}

func TestSend_StreamForwardsDeltasInOrder(t *testing.T) {
	fc := &fakeClient{deltas: []string{"Stay ", "hydrated", "!"}}
	chat, _, sessID := newChatEnv(t, fc)

	var got []string
	m, err := chat.Send(context.Background(), "u1", sessID, "tip?", func(d string) error {
		got = append(got, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Content != "Stay hydrated!" {
		t.Fatalf("assembled reply = %q", m.Content)
	}
	if len(got) != 3 || got[0] != "Stay " || got[2] != "!" {
		t.Fatalf("deltas out of order: %v", got)
	}
}

func TestSend_BusySessionRejectsConcurrentInput(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeClient{reply: "slow answer", block: release}
	chat, _, sessID := newChatEnv(t, fc)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := chat.Send(ctx, "u1", sessID, "first", nil)
		done <- err
	}()

	// Wait until the first send holds the in-flight slot.
	for !chat.Busy("u1") {
		time.Sleep(time.Millisecond)
	}

	if _, err := chat.Send(ctx, "u1", sessID, "second", nil); err != ErrSessionBusy {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if chat.Busy("u1") {
		t.Fatal("still busy after completion")
	}
}
