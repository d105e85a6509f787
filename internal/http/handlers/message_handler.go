// Message HTTP handlers.
//
// This file exposes REST endpoints for session transcripts:
//   - POST /sessions/{id}/messages   (submit a prompt, get the assistant reply)
//   - GET  /sessions/{id}/messages   (list the transcript, oldest first)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (ChatService / SessionService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Streaming:
// When the client sends "Accept: text/event-stream", the assistant reply is
// delivered as Server-Sent Events: one `data: {"delta":"..."}` event per
// fragment, a final `data: {"message":{...}}` event carrying the persisted
// turn, then `data: [DONE]`. Otherwise a single JSON envelope is returned.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, session, key), the handler returns that recorded
// assistant message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/format"
	"github.com/fitbuddy/go-coach-backend/internal/repo"
	"github.com/fitbuddy/go-coach-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a user prompt.
//
// Content is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer. The service also enforces a
// maximum rune count, configurable on ChatService.
type PostMessageRequest struct {
	// Content is the user prompt. Whitespace-only content is a silent no-op.
	Content string `json:"content" binding:"required,min=1" example:"Build me a 3-day split for building muscle"`
}

// MessageView is one transcript turn as rendered to clients. HTML carries the
// display transform of assistant content; user turns render as-is.
type MessageView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMessageResponse is the JSON envelope for a newly created assistant reply.
type PostMessageResponse struct {
	Message MessageView `json:"message"`
}

// ListMessagesResponse contains the session transcript, oldest first.
type ListMessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// messageView renders a persisted turn for transport, applying the display
// transform to assistant content.
func messageView(m *domain.ChatMessage) MessageView {
	v := MessageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Role == domain.RoleAssistant {
		v.HTML = format.Message(m.Content)
	}
	return v
}

// getIdempotencyKey reads a client-supplied Idempotency-Key header, if any.
func getIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// wantsStream reports whether the client asked for Server-Sent Events.
func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a prompt and get the assistant reply
// @Description Appends a user turn to the session and generates the assistant reply.
// @Description With "Accept: text/event-stream" the reply streams as SSE deltas
// @Description terminated by `data: [DONE]`. Supports idempotency via the
// @Description Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Produce     text/event-stream
//
// @Param       X-User-ID        header  string  true  "User ID that owns the session"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Session ID (UUID)"              format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "User prompt payload"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Assistant reply"
// @Success     204  {string}  string                        "Whitespace-only prompt (no-op)"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse        "A response is in progress"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /sessions/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := h.chatSvc.MaxPromptRunes
	if maxRunes == 0 {
		maxRunes = services.DefaultMaxPromptRunes
	}
	if utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		// Whitespace-only input: nothing is appended, nothing changes.
		noContent(c)
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := getIdempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, currentUser, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, PostMessageResponse{Message: messageView(prev)})
				return
			}
		}
	}

	if wantsStream(c) {
		h.postMessageSSE(c, currentUser, sessionID, content, idemKey)
		return
	}

	m, err := h.chatSvc.Send(ctx, currentUser, sessionID, content, nil)
	if err != nil {
		failSend(c, err, maxRunes)
		return
	}
	h.storeIdempotency(c, currentUser, sessionID, idemKey, m.ID)
	ok(c, http.StatusOK, PostMessageResponse{Message: messageView(m)})
}

// postMessageSSE delivers the assistant reply as Server-Sent Events. Contract
// violations detected before the stream opens still return JSON errors; once
// the stream is open, failures arrive as a synthesized assistant turn like any
// other reply.
func (h *Handlers) postMessageSSE(c *gin.Context, currentUser, sessionID, content, idemKey string) {
	// Precheck the busy guard before committing to the event stream so the
	// client gets a JSON 409 rather than an empty stream.
	if h.chatSvc.Busy(currentUser) {
		fail(c, http.StatusConflict, ErrCodeSessionBusy, "a response is still in progress")
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	m, err := h.chatSvc.Send(c.Request.Context(), currentUser, sessionID, content, func(delta string) error {
		payload, merr := json.Marshal(gin.H{"delta": delta})
		if merr != nil {
			return merr
		}
		if _, werr := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); werr != nil {
			return werr
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		// Contract errors (not found, busy, too long) surface as one terminal
		// SSE error event since the stream is already open.
		payload, _ := json.Marshal(gin.H{"error": err.Error()})
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		c.Writer.Flush()
		return
	}

	h.storeIdempotency(c, currentUser, sessionID, idemKey, m.ID)

	final, _ := json.Marshal(gin.H{"message": messageView(m)})
	fmt.Fprintf(c.Writer, "data: %s\n\n", final)
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

// storeIdempotency records a completed turn for replay – best effort.
func (h *Handlers) storeIdempotency(c *gin.Context, currentUser, sessionID, idemKey, messageID string) {
	if idemKey == "" || h.db == nil {
		return
	}
	ttl := 24 * time.Hour
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, currentUser, sessionID, idemKey, messageID, http.StatusOK, ttl)
}

// failSend maps ChatService contract errors to HTTP responses.
func failSend(c *gin.Context, err error, maxRunes int) {
	switch err {
	case services.ErrSessionNotFound, services.ErrProfileNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case services.ErrTooLong:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
	case services.ErrEmptyPrompt:
		noContent(c)
	case services.ErrSessionBusy:
		fail(c, http.StatusConflict, ErrCodeSessionBusy, "a response is still in progress")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
	}
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List the session transcript
// @Description Returns the session's turns oldest first. A session with no persisted
// @Description turns still presents the greeting. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID      header string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path   string  true  "Session ID (UUID)"           format(uuid)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, h.db, sessionID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, sessionID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	msgs, err := h.sessionSvc.History(ctx, userID(c), sessionID)
	if err != nil {
		switch err {
		case services.ErrSessionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, messageView(&msgs[i]))
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: views})
}
