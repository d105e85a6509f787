// Session HTTP handlers.
//
// This file exposes REST endpoints for the session registry:
//   - POST   /sessions               (create a fresh session with greeting)
//   - GET    /sessions               (list most-recent-first, ETag support)
//   - PUT    /sessions/{id}/activate (switch the active session, idle only)
//   - DELETE /sessions/{id}          (remove; a replacement becomes active)
//   - DELETE /sessions               (clear all; a fresh session is created)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/repo"
	"github.com/fitbuddy/go-coach-backend/internal/services"
	"github.com/fitbuddy/go-coach-backend/internal/utils"
)

//
// DTOs
//

// ListSessionsResponse wraps the user's sessions and the active session id.
type ListSessionsResponse struct {
	Sessions        []domain.ChatSession `json:"sessions"`
	ActiveSessionID string               `json:"active_session_id"`
}

// RemoveSessionResponse reports which session became active after a removal.
type RemoveSessionResponse struct {
	ActiveSessionID string `json:"active_session_id"`
}

//
// Handlers
//

// CreateSession godoc
// @ID          createSession
// @Summary     Create a new session
// @Description Opens a fresh session seeded with the greeting turn and makes it active.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     201  {object}  domain.ChatSession
// @Failure     404  {object}  handlers.ErrorResponse  "Not onboarded yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	sess, err := h.sessionSvc.Create(c.Request.Context(), userID(c))
	if err != nil {
		switch err {
		case services.ErrProfileNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, sess)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (most recent first)
// @Description Returns the user's sessions with derived titles and previews, plus the
// @Description active session id. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       limit          query   int     false "Cap the number of sessions returned (0 = all)"
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort). The limit is part of the ETag so cached
	// truncated results never satisfy a full listing.
	if h.db != nil {
		count, maxTS, err := repo.SessionsStats(ctx, h.db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"sessions:%s:%d:%d:%d"`, uid, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	sessions, activeID, err := h.sessionSvc.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: sessions, ActiveSessionID: activeID})
}

// ActivateSession godoc
// @ID          activateSession
// @Summary     Switch the active session
// @Description Moves the active-session pointer. Refused with 409 while a completion
// @Description request is in flight for the user.
// @Tags        Sessions
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "A response is in progress"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id}/activate [put]
func (h *Handlers) ActivateSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	uid := userID(c)
	if h.chatSvc.Busy(uid) {
		fail(c, http.StatusConflict, ErrCodeSessionBusy, "a response is still in progress")
		return
	}

	if err := h.sessionSvc.Activate(c.Request.Context(), uid, sessionID); err != nil {
		switch err {
		case services.ErrSessionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// SessionStateResponse reports the turn controller's lifecycle state for a
// session: idle, awaiting_response, streaming, or error.
type SessionStateResponse struct {
	State string `json:"state"`
}

// SessionState godoc
// @ID          sessionState
// @Summary     Turn state of a session
// @Description Reports whether a completion is in flight for the session and whether
// @Description the last turn ended in a synthesized error notice.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} handlers.SessionStateResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/state [get]
func (h *Handlers) SessionState(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}
	if _, err := h.sessionSvc.Get(c.Request.Context(), userID(c), sessionID); err != nil {
		switch err {
		case services.ErrSessionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, SessionStateResponse{State: h.chatSvc.State(sessionID).String()})
}

// RemoveSession godoc
// @ID          removeSession
// @Summary     Delete a session
// @Description Deletes a session and its messages. If it was active, the most recent
// @Description survivor takes its place; deleting the last session creates a fresh one.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
//
// @Success     200  {object} handlers.RemoveSessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     409  {object} handlers.ErrorResponse "A response is in progress"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{id} [delete]
func (h *Handlers) RemoveSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	uid := userID(c)
	if h.chatSvc.Busy(uid) {
		fail(c, http.StatusConflict, ErrCodeSessionBusy, "a response is still in progress")
		return
	}

	activeID, err := h.sessionSvc.Remove(c.Request.Context(), uid, sessionID)
	if err != nil {
		switch err {
		case services.ErrSessionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, RemoveSessionResponse{ActiveSessionID: activeID})
}

// ClearSessions godoc
// @ID          clearSessions
// @Summary     Delete every session
// @Description Clears the user's history and opens a fresh active session.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} domain.ChatSession "The fresh active session"
// @Failure     404  {object} handlers.ErrorResponse "Not onboarded yet"
// @Failure     409  {object} handlers.ErrorResponse "A response is in progress"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [delete]
func (h *Handlers) ClearSessions(c *gin.Context) {
	uid := userID(c)
	if h.chatSvc.Busy(uid) {
		fail(c, http.StatusConflict, ErrCodeSessionBusy, "a response is still in progress")
		return
	}

	sess, err := h.sessionSvc.Clear(c.Request.Context(), uid)
	if err != nil {
		switch err {
		case services.ErrProfileNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, sess)
}
