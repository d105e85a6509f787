// Speech HTTP handlers.
//
// Voice interaction state endpoints. Audio I/O happens on the client; the
// server is the authority on what is playing so that at most one utterance is
// active per user and toggling the same message stops it.
//   - POST   /speech/utterances  (toggle playback of a transcript message)
//   - GET    /speech/utterances  (current playback state)
//   - DELETE /speech/utterances  (stop playback)
//   - POST   /speech/captures    (single-shot voice capture transcript intake)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitbuddy/go-coach-backend/internal/repo"
	"github.com/fitbuddy/go-coach-backend/internal/services"
)

//
// DTOs
//

// ToggleUtteranceRequest identifies the transcript message to speak.
type ToggleUtteranceRequest struct {
	MessageID string `json:"message_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// UtteranceResponse reports the user's playback state. Utterance is null when
// nothing plays.
type UtteranceResponse struct {
	Speaking  bool   `json:"speaking"`
	MessageID string `json:"message_id,omitempty"`
	// Text is the speech-ready rendition: tags and markers stripped,
	// newlines collapsed to sentence breaks.
	Text string `json:"text,omitempty"`
}

// CaptureRequest carries the recognized transcript of a single-shot voice
// capture.
type CaptureRequest struct {
	Transcript string `json:"transcript" example:"what should I eat after a workout"`
}

// CaptureResponse returns the normalized transcript ready for the chat input.
type CaptureResponse struct {
	Transcript string `json:"transcript"`
}

//
// Handlers
//

// ToggleUtterance godoc
// @ID          toggleUtterance
// @Summary     Start or stop speaking a message
// @Description Starts speech output for the message, or stops it when that message is
// @Description already playing. Starting replaces any other playing utterance.
// @Tags        Speech
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ToggleUtteranceRequest  true  "Message to speak"
//
// @Success     200  {object}  handlers.UtteranceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Router      /speech/utterances [post]
func (h *Handlers) ToggleUtterance(c *gin.Context) {
	var req ToggleUtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message_id required")
		return
	}
	if _, err := uuid.Parse(req.MessageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	uid := userID(c)
	m, err := repo.GetMessage(h.db, req.MessageID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		return
	}
	// Ownership: the message's session must belong to the caller.
	if _, err := h.sessionSvc.Get(c.Request.Context(), uid, m.SessionID); err != nil {
		if err == services.ErrSessionNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	u := h.bridge.Toggle(uid, m.ID, m.Content)
	if u == nil {
		ok(c, http.StatusOK, UtteranceResponse{Speaking: false})
		return
	}
	ok(c, http.StatusOK, UtteranceResponse{Speaking: true, MessageID: u.MessageID, Text: u.Text})
}

// GetUtterance godoc
// @ID          getUtterance
// @Summary     Current playback state
// @Tags        Speech
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.UtteranceResponse
// @Router      /speech/utterances [get]
func (h *Handlers) GetUtterance(c *gin.Context) {
	if u := h.bridge.Current(userID(c)); u != nil {
		ok(c, http.StatusOK, UtteranceResponse{Speaking: true, MessageID: u.MessageID, Text: u.Text})
		return
	}
	ok(c, http.StatusOK, UtteranceResponse{Speaking: false})
}

// StopUtterance godoc
// @ID          stopUtterance
// @Summary     Stop any speech output
// @Description Stopping an idle user is a no-op.
// @Tags        Speech
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     204  {string}  string "No Content"
// @Router      /speech/utterances [delete]
func (h *Handlers) StopUtterance(c *gin.Context) {
	h.bridge.Stop(userID(c))
	noContent(c)
}

// Capture godoc
// @ID          speechCapture
// @Summary     Single-shot voice capture intake
// @Description Accepts the recognized transcript of one capture. Playback is stopped so
// @Description the microphone never competes with speech output; the capture
// @Description auto-terminates once the transcript is delivered.
// @Tags        Speech
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CaptureRequest  true  "Recognized transcript"
//
// @Success     200  {object}  handlers.CaptureResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /speech/captures [post]
func (h *Handlers) Capture(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid := userID(c)
	if err := h.bridge.StartCapture(uid); err != nil {
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	ok(c, http.StatusOK, CaptureResponse{Transcript: h.bridge.FinishCapture(uid, req.Transcript)})
}
