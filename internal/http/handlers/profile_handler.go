// Profile and preference HTTP handlers.
//
// This file exposes REST endpoints for onboarding and per-user settings:
//   - POST   /profile      (onboard: create the one immutable profile)
//   - GET    /profile      (fetch)
//   - DELETE /profile      (full reset: profile, sessions, messages, preferences)
//   - GET    /preferences  (active session + go-to-chat flag)
//   - PUT    /preferences  (update go-to-chat flag)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/services"
	"github.com/fitbuddy/go-coach-backend/internal/speech"
)

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for profiles, sessions, messages, speech,
// and dashboard widgets. It holds the application services plus the shared DB
// handle used for conditional responses (ETags) and idempotency records.
type Handlers struct {
	db         *gorm.DB
	profileSvc *services.ProfileService
	prefSvc    *services.PreferenceService
	sessionSvc *services.SessionService
	chatSvc    *services.ChatService
	dashSvc    *services.DashboardService
	bridge     *speech.Bridge
}

// New constructs and returns a Handlers instance bound to the given services.
func New(
	db *gorm.DB,
	profileSvc *services.ProfileService,
	prefSvc *services.PreferenceService,
	sessionSvc *services.SessionService,
	chatSvc *services.ChatService,
	dashSvc *services.DashboardService,
	bridge *speech.Bridge,
) *Handlers {
	return &Handlers{
		db:         db,
		profileSvc: profileSvc,
		prefSvc:    prefSvc,
		sessionSvc: sessionSvc,
		chatSvc:    chatSvc,
		dashSvc:    dashSvc,
		bridge:     bridge,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateProfileRequest is the JSON payload for onboarding.
type CreateProfileRequest struct {
	Name     string  `json:"name"      binding:"required,min=1,max=255" example:"Maria"`
	Age      int     `json:"age"       binding:"required,gt=0"          example:"29"`
	Gender   string  `json:"gender"    binding:"required"               example:"female"`
	HeightCM float64 `json:"height_cm" binding:"required,gt=0"          example:"168"`
	WeightKG float64 `json:"weight_kg" binding:"required,gt=0"          example:"62"`
	Goal     string  `json:"goal"      binding:"required,min=1,max=255" example:"Build muscle"`
	Country  string  `json:"country"   binding:"required,min=1,max=128" example:"Greece"`
}

// UpdatePreferencesRequest is the JSON payload for PUT /preferences.
type UpdatePreferencesRequest struct {
	// GoToChat makes the app open directly on the chat view.
	GoToChat bool `json:"go_to_chat" example:"true"`
}

//
// Handlers
//

// CreateProfile godoc
// @ID          createProfile
// @Summary     Onboard the current user
// @Description Creates the user's profile. Profiles are immutable: a second attempt returns 409.
// @Tags        Profile
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateProfileRequest  true  "Onboarding payload"
//
// @Success     201  {object}  domain.UserProfile
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Profile already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [post]
func (h *Handlers) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.profileSvc.Create(c.Request.Context(), userID(c), services.ProfileInput{
		Name:     req.Name,
		Age:      req.Age,
		Gender:   req.Gender,
		HeightCM: req.HeightCM,
		WeightKG: req.WeightKG,
		Goal:     req.Goal,
		Country:  req.Country,
	})
	if err != nil {
		switch err {
		case services.ErrProfileExists:
			fail(c, http.StatusConflict, ErrCodeProfileExists, "profile already exists")
		case services.ErrInvalidProfile:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile input")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Fetch the current user's profile
// @Tags        Profile
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  domain.UserProfile
// @Failure     404  {object}  handlers.ErrorResponse  "Not onboarded yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profileSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		if err == services.ErrProfileNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// ResetProfile godoc
// @ID          resetProfile
// @Summary     Full account reset
// @Description Deletes the profile plus every session, message, and preference the user owns.
// @Tags        Profile
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     204  {string}  string "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [delete]
func (h *Handlers) ResetProfile(c *gin.Context) {
	if err := h.profileSvc.Reset(c.Request.Context(), userID(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	h.bridge.Stop(userID(c))
	noContent(c)
}

// GetPreferences godoc
// @ID          getPreferences
// @Summary     Fetch per-user settings
// @Tags        Preferences
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  domain.Preference
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /preferences [get]
func (h *Handlers) GetPreferences(c *gin.Context) {
	pref, err := h.prefSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, pref)
}

// UpdatePreferences godoc
// @ID          updatePreferences
// @Summary     Update per-user settings
// @Description Currently covers the go-to-chat flag; the active session is managed via /sessions.
// @Tags        Preferences
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.UpdatePreferencesRequest  true  "Settings payload"
//
// @Success     200  {object}  domain.Preference
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /preferences [put]
func (h *Handlers) UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	pref, err := h.prefSvc.SetGoToChat(c.Request.Context(), userID(c), req.GoToChat)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, pref)
}
