// Dashboard HTTP handlers.
//
// Read-only widget endpoints computed from the onboarding profile:
//   - GET /dashboard/bmi       (body mass index + category)
//   - GET /dashboard/bmr       (daily resting calories, Mifflin-St Jeor)
//   - GET /dashboard/gyms      (nearby-gyms map link for the caller's platform)
//   - GET /dashboard/shopping  (fitness-gear shopping links)
//   - GET /dashboard/recipes   (quick recipe cards)
//   - GET /dashboard/workouts  (quick workout cards)
//   - GET /chat/quick-prompts  (canned conversation starters)
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fitbuddy/go-coach-backend/internal/services"
)

// GymsResponse carries the platform-appropriate map link.
type GymsResponse struct {
	URL string `json:"url"`
}

// BMI godoc
// @ID          dashboardBMI
// @Summary     Body mass index widget
// @Tags        Dashboard
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  services.BMIResult
// @Failure     404  {object}  handlers.ErrorResponse  "Not onboarded yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dashboard/bmi [get]
func (h *Handlers) BMI(c *gin.Context) {
	res, err := h.dashSvc.BMI(c.Request.Context(), userID(c))
	if err != nil {
		failDashboard(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// BMR godoc
// @ID          dashboardBMR
// @Summary     Basal metabolic rate widget
// @Tags        Dashboard
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  services.BMRResult
// @Failure     404  {object}  handlers.ErrorResponse  "Not onboarded yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dashboard/bmr [get]
func (h *Handlers) BMR(c *gin.Context) {
	res, err := h.dashSvc.BMR(c.Request.Context(), userID(c))
	if err != nil {
		failDashboard(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Gyms godoc
// @ID          dashboardGyms
// @Summary     Nearby gyms link
// @Description Builds a maps deep link for the caller's platform (ios, android, web).
// @Tags        Dashboard
// @Produce     json
//
// @Param       lat       query  number  true  "Latitude"   example(37.9838)
// @Param       lng       query  number  true  "Longitude"  example(23.7275)
// @Param       platform  query  string  false "ios | android | web (default web)"
//
// @Success     200  {object}  handlers.GymsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /dashboard/gyms [get]
func (h *Handlers) Gyms(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lng are required coordinates")
		return
	}
	ok(c, http.StatusOK, GymsResponse{URL: h.dashSvc.GymsURL(lat, lng, c.Query("platform"))})
}

// Shopping godoc
// @ID          dashboardShopping
// @Summary     Fitness-gear shopping links
// @Tags        Dashboard
// @Produce     json
//
// @Success     200  {array}  services.Link
// @Router      /dashboard/shopping [get]
func (h *Handlers) Shopping(c *gin.Context) {
	ok(c, http.StatusOK, h.dashSvc.ShoppingLinks())
}

// Recipes godoc
// @ID          dashboardRecipes
// @Summary     Quick recipe cards
// @Tags        Dashboard
// @Produce     json
//
// @Success     200  {array}  services.Suggestion
// @Router      /dashboard/recipes [get]
func (h *Handlers) Recipes(c *gin.Context) {
	ok(c, http.StatusOK, h.dashSvc.QuickRecipes())
}

// Workouts godoc
// @ID          dashboardWorkouts
// @Summary     Quick workout cards
// @Tags        Dashboard
// @Produce     json
//
// @Success     200  {array}  services.Suggestion
// @Router      /dashboard/workouts [get]
func (h *Handlers) Workouts(c *gin.Context) {
	ok(c, http.StatusOK, h.dashSvc.QuickWorkouts())
}

// QuickPrompts godoc
// @ID          quickPrompts
// @Summary     Canned conversation starters
// @Tags        Chat
// @Produce     json
//
// @Success     200  {array}  services.QuickPrompt
// @Router      /chat/quick-prompts [get]
func (h *Handlers) QuickPrompts(c *gin.Context) {
	ok(c, http.StatusOK, h.dashSvc.QuickPrompts())
}

func failDashboard(c *gin.Context, err error) {
	if err == services.ErrProfileNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
