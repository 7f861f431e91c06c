package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomdekan/react-auth/internal/auth"
	"github.com/tomdekan/react-auth/internal/dto"
	"github.com/tomdekan/react-auth/internal/service"

	"github.com/gin-gonic/gin"
)

// Sample protected data only a logged-in user can access.
var secretFact = []string{
	"The moment one gives close attention to any thing, even a blade of grass",
	"it becomes a mysterious, awesome, indescribably magnificent world in itself.",
}

// AuthHandler handles CSRF issuance, login, register, logout and current user.
type AuthHandler struct {
	sessions     *auth.Store
	userSvc      *service.UserService
	cookieMaxAge int
}

// NewAuthHandler returns a new AuthHandler. sessionTTL drives the cookie
// Max-Age so the cookie and the Redis entry expire together.
func NewAuthHandler(sessions *auth.Store, userSvc *service.UserService, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		userSvc:      userSvc,
		cookieMaxAge: int(sessionTTL.Seconds()),
	}
}

// SetCSRFToken godoc
// @Summary      Issue a CSRF token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.CSRFTokenResponse
// @Failure      500  {object}  map[string]string
// @Router       /set-csrf-token [get]
func (h *AuthHandler) SetCSRFToken(c *gin.Context) {
	token, err := auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue CSRF token"})
		return
	}
	// Not HttpOnly: browser clients mirror the cookie into the X-CSRFToken header.
	c.SetCookie(auth.CSRFCookieName, token, h.cookieMaxAge, "/", "", false, false)
	c.JSON(http.StatusOK, dto.CSRFTokenResponse{CSRFToken: token})
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// Same body for unknown email and wrong password.
			c.JSON(http.StatusOK, dto.LoginResponse{Success: false, Message: "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	sessionID, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.SetCookie(auth.SessionCookieName, sessionID, h.cookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, dto.LoginResponse{Success: true})
}

// Logout godoc
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(auth.SessionCookieName)
	if err == nil && sessionID != "" {
		_ = h.sessions.Delete(c.Request.Context(), sessionID)
	}
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// CurrentUser godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.UserResponse
// @Failure      401  {object}  map[string]string
// @Router       /user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	userID := auth.UserIDFromContext(c)
	user, err := h.userSvc.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			// Session points at a user that no longer exists.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, dto.UserResponse{
		Username:   user.Username,
		Email:      user.Email,
		SecretFact: secretFact,
	})
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Credentials"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, err := h.userSvc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidInput.Error()})
		case errors.Is(err, service.ErrDuplicateEmail):
			// Business outcome, not a transport error: stays 200.
			c.JSON(http.StatusOK, gin.H{"error": service.ErrDuplicateEmail.Error()})
		case errors.Is(err, service.ErrDuplicateUsername):
			c.JSON(http.StatusOK, gin.H{"error": service.ErrDuplicateUsername.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "User registered successfully"})
}
