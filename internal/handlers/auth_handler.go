package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/middleware"
	"pixelfeed/internal/services"
)

// AuthHandler handles HTTP requests for authentication and profiles.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the auth routes. requireAuth guards the
// session-bound endpoints.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/signup", h.HandleSignup)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/google", h.HandleGoogleLogin)
	authRoutes.Get("/me", requireAuth, h.HandleMe)
	authRoutes.Patch("/me", requireAuth, h.HandleUpdateMe)
}

// SignupRequest is the request body for signup.
type SignupRequest struct {
	FullName string `json:"full_name" validate:"omitempty,max=255"`
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Bio      string `json:"bio"`
}

// HandleSignup registers a new user. No session is issued.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(req); err != nil {
		return err
	}

	user, err := h.authService.Signup(services.SignupInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is the session issuance response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleLogin authenticates a user and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(req); err != nil {
		return err
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// GoogleLoginRequest carries the Google-issued credential.
type GoogleLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleGoogleLogin signs a user in with a Google credential, creating or
// linking the local account as needed.
func (h *AuthHandler) HandleGoogleLogin(c *fiber.Ctx) error {
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(req); err != nil {
		return err
	}

	token, err := h.authService.GoogleLogin(c.Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// HandleMe returns the authenticated user's public projection.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.Username(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// HandleUpdateMe applies a partial profile update. Omitted fields are left
// untouched.
func (h *AuthHandler) HandleUpdateMe(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.Username(c))
	if err != nil {
		return err
	}

	var upd services.ProfileUpdate
	if err := c.BodyParser(&upd); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(upd); err != nil {
		return err
	}

	updated, err := h.authService.UpdateProfile(user, upd)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *AuthHandler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		e := validationErrors[0]
		return apperrors.New(apperrors.Validation,
			fmt.Sprintf("field '%s' failed on the '%s' rule", e.Field(), e.Tag()))
	}
	return apperrors.Wrap(apperrors.Validation, "validation failed", err)
}
