package server

import (
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.authService.Register(c.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}

	middleware.Logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Your account has been created! You are now able to log in",
		"user":    user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondAppError(c, models.NewValidationError("Email and password are required"))
	}

	session, user, err := s.authService.Login(c.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		middleware.Logger.Warn("login failed", "email", req.Email, "ip", c.IP())
		return models.RespondAppError(c, err)
	}

	middleware.Logger.Info("user logged in", "user_id", user.ID)
	return c.JSON(fiber.Map{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       user,
	})
}

// Logout handles POST /api/auth/logout. The session's jti is denylisted until
// the token would have expired anyway.
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	expiresAt, _ := c.Locals("tokenExpiresAt").(time.Time)

	s.authService.Logout(c.Context(), jti, expiresAt)

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RequestPasswordReset handles POST /api/auth/reset-password
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req resetRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondAppError(c, err)
	}
	if user == nil {
		// The original told the user outright; this is a deliberate
		// account-existence disclosure carried over as-is.
		return models.RespondAppError(c,
			models.NewValidationError("There is no account with that email. You must register first."))
	}

	// Delivery failures are logged and counted inside the notifier; the
	// client still gets an accepted response.
	_ = s.notifier.SendPasswordReset(c.Context(), user)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "An email has been sent with instructions to reset your password.",
	})
}

// ResetPassword handles POST /api/auth/reset-password/:token
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}

	user := s.authService.VerifyResetToken(c.Context(), c.Params("token"))
	if user == nil {
		return models.RespondAppError(c,
			models.NewValidationError("That is an invalid or expired token"))
	}

	if err := s.authService.ResetPassword(c.Context(), user, req.Password); err != nil {
		return models.RespondAppError(c, err)
	}

	observability.PasswordResetsCompleted.Inc()
	middleware.Logger.Info("password reset completed", "user_id", user.ID)
	return c.JSON(fiber.Map{
		"message": "Your password has been updated! You are now able to log in",
	})
}
