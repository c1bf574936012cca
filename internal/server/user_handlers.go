package server

import (
	"io"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return models.RespondAppError(c, models.NewUnauthorizedError("Authorization required"))
	}

	user, err := s.userService.GetUserByID(c.Context(), userID)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":       user,
		"avatar_url": user.AvatarURL(),
	})
}

// UpdateMyProfile handles PUT /api/users/me. Accepts JSON for plain field
// updates or multipart form data when a new avatar is included (field name
// "picture", matching the original form).
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return models.RespondAppError(c, models.NewUnauthorizedError("Authorization required"))
	}

	in := service.UpdateProfileInput{UserID: userID}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in.Username = c.FormValue("username")
		in.Email = c.FormValue("email")

		if fileHeader, err := c.FormFile("picture"); err == nil && fileHeader != nil {
			f, err := fileHeader.Open()
			if err != nil {
				return models.RespondAppError(c, models.NewValidationError("Could not read uploaded file"))
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return models.RespondAppError(c, models.NewValidationError("Could not read uploaded file"))
			}
			in.AvatarFilename = fileHeader.Filename
			in.AvatarContent = content
		}
	} else {
		var req updateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
		}
		in.Username = req.Username
		in.Email = req.Email
	}

	user, err := s.userService.UpdateProfile(c.Context(), in)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	middleware.Logger.Info("profile updated", "user_id", user.ID)
	return c.JSON(fiber.Map{
		"message":    "Your account has been updated!",
		"user":       user,
		"avatar_url": user.AvatarURL(),
	})
}

// GetUserProfile handles GET /api/users/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByUsername(c.Context(), c.Params("username"))
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":       user,
		"avatar_url": user.AvatarURL(),
	})
}

// GetUserPosts handles GET /api/users/:username/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	page, pageSize := parsePagination(c)

	result, err := s.postService.ListPosts(c.Context(), service.ListPostsInput{
		Page:     page,
		PageSize: pageSize,
		Username: c.Params("username"),
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}
	return c.JSON(result)
}
