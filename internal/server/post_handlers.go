package server

import (
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListPosts handles GET /api/posts
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page, pageSize := parsePagination(c)

	result, err := s.postService.ListPosts(c.Context(), service.ListPostsInput{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}
	return c.JSON(result)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid post id"))
	}

	post, err := s.postService.GetPost(c.Context(), id)
	if err != nil {
		return models.RespondAppError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return models.RespondAppError(c, models.NewUnauthorizedError("Authorization required"))
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(c.Context(), service.CreatePostInput{
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}

	middleware.Logger.Info("post created", "post_id", post.ID, "user_id", userID)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return models.RespondAppError(c, models.NewUnauthorizedError("Authorization required"))
	}

	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid post id"))
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(c.Context(), service.UpdatePostInput{
		UserID:  userID,
		PostID:  id,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return models.RespondAppError(c, models.NewUnauthorizedError("Authorization required"))
	}

	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondAppError(c, models.NewValidationError("Invalid post id"))
	}

	if err := s.postService.DeletePost(c.Context(), service.DeletePostInput{
		UserID: userID,
		PostID: id,
	}); err != nil {
		return models.RespondAppError(c, err)
	}

	middleware.Logger.Info("post deleted", "post_id", id, "user_id", userID)
	return c.JSON(fiber.Map{"message": "Your post has been deleted!"})
}
