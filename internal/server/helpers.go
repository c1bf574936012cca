package server

import (
	"strconv"

	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parseID parses a numeric path parameter.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+param)
	}
	return uint(id), nil
}

// parsePagination reads page and page_size query params, falling back to
// defaults on anything unparseable.
func parsePagination(c *fiber.Ctx) (page, pageSize int) {
	page = 1
	if raw := c.Query("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}
	pageSize = service.DefaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			pageSize = v
		}
	}
	return page, pageSize
}

// currentUserID reads the authenticated user id placed in locals by
// AuthRequired.
func currentUserID(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals("userID").(uint)
	return uid, ok
}
