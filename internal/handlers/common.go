package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bkaraoglu/timberline-api/internal/dto"
)

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.Fail(message))
}

func internalError(c *fiber.Ctx, err error) error {
	slog.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.Fail("Internal server error"))
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
