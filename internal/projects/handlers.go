package projects

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Project
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if userID, ok := c.Locals("user_id").(string); ok && req.CreatedBy == "" {
			req.CreatedBy = userID
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		project, err := svc.CreateProject(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(project)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		project, err := svc.GetProject(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "project not found")
		}
		return c.JSON(project)
	})

	r.Post("/:id/workers", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}
		a, err := svc.AssignWorker(c.Context(), c.Params("id"), body.UserID, body.Role)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidRole):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, ErrUnknownWorker):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	r.Delete("/:id/workers/:userID", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.RemoveWorker(c.Context(), c.Params("id"), c.Params("userID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/workers", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.Workers(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if list == nil {
			list = []Assignment{}
		}
		return c.JSON(list)
	})
}
