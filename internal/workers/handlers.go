package workers

import (
	"sort"

	"backend-forestguard/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		projectID := c.Query("project_id")
		if projectID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "project_id required")
		}
		dir, err := svc.LoadWorkers(c.Context(), projectID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		list := make([]Worker, 0, len(dir))
		for _, w := range dir {
			list = append(list, w)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		return c.JSON(list)
	})

	r.Put("/:id/location", authMiddleware, func(c *fiber.Ctx) error {
		var req tracking.LocationPoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.UpdateLocation(c.Context(), c.Params("id"), req); err != nil {
			if errors.Is(err, ErrUnknownWorker) {
				return fiber.NewError(fiber.StatusNotFound, "worker not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
