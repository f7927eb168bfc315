package tracking

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type pointRequest struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/projects/:projectID/points", authMiddleware, func(c *fiber.Ctx) error {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			req.UserID = userID
		}
		if req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}

		result, err := svc.AppendPoint(c.Context(), req.UserID, c.Params("projectID"), LocationPoint{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Timestamp: req.Timestamp,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidPoint) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	r.Get("/projects/:projectID/documents", authMiddleware, func(c *fiber.Ctx) error {
		date, err := svc.ParseDate(c.Query("date"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		docs, err := svc.Documents(c.Context(), c.Params("projectID"), date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if docs == nil {
			docs = []PathDocument{}
		}
		return c.JSON(docs)
	})

	r.Get("/projects/:projectID/users/:userID/document", authMiddleware, func(c *fiber.Ctx) error {
		date, err := svc.ParseDate(c.Query("date"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		doc, err := svc.Document(c.Context(), c.Params("projectID"), c.Params("userID"), date)
		if err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "path document not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(doc)
	})
}
