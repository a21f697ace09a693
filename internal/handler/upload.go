package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stemsplit/api/internal/service"
	"github.com/stemsplit/api/pkg/response"
)

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "No file provided", nil)
	}
	if file.Filename == "" {
		return response.ValidationError(c, "Empty filename", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Save(c.Context(), file.Filename, file.Size, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedType):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, service.ErrFileTooLarge):
			return response.PayloadTooLarge(c, "File too large (max 200 MB)")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Created(c, result)
}
