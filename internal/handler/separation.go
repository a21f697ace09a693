package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stemsplit/api/internal/model"
	"github.com/stemsplit/api/internal/service"
	"github.com/stemsplit/api/pkg/response"
)

type SeparationHandler struct {
	service   *service.SeparationService
	validator *validator.Validate
}

func NewSeparationHandler(svc *service.SeparationService, v *validator.Validate) *SeparationHandler {
	return &SeparationHandler{
		service:   svc,
		validator: v,
	}
}

// Separate handles POST /api/separate
func (h *SeparationHandler) Separate(c *fiber.Ctx) error {
	var req model.SeparateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Start(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidModel):
			return response.ValidationError(c, "Invalid model", nil)
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Unknown file_id")
		case errors.Is(err, service.ErrAlreadyStarted):
			return response.Conflict(c, "Job already started or completed")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/status/:fileId
func (h *SeparationHandler) Status(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if fileID == "" {
		return response.ValidationError(c, "File ID is required", nil)
	}

	result, err := h.service.Status(fileID)
	if err != nil {
		return response.NotFound(c, "Unknown file_id")
	}

	return response.OK(c, result)
}

// Download handles GET /api/download/:fileId/:stem
func (h *SeparationHandler) Download(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	stem := c.Params("stem")

	path, err := h.service.StemPath(fileID, stem)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStem):
			return response.ValidationError(c, "Invalid stem name", nil)
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Unknown file_id")
		default:
			return response.NotFound(c, "Stem not found")
		}
	}

	c.Attachment(stem + ".wav")
	return c.SendFile(path)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
