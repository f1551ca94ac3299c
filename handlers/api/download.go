package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"msgview/config"
	"msgview/export"
	"msgview/models"
	"msgview/msgfile"
	"msgview/utils"
)

// DownloadHandler handles bulk export requests
type DownloadHandler struct {
	config   *config.Config
	exporter *export.Service
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(cfg *config.Config, exporter *export.Service) *DownloadHandler {
	return &DownloadHandler{
		config:   cfg,
		exporter: exporter,
	}
}

// HandleDownload builds and returns an export payload
func (h *DownloadHandler) HandleDownload(c *fiber.Ctx) error {
	var req models.DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid download request", err)
	}

	if len(req.Filenames) == 0 {
		return utils.BadRequestError("No files specified for download", nil)
	}
	if req.Format == "" {
		req.Format = models.FormatJSON
	}
	if !req.Format.Valid() {
		return utils.BadRequestError("Unknown download format", nil).WithContext("format", string(req.Format))
	}

	payload, err := h.exporter.Build(&req)
	if err != nil {
		var missing *export.MissingFilesError
		if errors.As(err, &missing) {
			return utils.NotFoundError(missing.Error(), nil).WithContext("filenames", missing.Filenames)
		}
		if errors.Is(err, export.ErrPayloadTooLarge) {
			return utils.PayloadTooLargeError("Requested download is too large", err)
		}
		var parseErr *msgfile.ParseError
		if errors.As(err, &parseErr) {
			return utils.InternalServerError("Failed to parse a requested email", err)
		}
		return utils.InternalServerError("Failed to build download", err)
	}

	utils.Log.Info("Export built: files=%d format=%s bytes=%d", len(req.Filenames), req.Format, len(payload.Data))

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+payload.Filename+`"`)
	c.Set(fiber.HeaderContentType, payload.ContentType)
	return c.Send(payload.Data)
}
