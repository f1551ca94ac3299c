package api

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"msgview/config"
	"msgview/msgfile"
	"msgview/store"
	"msgview/utils"
)

// EmailHandler serves listing, detail, attachment, and stats requests
type EmailHandler struct {
	config *config.Config
	repo   *store.Repository
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(cfg *config.Config, repo *store.Repository) *EmailHandler {
	return &EmailHandler{
		config: cfg,
		repo:   repo,
	}
}

// HandleList returns one page of email summaries
func (h *EmailHandler) HandleList(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c, h.config)
	if err != nil {
		return err
	}

	result, err := h.repo.List(page, pageSize)
	if err != nil {
		return utils.InternalServerError("Failed to list emails", err)
	}
	return c.JSON(result)
}

// HandleDetail returns the fully parsed email for one filename
func (h *EmailHandler) HandleDetail(c *fiber.Ctx) error {
	filename := pathParam(c, "filename")
	if filename == "" {
		return utils.BadRequestError("Filename is required", nil)
	}

	detail, err := h.repo.Get(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.NotFoundError("Email not found", nil).WithContext("filename", filename)
		}
		var parseErr *msgfile.ParseError
		if errors.As(err, &parseErr) {
			return utils.InternalServerError("Failed to parse email", err)
		}
		return utils.InternalServerError("Failed to read email", err)
	}

	// Rendered in the browser; strip anything unsafe first.
	if detail.HTMLBody != "" {
		detail.HTMLBody = utils.SanitizeHTML(detail.HTMLBody)
	}
	return c.JSON(detail)
}

// HandleAttachment streams the raw bytes of one attachment
func (h *EmailHandler) HandleAttachment(c *fiber.Ctx) error {
	filename := pathParam(c, "filename")
	attachmentName := pathParam(c, "name")
	if filename == "" || attachmentName == "" {
		return utils.BadRequestError("Filename and attachment name are required", nil)
	}

	data, err := h.repo.AttachmentData(filename, attachmentName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.NotFoundError("Email not found", nil).WithContext("filename", filename)
		}
		if errors.Is(err, msgfile.ErrAttachmentNotFound) {
			return utils.NotFoundError("Attachment not found", nil).WithContext("attachment", attachmentName)
		}
		return utils.InternalServerError("Failed to read attachment", err)
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+attachmentName+`"`)
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	return c.Send(data)
}

// HandleStats returns folder aggregates
func (h *EmailHandler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.repo.Stats())
}

// pathParam returns a URL-decoded route parameter
func pathParam(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
