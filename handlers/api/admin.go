package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"msgview/storage"
	"msgview/utils"
)

// AdminHandler manages the allow-listed domain registry
type AdminHandler struct {
	domains *storage.DomainStore
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(domains *storage.DomainStore) *AdminHandler {
	return &AdminHandler{domains: domains}
}

// DomainRequest is the add-domain payload
type DomainRequest struct {
	Domain string `json:"domain"`
}

// UpdateDomainRequest is the rename payload
type UpdateDomainRequest struct {
	NewDomain string `json:"new_domain"`
}

// HandleList returns all allow-listed domains, newest first
func (h *AdminHandler) HandleList(c *fiber.Ctx) error {
	entries, err := h.domains.List()
	if err != nil {
		return utils.InternalServerError("Failed to read domain registry", err)
	}
	return c.JSON(fiber.Map{"domains": entries})
}

// HandleAdd registers a new domain
func (h *AdminHandler) HandleAdd(c *fiber.Ctx) error {
	var req DomainRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	entry, err := h.domains.Add(req.Domain)
	if err != nil {
		return domainError(err)
	}

	utils.Log.Info("Domain added: %s", entry.Domain)
	return c.Status(201).JSON(fiber.Map{
		"message": "Domain added",
		"domain":  entry.Domain,
	})
}

// HandleUpdate renames an existing domain
func (h *AdminHandler) HandleUpdate(c *fiber.Ctx) error {
	var req UpdateDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	entry, err := h.domains.Rename(pathParam(c, "domain"), req.NewDomain)
	if err != nil {
		return domainError(err)
	}

	utils.Log.Info("Domain updated: %s", entry.Domain)
	return c.JSON(fiber.Map{
		"message": "Domain updated",
		"domain":  entry.Domain,
	})
}

// HandleDelete removes a domain
func (h *AdminHandler) HandleDelete(c *fiber.Ctx) error {
	domain := pathParam(c, "domain")
	if err := h.domains.Delete(domain); err != nil {
		return domainError(err)
	}

	utils.Log.Info("Domain deleted: %s", domain)
	return c.JSON(fiber.Map{
		"message": "Domain deleted",
		"domain":  domain,
	})
}

// domainError maps registry errors onto the HTTP taxonomy
func domainError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidDomain):
		return utils.BadRequestError("Invalid domain name. Use a valid domain like example.com", err)
	case errors.Is(err, storage.ErrDomainExists):
		return utils.ConflictError("Domain already exists", err)
	case errors.Is(err, storage.ErrDomainNotFound):
		return utils.NotFoundError("Domain not found", err)
	default:
		return utils.InternalServerError("Failed to update domain registry", err)
	}
}
