package controllers

import (
	"io"

	"academy_go/services/export"
	"academy_go/utils"

	"github.com/gofiber/fiber/v2"
)

// ExportController triggers and serves attendance workbooks.
type ExportController struct {
	exporter *export.Exporter
}

func NewExportController(exporter *export.Exporter) *ExportController {
	return &ExportController{exporter: exporter}
}

// CreateExport exports one day, today when no date is given.
func (ec *ExportController) CreateExport(c *fiber.Ctx) error {
	var req struct {
		Date string `json:"date"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	date := ec.exporter.Today()
	if req.Date != "" {
		d, err := utils.ParseCivilDate(req.Date, date.Location())
		if err != nil {
			return badRequest(c, "Invalid date, expected YYYY-MM-DD")
		}
		date = d
	}

	exp, err := ec.exporter.Export(c.UserContext(), date)
	if err != nil {
		if exp != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Export failed", "export": exp})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(exp)
}

func (ec *ExportController) ListExports(c *fiber.Ctx) error {
	exports, err := ec.exporter.List(c.UserContext(), c.QueryInt("limit", 30))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": exports, "total": len(exports)})
}

func (ec *ExportController) DownloadExport(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "Invalid export ID")
	}
	body, exp, err := ec.exporter.Download(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return respondError(c, err)
	}
	c.Attachment(exp.FileName)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(data)
}
