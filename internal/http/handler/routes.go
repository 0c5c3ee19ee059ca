package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"casedocs/internal/config"
	"casedocs/internal/service"
)

// RouteOptions controls the security and limits of the registered routes.
type RouteOptions struct {
	// Authenticate guards every document route. Nil leaves them open.
	Authenticate fiber.Handler
	// Approver additionally guards the approval route.
	Approver fiber.Handler
	Upload   config.UploadConfig
	// ExposeErrorDetails renders internal error causes in error bodies.
	ExposeErrorDetails bool
}

func (o RouteOptions) withDefaults() RouteOptions {
	if o.Upload.MaxDocumentBytes <= 0 {
		o.Upload.MaxDocumentBytes = 100 * config.MB
	}
	if o.Upload.MaxNoteBytes <= 0 {
		o.Upload.MaxNoteBytes = 50 * config.MB
	}
	if o.Upload.MaxClientDocumentBytes <= 0 {
		o.Upload.MaxClientDocumentBytes = 15 * config.MB
	}
	return o
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, opts RouteOptions) {
	opts = opts.withDefaults()

	if opts.ExposeErrorDetails {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals(exposeDetailsLocalKey, true)
			return c.Next()
		})
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessCheck())

	guard := func(h ...fiber.Handler) []fiber.Handler {
		out := make([]fiber.Handler, 0, len(h)+1)
		if opts.Authenticate != nil {
			out = append(out, opts.Authenticate)
		}
		for _, fn := range h {
			if fn != nil {
				out = append(out, fn)
			}
		}
		return out
	}

	docs := app.Group("/documents")
	// Registered before /:clientId so "download-url" is not taken for a client id.
	docs.Get("/download-url", guard(PresignDownloadURL(docSvc))...)
	docs.Get("/:clientId", guard(ListDocuments(docSvc))...)
	docs.Get("/:clientId/categories", guard(CategorySummary(docSvc))...)
	docs.Get("/:clientId/summary", guard(DocumentSummary(docSvc))...)
	docs.Post("/:clientId/upload", guard(UploadDocument(docSvc, opts.Upload.MaxDocumentBytes))...)
	docs.Post("/:clientId/note-upload", guard(UploadDocument(docSvc, opts.Upload.MaxNoteBytes))...)
	docs.Put("/:documentId", guard(UpdateDocument(docSvc))...)
	docs.Delete("/:documentId", guard(DeleteDocument(docSvc))...)
	docs.Get("/:documentId/download", guard(DownloadDocument(docSvc))...)
	docs.Get("/:documentId/link", guard(DocumentLink(docSvc))...)
	docs.Post("/:documentId/approve", guard(opts.Approver, ApproveDocument(docSvc))...)
	docs.Post("/:documentId/archive", guard(ArchiveDocument(docSvc))...)

	app.Post("/clients/:clientId/documents", guard(UploadDocument(docSvc, opts.Upload.MaxClientDocumentBytes))...)
}

// HealthCheck godoc
// @Summary      Readiness check
// @Description  Checks database connectivity.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  errorPayload
// @Router       /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessCheck godoc
// @Summary  Liveness check
// @Tags     health
// @Success  200
// @Router   /healthz [get]
func LivenessCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
