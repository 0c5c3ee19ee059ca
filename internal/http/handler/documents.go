package handler

import (
	"encoding/json"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"casedocs/internal/http/middleware"
	"casedocs/internal/model"
	"casedocs/internal/service"
)

// linkResponse is the body of both signed URL endpoints.
type linkResponse struct {
	URL       string    `json:"url"`
	ExpiresOn time.Time `json:"expiresOn"`
}

type updateDocumentRequest struct {
	OriginalFileName     *string   `json:"originalFileName"`
	Category             *string   `json:"category"`
	Description          *string   `json:"description"`
	Tags                 *[]string `json:"tags"`
	RelatedDocuments     *[]string `json:"relatedDocuments"`
	ConfidentialityLevel *string   `json:"confidentialityLevel"`
	UpdatedBy            string    `json:"updatedBy"`
}

type approveRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

type archiveRequest struct {
	IsArchived *bool  `json:"isArchived"`
	UpdatedBy  string `json:"updatedBy"`
}

// actorFrom prefers an explicit form or body value, then the token identity.
func actorFrom(c *fiber.Ctx, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		return claims.Actor()
	}
	return ""
}

// clientID copies the :clientId path parameter. Fiber's values alias a
// reused request buffer and these strings reach spans exported later.
func clientID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("clientId"))
}

// documentID validates and copies the :documentId path parameter.
func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("documentId")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return utils.CopyString(id), true
}

// parseTTL reads ttl as whole seconds or a Go duration. Empty means the server default.
func parseTTL(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(raw)
	return d, err == nil
}

// decodeBody unmarshals an optional JSON body. An empty body leaves dst untouched.
func decodeBody(c *fiber.Ctx, dst any) bool {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	return json.Unmarshal(body, dst) == nil
}

func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// PresignDownloadURL godoc
// @Summary      Signed URL for a storage key
// @Tags         documents
// @Produce      json
// @Param        key  query     string  true   "Storage key"
// @Param        ttl  query     string  false  "Lifetime in seconds or as a duration"
// @Success      200  {object}  linkResponse
// @Failure      400  {object}  errorPayload
// @Router       /documents/download-url [get]
func PresignDownloadURL(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ttl, ok := parseTTL(c.Query("ttl"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "invalid ttl")
		}
		link, err := svc.PresignKey(c.UserContext(), utils.CopyString(c.Query("key")), ttl)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(linkResponse{URL: link.URL, ExpiresOn: link.ExpiresAt})
	}
}

// ListDocuments godoc
// @Summary      List a client's documents
// @Description  Newest first. The total row count is returned in X-Total-Count.
// @Tags         documents
// @Produce      json
// @Param        clientId    path      string  true   "Client ID"
// @Param        category    query     string  false  "Category"
// @Param        isArchived  query     bool    false  "Archive flag"
// @Param        limit       query     int     false  "Page size"
// @Param        offset      query     int     false  "Page offset"
// @Success      200  {array}   model.Document
// @Failure      400  {object}  errorPayload
// @Router       /documents/{clientId} [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f model.DocumentFilter
		if raw := c.Query("category"); raw != "" {
			cat, ok := model.ParseCategory(raw)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "invalid category")
			}
			f.Category = &cat
		}
		if raw := c.Query("isArchived"); raw != "" {
			archived, err := strconv.ParseBool(raw)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_IS_ARCHIVED", "invalid isArchived")
			}
			f.IsArchived = &archived
		}
		var err error
		if f.Limit, err = strconv.Atoi(c.Query("limit", "0")); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		if f.Offset, err = strconv.Atoi(c.Query("offset", "0")); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), clientID(c), f)
		if err != nil {
			return respondError(c, err)
		}
		items := res.Items
		if items == nil {
			items = []model.Document{}
		}
		c.Set("X-Total-Count", strconv.Itoa(res.Total))
		return c.JSON(items)
	}
}

// UploadDocument godoc
// @Summary      Upload a document
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        clientId              path      string  true   "Client ID"
// @Param        file                  formData  file    true   "Document content"
// @Param        category              formData  string  true   "Category"
// @Param        description           formData  string  false  "Description"
// @Param        confidentialityLevel  formData  string  false  "Low, Medium or High"
// @Param        tags                  formData  string  false  "JSON array or comma-separated"
// @Param        relatedDocuments      formData  string  false  "JSON array or comma-separated"
// @Param        uploadedBy            formData  string  false  "Uploader"
// @Success      200  {object}  model.Document
// @Failure      400  {object}  errorPayload
// @Failure      413  {object}  errorPayload
// @Router       /documents/{clientId}/upload [post]
// @Router       /documents/{clientId}/note-upload [post]
// @Router       /clients/{clientId}/documents [post]
func UploadDocument(svc service.DocumentService, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if exceedsUploadCeiling(c, maxBytes) {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "file exceeds the size limit")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			ClientID:             clientID(c),
			File:                 f,
			FileName:             fh.Filename,
			MimeType:             fh.Header.Get(fiber.HeaderContentType),
			Size:                 fh.Size,
			MaxBytes:             maxBytes,
			Category:             c.FormValue("category"),
			Description:          c.FormValue("description"),
			ConfidentialityLevel: c.FormValue("confidentialityLevel"),
			Tags:                 service.ParseTags(c.FormValue("tags")),
			RelatedDocuments:     service.ParseTags(c.FormValue("relatedDocuments")),
			Actor:                actorFrom(c, c.FormValue("uploadedBy")),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(doc)
	}
}

// multipartOverhead is the slack allowed on top of a route's file ceiling
// for boundaries, part headers and the metadata fields.
const multipartOverhead = 64 << 10

// exceedsUploadCeiling rejects a declared Content-Length that cannot fit the
// route's ceiling before the multipart form is parsed.
func exceedsUploadCeiling(c *fiber.Ctx, maxBytes int64) bool {
	if maxBytes <= 0 {
		return false
	}
	n := c.Request().Header.ContentLength()
	return n > 0 && int64(n) > maxBytes+multipartOverhead
}

// UpdateDocument godoc
// @Summary      Update document metadata
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        documentId  path      string                 true  "Document ID"
// @Param        body        body      updateDocumentRequest  true  "Fields to change"
// @Success      200  {object}  model.Document
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /documents/{documentId} [put]
func UpdateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req updateDocumentRequest
		if !decodeBody(c, &req) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		}

		patch := model.DocumentPatch{
			OriginalFileName: req.OriginalFileName,
			Description:      req.Description,
			Tags:             req.Tags,
			RelatedDocuments: req.RelatedDocuments,
		}
		if req.Category != nil {
			cat, ok := model.ParseCategory(*req.Category)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "invalid category")
			}
			patch.Category = &cat
		}
		if req.ConfidentialityLevel != nil {
			lvl, ok := model.ParseConfidentialityLevel(*req.ConfidentialityLevel)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CONFIDENTIALITY_LEVEL", "invalid confidentiality level")
			}
			patch.ConfidentialityLevel = &lvl
		}

		doc, err := svc.UpdateMetadata(c.UserContext(), id, patch, actorFrom(c, req.UpdatedBy))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument godoc
// @Summary      Delete a document
// @Tags         documents
// @Produce      json
// @Param        documentId  path      string  true  "Document ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  errorPayload
// @Router       /documents/{documentId} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "document deleted", "documentId": id})
	}
}

// DownloadDocument godoc
// @Summary      Download document content
// @Tags         documents
// @Produce      octet-stream
// @Param        documentId  path      string  true  "Document ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  errorPayload
// @Failure      409  {object}  errorPayload
// @Router       /documents/{documentId}/download [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		dl, err := svc.Download(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}

		ct := dl.MimeType
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, contentDisposition(dl.FileName))
		size := -1
		if dl.Size >= 0 {
			size = int(dl.Size)
		}
		// fasthttp closes the body once the response is written.
		return c.SendStream(dl.Body, size)
	}
}

// DocumentLink godoc
// @Summary      Signed URL for a document
// @Tags         documents
// @Produce      json
// @Param        documentId  path      string  true   "Document ID"
// @Param        ttl         query     string  false  "Lifetime in seconds or as a duration"
// @Success      200  {object}  linkResponse
// @Failure      404  {object}  errorPayload
// @Failure      409  {object}  errorPayload
// @Router       /documents/{documentId}/link [get]
func DocumentLink(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		ttl, ok := parseTTL(c.Query("ttl"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "invalid ttl")
		}
		link, err := svc.GenerateDownloadLink(c.UserContext(), id, ttl)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(linkResponse{URL: link.URL, ExpiresOn: link.ExpiresAt})
	}
}

// CategorySummary godoc
// @Summary      Non-archived document count per category
// @Tags         documents
// @Produce      json
// @Param        clientId  path     string  true  "Client ID"
// @Success      200  {array}  model.CategoryCount
// @Router       /documents/{clientId}/categories [get]
func CategorySummary(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := svc.CategorySummary(c.UserContext(), clientID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(counts)
	}
}

// DocumentSummary godoc
// @Summary      Aggregate statistics for a client
// @Tags         documents
// @Produce      json
// @Param        clientId  path      string  true  "Client ID"
// @Success      200  {object}  model.DocumentSummary
// @Router       /documents/{clientId}/summary [get]
func DocumentSummary(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Summary(c.UserContext(), clientID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(sum)
	}
}

// ApproveDocument godoc
// @Summary      Approve a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        documentId  path      string          true   "Document ID"
// @Param        body        body      approveRequest  false  "Approver"
// @Success      200  {object}  model.Document
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /documents/{documentId}/approve [post]
func ApproveDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req approveRequest
		if !decodeBody(c, &req) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		}
		doc, err := svc.Approve(c.UserContext(), id, actorFrom(c, req.ApprovedBy))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(doc)
	}
}

// ArchiveDocument godoc
// @Summary      Archive or restore a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        documentId  path      string          true  "Document ID"
// @Param        body        body      archiveRequest  true  "Archive flag"
// @Success      200  {object}  model.Document
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /documents/{documentId}/archive [post]
func ArchiveDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req archiveRequest
		if !decodeBody(c, &req) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		}
		if req.IsArchived == nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "isArchived is required")
		}
		doc, err := svc.SetArchived(c.UserContext(), id, *req.IsArchived, actorFrom(c, req.UpdatedBy))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(doc)
	}
}
