package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/middleware"
	"pixelfeed/internal/services"
)

// PostHandler handles HTTP requests for the posts surface.
type PostHandler struct {
	postService *services.PostService
	authService *services.AuthService
	validate    *validator.Validate
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(postService *services.PostService, authService *services.AuthService) *PostHandler {
	return &PostHandler{
		postService: postService,
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the post routes. Static paths go first so they
// are not swallowed by the :id parameter routes.
func (h *PostHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	postRoutes := router.Group("/posts")
	postRoutes.Get("/", h.HandleList)
	postRoutes.Post("/presigned-url", requireAuth, h.HandlePresignedURL)
	postRoutes.Post("/confirm-upload", requireAuth, h.HandleConfirmUpload)
	postRoutes.Post("/upload", requireAuth, h.HandleUpload)
	postRoutes.Get("/:id", h.HandleGetByID)
	postRoutes.Post("/:id/view", h.HandleView)
	postRoutes.Post("/:id/download", h.HandleDownload)
	postRoutes.Delete("/:id", requireAuth, h.HandleDelete)
}

// HandleList returns a newest-first page of the feed.
func (h *PostHandler) HandleList(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 20)

	items, err := h.postService.List(skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// HandleGetByID returns one post.
func (h *PostHandler) HandleGetByID(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return err
	}

	item, err := h.postService.GetByID(id)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// PresignedURLRequest is the request body for a direct-upload ticket.
type PresignedURLRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

// HandlePresignedURL issues a presigned S3 PUT ticket so the client can
// upload directly, bypassing the service's body size limits.
func (h *PostHandler) HandlePresignedURL(c *fiber.Ctx) error {
	var req PresignedURLRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(req); err != nil {
		return err
	}

	ticket, err := h.postService.PresignUpload(c.Context(), req.Filename, req.ContentType)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// ConfirmUploadRequest is the request body confirming a direct upload.
type ConfirmUploadRequest struct {
	ImageURL string   `json:"image_url" validate:"required,url"`
	Title    string   `json:"title"`
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
}

// HandleConfirmUpload creates the post record after the client uploaded
// directly to storage.
func (h *PostHandler) HandleConfirmUpload(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.Username(c))
	if err != nil {
		return err
	}

	var req ConfirmUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.Validation, "invalid request body", err)
	}
	if err := h.validateStruct(req); err != nil {
		return err
	}

	item, err := h.postService.CreateFromUpload(user, services.CreatePostInput{
		ImageURL: req.ImageURL,
		Title:    req.Title,
		Caption:  req.Caption,
		Tags:     req.Tags,
	})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// HandleUpload accepts a multipart image upload through the service. Large
// files should use the presigned path instead.
func (h *PostHandler) HandleUpload(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.Username(c))
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.New(apperrors.Validation, "no file provided")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "failed to open uploaded file", err)
	}
	defer file.Close()

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	item, err := h.postService.Upload(c.Context(), user, file, fileHeader.Size,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"),
		services.CreatePostInput{
			Title:   c.FormValue("title"),
			Caption: c.FormValue("caption"),
			Tags:    tags,
		})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// HandleView bumps the view counter.
func (h *PostHandler) HandleView(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return err
	}

	views, err := h.postService.IncrementViews(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"views": views})
}

// HandleDownload bumps the download counter.
func (h *PostHandler) HandleDownload(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return err
	}

	downloads, err := h.postService.IncrementDownloads(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"downloads": downloads})
}

// HandleDelete removes a post. Owner only.
func (h *PostHandler) HandleDelete(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.Username(c))
	if err != nil {
		return err
	}

	id, err := parsePostID(c)
	if err != nil {
		return err
	}

	if err := h.postService.Delete(c.Context(), id, user.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "post deleted successfully"})
}

func parsePostID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.New(apperrors.NotFound, "post not found")
	}
	return uint(id), nil
}

func (h *PostHandler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		e := validationErrors[0]
		return apperrors.New(apperrors.Validation,
			fmt.Sprintf("field '%s' failed on the '%s' rule", e.Field(), e.Tag()))
	}
	return apperrors.Wrap(apperrors.Validation, "validation failed", err)
}
