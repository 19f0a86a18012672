package uploads

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/server/respond"
)

// multipart overhead allowed on top of the document itself
const formOverheadBytes = 1 << 20

// Handler wires upload routes to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.GET("/file-url", h.fileURL)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+formOverheadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "file_too_large", ErrTooLarge.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file uploaded", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	sess, err := h.Svc.Upload(c.Request.Context(), Input{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		PhoneNumber: c.PostForm("phoneNumber"),
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusBadRequest, "file_too_large", ErrTooLarge.Error(), nil)
		case errors.Is(err, ErrInvalidFile):
			respond.Error(c, http.StatusBadRequest, "invalid_file", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload file", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"success":  true,
		"message":  "File uploaded successfully",
		"uploadId": sess.ID,
	})
}

func (h *Handler) fileURL(c *gin.Context) {
	url, ttl, err := h.Svc.FileURL(c.Request.Context(), c.Query("id"))
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "id is required", nil)
		case errors.Is(err, sessions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create file url", nil)
		}
		return
	}

	respond.Data(c, gin.H{
		"url":              url,
		"expiresInSeconds": int64(ttl.Seconds()),
	})
}
