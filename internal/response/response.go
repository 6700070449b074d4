package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limaJavier/timetabler/internal/apperrors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data  any              `json:"data,omitempty"`
	Error *apperrors.Error `json:"error,omitempty"`
	Meta  map[string]any   `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data any, meta ...map[string]any) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data any, meta ...map[string]any) {
	JSON(c, http.StatusCreated, data, meta...)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}
