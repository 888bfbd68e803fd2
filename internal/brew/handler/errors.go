package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/brew/service"
	"github.com/slidecoffee/brew-service/internal/pipeline"
	"github.com/slidecoffee/brew-service/internal/quota"
	"github.com/slidecoffee/brew-service/internal/runs"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

// writeError maps domain errors onto JSON responses.
func writeError(c *gin.Context, err error) {
	var (
		rej    *quota.Rejection
		denied *repository.AccessError
	)
	switch {
	case errors.As(err, &rej):
		c.JSON(http.StatusForbidden, rej)
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	case errors.Is(err, pipeline.ErrInvalidRequest), errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": detail(err)})
	case errors.Is(err, pipeline.ErrNoOutline):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No outline found in draft"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Outline draft not found"})
	case errors.Is(err, runs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, pipeline.ErrDraftBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Draft is already being generated or is completed"})
	case errors.Is(err, service.ErrDraftLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Draft can no longer be edited"})
	case errors.Is(err, service.ErrOutlineFailed):
		logger.Warnf("outline request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate outline", "message": err.Error()})
	default:
		logger.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Failed to process request"})
	}
}

// detail drops the sentinel prefix from a wrapped validation error.
func detail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{pipeline.ErrInvalidRequest, service.ErrInvalidInput} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
