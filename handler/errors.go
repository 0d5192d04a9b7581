package handler

import (
	"net/http"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
)

// writeError renders err as the JSON error envelope, mapping the service
// error kind to an HTTP status. Unclassified errors surface as internal.
func writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindTransient:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}
