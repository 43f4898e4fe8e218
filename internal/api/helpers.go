package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondFailure sends the operation-failed envelope.
func respondFailure(c *gin.Context, status int, reason string) {
	c.JSON(status, gin.H{"success": false, "reason": reason})
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondNotFound sends a 404 with resource not found message.
func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondInternalError sends a 500 with message.
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}
