package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hongdnn/leadsync/internal/service"
)

// renderRunError maps a workflow error onto the wire. Precondition failures
// are caller mistakes and return 400 with the message as-is; anything else is
// a 500 tagged with the given label.
func renderRunError(c *gin.Context, err error, label string) {
	if service.IsPrecondition(err) {
		slog.WarnContext(c.Request.Context(), "workflow precondition failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	slog.ErrorContext(c.Request.Context(), "workflow run failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("%s: %v", label, err)})
}

// stringify renders loosely typed webhook fields as trimmed-friendly strings.
// Nils become empty rather than the literal "<nil>".
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func trimmedField(payload map[string]any, key string) string {
	return strings.TrimSpace(stringify(payload[key]))
}
