package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hongdnn/leadsync/internal/http/dto"
	"github.com/hongdnn/leadsync/internal/service"
)

const triggerTokenHeader = "X-LeadSync-Trigger-Token"

// DigestHandler exposes the manual/scheduled digest trigger. The endpoint
// accepts an optional JSON body with run overrides and is guarded by a shared
// token when one is configured.
type DigestHandler struct {
	digest       service.DigestService
	triggerToken string
}

func NewDigestHandler(digest service.DigestService, triggerToken string) *DigestHandler {
	return &DigestHandler{
		digest:       digest,
		triggerToken: strings.TrimSpace(triggerToken),
	}
}

func (h *DigestHandler) Trigger(c *gin.Context) {
	ctx := c.Request.Context()

	if h.triggerToken != "" && strings.TrimSpace(c.GetHeader(triggerTokenHeader)) != h.triggerToken {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized digest trigger."})
		return
	}

	payload, ok := h.parseBody(c)
	if !ok {
		return
	}
	params, ok := h.paramsFromPayload(c, payload)
	if !ok {
		return
	}

	result, err := h.digest.Run(ctx, params)
	if err != nil {
		renderRunError(c, err, "Crew run failed")
		return
	}

	c.JSON(http.StatusOK, dto.RunResponse{
		Status: "processed",
		Model:  result.Model,
		Result: result.Raw,
	})
}

// parseBody reads the optional request body. No body at all means run with
// defaults; a body that is present must be a JSON object.
func (h *DigestHandler) parseBody(c *gin.Context) (map[string]any, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON body."})
		return nil, false
	}
	if len(body) == 0 {
		return map[string]any{}, true
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON body."})
		return nil, false
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON body must be an object."})
		return nil, false
	}
	return payload, true
}

func (h *DigestHandler) paramsFromPayload(c *gin.Context, payload map[string]any) (service.DigestParams, bool) {
	var params service.DigestParams

	runSource := strings.ToLower(trimmedField(payload, "run_source"))
	if runSource == "" {
		runSource = "manual"
	}
	if runSource != "manual" && runSource != "scheduled" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "run_source must be 'manual' or 'scheduled'."})
		return params, false
	}
	params.RunSource = runSource

	if raw, present := payload["window_minutes"]; present && raw != nil {
		minutes, ok := coerceWindowMinutes(raw)
		if !ok || minutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "window_minutes must be a positive integer."})
			return params, false
		}
		params.WindowMinutes = minutes
	}

	params.BucketStartUTC = trimmedField(payload, "bucket_start_utc")
	params.RepoOwner = trimmedField(payload, "repo_owner")
	params.RepoName = trimmedField(payload, "repo_name")
	return params, true
}

func coerceWindowMinutes(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case string:
		minutes, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return minutes, true
	default:
		return 0, false
	}
}
