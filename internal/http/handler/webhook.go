package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hongdnn/leadsync/internal/http/dto"
	"github.com/hongdnn/leadsync/internal/mapper"
	"github.com/hongdnn/leadsync/internal/service"
)

// WebhookHandler receives issue tracker and code host webhooks and routes
// them to the matching workflow.
type WebhookHandler struct {
	enrichment service.EnrichmentService
	doneScan   service.DoneScanService
	prDescribe service.PRDescribeService
	prLink     service.PRLinkService
}

func NewWebhookHandler(
	enrichment service.EnrichmentService,
	doneScan service.DoneScanService,
	prDescribe service.PRDescribeService,
	prLink service.PRLinkService,
) *WebhookHandler {
	return &WebhookHandler{
		enrichment: enrichment,
		doneScan:   doneScan,
		prDescribe: prDescribe,
		prLink:     prLink,
	}
}

// Jira handles issue events. Tickets moving into a done status get the
// implementation scan; everything else goes through enrichment.
func (h *WebhookHandler) Jira(c *gin.Context) {
	ctx := c.Request.Context()

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.WarnContext(ctx, "invalid jira webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON body."})
		return
	}

	run := h.enrichment.Run
	if mapper.IsDoneStatus(mapper.ParseIssueContext(payload)) {
		run = h.doneScan.Run
	}

	result, err := run(ctx, payload)
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

// GitHub handles pull request events. The description rewrite decides the
// response; the ticket-link pass runs after it and only surfaces through the
// wf5_result field, never as a request failure.
func (h *WebhookHandler) GitHub(c *gin.Context) {
	ctx := c.Request.Context()

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.WarnContext(ctx, "invalid github webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON body."})
		return
	}

	describeResult, err := h.prDescribe.Run(ctx, payload)
	if err != nil {
		renderRunError(c, err, "Workflow 4 failed")
		return
	}

	linkRaw := "skipped:wf5-error"
	if linkResult, err := h.prLink.Run(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "pr ticket link failed", "error", err)
	} else {
		linkRaw = linkResult.Raw
	}

	c.JSON(http.StatusOK, dto.GitHubWebhookResponse{
		Status:    "processed",
		Model:     describeResult.Model,
		Result:    describeResult.Raw,
		WF5Result: linkRaw,
	})
}
