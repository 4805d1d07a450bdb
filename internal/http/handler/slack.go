package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hongdnn/leadsync/internal/http/dto"
	"github.com/hongdnn/leadsync/internal/service"
)

// SlackHandler serves the slash command for ticket questions and the
// leader-rule capture command.
type SlackHandler struct {
	slackQA     service.SlackQAService
	leaderRules service.LeaderRuleService
}

func NewSlackHandler(slackQA service.SlackQAService, leaderRules service.LeaderRuleService) *SlackHandler {
	return &SlackHandler{
		slackQA:     slackQA,
		leaderRules: leaderRules,
	}
}

// Command answers "/leadsync TICKET-123 question". Slack posts form data and
// expects an acknowledgement within three seconds, so the form path replies
// immediately and answers in the background; the JSON path is for direct API
// callers and runs synchronously.
func (h *SlackHandler) Command(c *gin.Context) {
	if strings.Contains(c.GetHeader("Content-Type"), "application/x-www-form-urlencoded") {
		h.commandFromForm(c)
		return
	}
	h.commandFromJSON(c)
}

func (h *SlackHandler) commandFromForm(c *gin.Context) {
	if strings.TrimSpace(c.PostForm("ssl_check")) == "1" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Slack 'text' field is empty."})
		return
	}

	ticketKey, question := service.ParseSlackText(text)
	if ticketKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "ticket_key is required."})
		return
	}

	params := service.SlackQAParams{
		TicketKey: ticketKey,
		Question:  question,
		ThreadTS:  strings.TrimSpace(c.PostForm("thread_ts")),
		ChannelID: strings.TrimSpace(c.PostForm("channel_id")),
	}
	go h.answerInBackground(params)

	c.JSON(http.StatusOK, dto.EphemeralResponse{
		ResponseType: "ephemeral",
		Text:         fmt.Sprintf("LeadSync is processing %s and will reply shortly.", ticketKey),
	})
}

func (h *SlackHandler) commandFromJSON(c *gin.Context) {
	ctx := c.Request.Context()

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON body."})
		return
	}

	ticketKey := trimmedField(payload, "ticket_key")
	question := stringify(payload["question"])
	if ticketKey == "" {
		if text := trimmedField(payload, "text"); text != "" {
			ticketKey, question = service.ParseSlackText(text)
		}
	}
	if ticketKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "ticket_key is required."})
		return
	}

	threadTS := trimmedField(payload, "thread_ts")
	if threadTS == "" {
		threadTS = trimmedField(payload, "message_ts")
	}

	result, err := h.slackQA.Run(ctx, service.SlackQAParams{
		TicketKey: ticketKey,
		Question:  question,
		ThreadTS:  threadTS,
		ChannelID: trimmedField(payload, "channel_id"),
	})
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

func (h *SlackHandler) answerInBackground(params service.SlackQAParams) {
	ctx := context.Background()
	if _, err := h.slackQA.Run(ctx, params); err != nil {
		slog.ErrorContext(ctx, "background slack answer failed",
			"ticket", params.TicketKey,
			"error", err)
	}
}

// Prefs stores a leader rule posted through the "/leadsync-pref" command.
func (h *SlackHandler) Prefs(c *gin.Context) {
	ctx := c.Request.Context()

	if strings.TrimSpace(c.PostForm("ssl_check")) == "1" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Rule text is required."})
		return
	}

	if err := h.leaderRules.Save(ctx, text); err != nil {
		if service.IsPrecondition(err) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "leader rule save failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, dto.EphemeralResponse{
		ResponseType: "ephemeral",
		Text:         "Leader rule saved: " + text,
	})
}
