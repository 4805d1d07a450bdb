package router

import (
	"github.com/gin-gonic/gin"

	"github.com/hongdnn/leadsync/internal/http/handler"
	"github.com/hongdnn/leadsync/internal/service"
)

// Config carries the per-endpoint settings the handlers need beyond their
// services.
type Config struct {
	TriggerToken string
}

// SetupRoutes registers every endpoint on the engine.
func SetupRoutes(router *gin.Engine, services *service.Services, cfg Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := handler.NewWebhookHandler(
		services.Enrichment(),
		services.DoneScan(),
		services.PRDescribe(),
		services.PRLink(),
	)
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/jira", webhookHandler.Jira)
		webhooks.POST("/github", webhookHandler.GitHub)
	}

	digestHandler := handler.NewDigestHandler(services.Digest(), cfg.TriggerToken)
	router.POST("/digest/trigger", digestHandler.Trigger)

	slackHandler := handler.NewSlackHandler(services.SlackQA(), services.LeaderRules())
	slack := router.Group("/slack")
	{
		slack.POST("/commands", slackHandler.Command)
		slack.POST("/prefs", slackHandler.Prefs)
	}
}
