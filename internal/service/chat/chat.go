package chat

import (
	"context"
	"fmt"

	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/connector/httpclient"
)

const slackAPIBaseURL = "https://slack.com/api"

type PostMessageParams struct {
	Channel  string
	Text     string
	ThreadTS string
}

type Service interface {
	PostMessage(ctx context.Context, params PostMessageParams) error
}

type slackService struct {
	http *httpclient.Client
}

func NewSlackService(cfg config.SlackConfig) Service {
	return &slackService{
		http: httpclient.New(slackAPIBaseURL, cfg.BotToken),
	}
}

func (s *slackService) PostMessage(ctx context.Context, params PostMessageParams) error {
	payload := map[string]any{
		"channel": params.Channel,
		"text":    params.Text,
	}
	if params.ThreadTS != "" {
		payload["thread_ts"] = params.ThreadTS
	}

	// Slack reports failures as HTTP 200 with ok=false, so the status
	// code alone proves nothing.
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := s.http.PostJSON(ctx, "/chat.postMessage", payload, &resp); err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("posting slack message: slack api error: %s", resp.Error)
	}
	return nil
}
