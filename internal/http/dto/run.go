package dto

// RunResponse is the success payload for endpoints that execute a single
// workflow run.
type RunResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Result string `json:"result"`
}

// GitHubWebhookResponse reports the PR description run plus the outcome of
// the follow-up ticket-link run, which never fails the request.
type GitHubWebhookResponse struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	Result    string `json:"result"`
	WF5Result string `json:"wf5_result"`
}

// EphemeralResponse is the immediate acknowledgement Slack renders to the
// user who invoked a slash command.
type EphemeralResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}
