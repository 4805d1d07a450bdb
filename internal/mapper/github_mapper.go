package mapper

import (
	"regexp"
	"strings"

	"github.com/hongdnn/leadsync/internal/model"
)

var ticketKeyRe = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// ExtractTicketKey returns the first tracker issue key found in any of
// the candidate strings, or "".
func ExtractTicketKey(candidates ...string) string {
	for _, text := range candidates {
		if match := ticketKeyRe.FindStringSubmatch(text); match != nil {
			return match[1]
		}
	}
	return ""
}

// ParsePRContext normalizes a code-host pull request webhook payload.
// The ticket key is detected from branch, title, and body in that order.
func ParsePRContext(payload map[string]any) model.PRContext {
	pr := asMap(payload["pull_request"])
	repository := asMap(payload["repository"])
	owner := asMap(repository["owner"])
	head := asMap(pr["head"])
	base := asMap(pr["base"])

	title := asString(pr["title"])
	body := asString(pr["body"])
	branch := asString(head["ref"])

	return model.PRContext{
		Action:    strings.ToLower(asString(payload["action"])),
		Owner:     asString(owner["login"]),
		Repo:      asString(repository["name"]),
		Number:    asInt(pr["number"]),
		HTMLURL:   asString(pr["html_url"]),
		Title:     title,
		Body:      body,
		Branch:    branch,
		BaseSHA:   asString(base["sha"]),
		HeadSHA:   asString(head["sha"]),
		TicketKey: ExtractTicketKey(branch, title, body),
	}
}
