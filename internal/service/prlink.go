package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hongdnn/leadsync/internal/mapper"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/codehost"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const noTicketWarning = "No Jira ticket detected. Please add LEADS-XXX to the PR title."

var prLinkActions = map[string]bool{"opened": true, "reopened": true}

// PRLinkService links freshly opened pull requests to their ticket: a
// link comment on the issue plus a transition to the first "in review"
// status. Pull requests without a detectable key get a warning comment
// on the code host instead.
type PRLinkService interface {
	Run(ctx context.Context, payload map[string]any) (*model.RunResult, error)
}

type prLinkService struct {
	tracker issue_tracker.IssueTrackerService
	code    codehost.Client
	logger  *slog.Logger
}

func NewPRLinkService(tracker issue_tracker.IssueTrackerService, code codehost.Client, logger *slog.Logger) PRLinkService {
	if logger == nil {
		logger = slog.Default()
	}
	return &prLinkService{tracker: tracker, code: code, logger: logger}
}

func (s *prLinkService) Run(ctx context.Context, payload map[string]any) (*model.RunResult, error) {
	pr := mapper.ParsePRContext(payload)
	if !prLinkActions[pr.Action] {
		return &model.RunResult{Raw: fmt.Sprintf("skipped: action '%s'", pr.Action), Model: ruleEngineModel}, nil
	}
	if pr.Number == 0 || pr.Owner == "" || pr.Repo == "" {
		return &model.RunResult{Raw: "skipped: missing PR metadata", Model: ruleEngineModel}, nil
	}

	if pr.TicketKey == "" {
		if err := s.code.CreateIssueComment(ctx, pr.Owner, pr.Repo, pr.Number, noTicketWarning); err != nil {
			return nil, fmt.Errorf("post no-ticket warning: %w", err)
		}
		return &model.RunResult{
			Raw:   fmt.Sprintf("warned: PR #%d has no Jira key; comment=posted", pr.Number),
			Model: ruleEngineModel,
		}, nil
	}

	commentResult, err := s.postLinkComment(ctx, pr)
	if err != nil {
		return nil, err
	}
	transitionResult, err := s.transitionToInReview(ctx, pr.TicketKey)
	if err != nil {
		return nil, err
	}
	return &model.RunResult{
		Raw: fmt.Sprintf("linked: PR #%d -> %s comment=%s transition=%s",
			pr.Number, pr.TicketKey, commentResult, transitionResult),
		Model: ruleEngineModel,
	}, nil
}

// postLinkComment posts the link comment unless the issue already
// references the PR URL. A failed duplicate check proceeds with the
// post rather than losing the link.
func (s *prLinkService) postLinkComment(ctx context.Context, pr model.PRContext) (string, error) {
	issue, err := s.tracker.FetchIssue(ctx, pr.TicketKey)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate-link check failed; proceeding",
			"ticket", pr.TicketKey,
			"error", err)
	} else if pr.HTMLURL != "" && strings.Contains(issue.Raw, pr.HTMLURL) {
		return "skipped:duplicate", nil
	}
	if err := s.tracker.AddComment(ctx, pr.TicketKey, BuildPRLinkComment(pr)); err != nil {
		return "", fmt.Errorf("add pr link comment: %w", err)
	}
	return "posted", nil
}

func (s *prLinkService) transitionToInReview(ctx context.Context, ticketKey string) (string, error) {
	transitions, err := s.tracker.ListTransitions(ctx, ticketKey)
	if err != nil {
		return "", fmt.Errorf("list transitions: %w", err)
	}
	for _, transition := range transitions {
		if strings.Contains(strings.ToLower(transition.Name), "in review") {
			if err := s.tracker.TransitionIssue(ctx, ticketKey, transition.ID); err != nil {
				return "", fmt.Errorf("transition issue: %w", err)
			}
			return "transitioned:" + transition.Name, nil
		}
	}
	s.logger.WarnContext(ctx, "no in-review transition available", "ticket", ticketKey)
	return "skipped:no-in-review-transition", nil
}

// BuildPRLinkComment renders the ticket comment for a linked PR.
// Optional lines drop out when the webhook omitted their fields.
func BuildPRLinkComment(pr model.PRContext) string {
	lines := []string{fmt.Sprintf("Pull Request #%d Linked", pr.Number)}
	if pr.Title != "" {
		lines = append(lines, "Title: "+pr.Title)
	}
	lines = append(lines, "URL: "+pr.HTMLURL)
	if pr.Branch != "" {
		lines = append(lines, "Branch: "+pr.Branch)
	}
	if pr.Owner != "" && pr.Repo != "" {
		lines = append(lines, fmt.Sprintf("Repository: %s/%s", pr.Owner, pr.Repo))
	}
	if pr.HeadSHA != "" {
		lines = append(lines, "Commit: "+shortSHA(pr.HeadSHA))
	}
	lines = append(lines, "", "— Automatically linked by LeadSync")
	return strings.Join(lines, "\n")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
