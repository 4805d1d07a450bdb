package service_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/codehost"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
	"github.com/hongdnn/leadsync/internal/store"
)

type mockLLMClient struct {
	generateFn   func(ctx context.Context, req llm.Request) (string, error)
	chatSchemaFn func(ctx context.Context, req llm.SchemaRequest, result any) (*llm.Response, error)

	generateCalls   []llm.Request
	chatSchemaCalls []llm.SchemaRequest
}

func (m *mockLLMClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.generateCalls = append(m.generateCalls, req)
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return "", nil
}

func (m *mockLLMClient) ChatSchema(ctx context.Context, req llm.SchemaRequest, result any) (*llm.Response, error) {
	m.chatSchemaCalls = append(m.chatSchemaCalls, req)
	if m.chatSchemaFn != nil {
		return m.chatSchemaFn(ctx, req, result)
	}
	return &llm.Response{}, nil
}

func (m *mockLLMClient) Model() string {
	return "mock-model"
}

type mockIssueTracker struct {
	fetchIssueFn        func(ctx context.Context, key string) (*issue_tracker.Issue, error)
	searchIssuesFn      func(ctx context.Context, jql string, maxResults int, fields []string) (json.RawMessage, error)
	addCommentFn        func(ctx context.Context, key, text string) error
	updateDescriptionFn func(ctx context.Context, key, text string) error
	listTransitionsFn   func(ctx context.Context, key string) ([]issue_tracker.Transition, error)
	transitionIssueFn   func(ctx context.Context, key, transitionID string) error
	attachFileFn        func(ctx context.Context, key, filename string, content []byte) error

	comments     []string
	descriptions []string
	transitioned []string
	writeOrder   []string
}

func (m *mockIssueTracker) FetchIssue(ctx context.Context, key string) (*issue_tracker.Issue, error) {
	if m.fetchIssueFn != nil {
		return m.fetchIssueFn(ctx, key)
	}
	return &issue_tracker.Issue{Key: key}, nil
}

func (m *mockIssueTracker) SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) (json.RawMessage, error) {
	if m.searchIssuesFn != nil {
		return m.searchIssuesFn(ctx, jql, maxResults, fields)
	}
	return json.RawMessage(`{"issues":[]}`), nil
}

func (m *mockIssueTracker) AddComment(ctx context.Context, key, text string) error {
	m.comments = append(m.comments, text)
	m.writeOrder = append(m.writeOrder, "comment")
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, key, text)
	}
	return nil
}

func (m *mockIssueTracker) UpdateDescription(ctx context.Context, key, text string) error {
	m.descriptions = append(m.descriptions, text)
	m.writeOrder = append(m.writeOrder, "description")
	if m.updateDescriptionFn != nil {
		return m.updateDescriptionFn(ctx, key, text)
	}
	return nil
}

func (m *mockIssueTracker) ListTransitions(ctx context.Context, key string) ([]issue_tracker.Transition, error) {
	if m.listTransitionsFn != nil {
		return m.listTransitionsFn(ctx, key)
	}
	return nil, nil
}

func (m *mockIssueTracker) TransitionIssue(ctx context.Context, key, transitionID string) error {
	m.transitioned = append(m.transitioned, transitionID)
	if m.transitionIssueFn != nil {
		return m.transitionIssueFn(ctx, key, transitionID)
	}
	return nil
}

func (m *mockIssueTracker) AttachFile(ctx context.Context, key, filename string, content []byte) error {
	if m.attachFileFn != nil {
		return m.attachFileFn(ctx, key, filename, content)
	}
	return nil
}

type mockCodeHost struct {
	listCommitsSinceFn            func(ctx context.Context, owner, repo string, since time.Time, limit int) ([]model.Commit, error)
	getCommitFn                   func(ctx context.Context, owner, repo, sha string) (*model.Commit, error)
	listPullRequestFilesFn        func(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error)
	listPullRequestCommitsFn      func(ctx context.Context, owner, repo string, number int) ([]model.Commit, error)
	compareCommitsFn              func(ctx context.Context, owner, repo, base, head string) ([]model.FileChange, error)
	getRawPullRequestDiffFn       func(ctx context.Context, owner, repo string, number int) (string, error)
	updatePullRequestBodyFn       func(ctx context.Context, owner, repo string, number int, body string) error
	createIssueCommentFn          func(ctx context.Context, owner, repo string, number int, body string) error
	listMergedPullRequestsSinceFn func(ctx context.Context, owner, repo string, since time.Time) ([]codehost.PullRequest, error)
	searchFilesFn                 func(ctx context.Context, owner, repo, query string, limit int) ([]string, error)

	updatedBodies []string
	issueComments []string
	listSince     []time.Time
}

func (m *mockCodeHost) ListCommitsSince(ctx context.Context, owner, repo string, since time.Time, limit int) ([]model.Commit, error) {
	m.listSince = append(m.listSince, since)
	if m.listCommitsSinceFn != nil {
		return m.listCommitsSinceFn(ctx, owner, repo, since, limit)
	}
	return nil, nil
}

func (m *mockCodeHost) GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error) {
	if m.getCommitFn != nil {
		return m.getCommitFn(ctx, owner, repo, sha)
	}
	return &model.Commit{SHA: sha}, nil
}

func (m *mockCodeHost) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error) {
	if m.listPullRequestFilesFn != nil {
		return m.listPullRequestFilesFn(ctx, owner, repo, number)
	}
	return nil, nil
}

func (m *mockCodeHost) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	if m.listPullRequestCommitsFn != nil {
		return m.listPullRequestCommitsFn(ctx, owner, repo, number)
	}
	return nil, nil
}

func (m *mockCodeHost) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.FileChange, error) {
	if m.compareCommitsFn != nil {
		return m.compareCommitsFn(ctx, owner, repo, base, head)
	}
	return nil, nil
}

func (m *mockCodeHost) GetRawPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	if m.getRawPullRequestDiffFn != nil {
		return m.getRawPullRequestDiffFn(ctx, owner, repo, number)
	}
	return "", nil
}

func (m *mockCodeHost) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	m.updatedBodies = append(m.updatedBodies, body)
	if m.updatePullRequestBodyFn != nil {
		return m.updatePullRequestBodyFn(ctx, owner, repo, number, body)
	}
	return nil
}

func (m *mockCodeHost) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	m.issueComments = append(m.issueComments, body)
	if m.createIssueCommentFn != nil {
		return m.createIssueCommentFn(ctx, owner, repo, number, body)
	}
	return nil
}

func (m *mockCodeHost) ListMergedPullRequestsSince(ctx context.Context, owner, repo string, since time.Time) ([]codehost.PullRequest, error) {
	if m.listMergedPullRequestsSinceFn != nil {
		return m.listMergedPullRequestsSinceFn(ctx, owner, repo, since)
	}
	return nil, nil
}

func (m *mockCodeHost) SearchFiles(ctx context.Context, owner, repo, query string, limit int) ([]string, error) {
	if m.searchFilesFn != nil {
		return m.searchFilesFn(ctx, owner, repo, query, limit)
	}
	return nil, nil
}

type mockChatService struct {
	postMessageFn func(ctx context.Context, params chat.PostMessageParams) error
	posted        []chat.PostMessageParams
}

func (m *mockChatService) PostMessage(ctx context.Context, params chat.PostMessageParams) error {
	m.posted = append(m.posted, params)
	if m.postMessageFn != nil {
		return m.postMessageFn(ctx, params)
	}
	return nil
}

type mockDocsService struct {
	fetchPlainTextFn func(ctx context.Context, documentID string) (string, error)
}

func (m *mockDocsService) FetchPlainText(ctx context.Context, documentID string) (string, error) {
	if m.fetchPlainTextFn != nil {
		return m.fetchPlainTextFn(ctx, documentID)
	}
	return "", nil
}

type mockHistoryService struct {
	sameLabelProgressContextFn func(ctx context.Context, projectKey, label, excludeIssueKey string, limit int) string
}

func (m *mockHistoryService) SameLabelProgressContext(ctx context.Context, projectKey, label, excludeIssueKey string, limit int) string {
	if m.sameLabelProgressContextFn != nil {
		return m.sameLabelProgressContextFn(ctx, projectKey, label, excludeIssueKey, limit)
	}
	return "No completed same-label tickets found."
}

type mockPreferenceService struct {
	resolveCategoryFn func(labels, components []string) model.PreferenceCategory
	loadForCategoryFn func(ctx context.Context, category model.PreferenceCategory) (string, error)
}

func (m *mockPreferenceService) ResolveCategory(labels, components []string) model.PreferenceCategory {
	if m.resolveCategoryFn != nil {
		return m.resolveCategoryFn(labels, components)
	}
	return model.PreferenceCategoryBackend
}

func (m *mockPreferenceService) LoadForCategory(ctx context.Context, category model.PreferenceCategory) (string, error) {
	if m.loadForCategoryFn != nil {
		return m.loadForCategoryFn(ctx, category)
	}
	return "Follow existing patterns.", nil
}

type mockMemoryService struct {
	ticketMemoryFn      func(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error)
	recentDigestAreasFn func(ctx context.Context, limit int) ([]model.MemoryItem, error)
	similarQAFn         func(ctx context.Context, params store.SimilarQAParams) ([]model.MemoryItem, error)
	leaderRulesFn       func(ctx context.Context, category string) ([]model.MemoryItem, error)
	slackContextFn      func(ctx context.Context, params service.MemoryContextParams) (string, error)
	leaderRulesTextFn   func(ctx context.Context, category string) (string, error)
}

func (m *mockMemoryService) TicketMemory(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error) {
	if m.ticketMemoryFn != nil {
		return m.ticketMemoryFn(ctx, ticketKey, limit)
	}
	return nil, nil
}

func (m *mockMemoryService) RecentDigestAreas(ctx context.Context, limit int) ([]model.MemoryItem, error) {
	if m.recentDigestAreasFn != nil {
		return m.recentDigestAreasFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockMemoryService) SimilarQA(ctx context.Context, params store.SimilarQAParams) ([]model.MemoryItem, error) {
	if m.similarQAFn != nil {
		return m.similarQAFn(ctx, params)
	}
	return nil, nil
}

func (m *mockMemoryService) LeaderRules(ctx context.Context, category string) ([]model.MemoryItem, error) {
	if m.leaderRulesFn != nil {
		return m.leaderRulesFn(ctx, category)
	}
	return nil, nil
}

func (m *mockMemoryService) SlackMemoryContext(ctx context.Context, params service.MemoryContextParams) (string, error) {
	if m.slackContextFn != nil {
		return m.slackContextFn(ctx, params)
	}
	return "No stored memory for this ticket.", nil
}

func (m *mockMemoryService) LeaderRulesText(ctx context.Context, category string) (string, error) {
	if m.leaderRulesTextFn != nil {
		return m.leaderRulesTextFn(ctx, category)
	}
	return "", nil
}
