package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/codehost"
)

const (
	digestCommitLimit   = 100
	digestPatchMaxLines = 30
	noCommitsMarker     = "NO_COMMITS"
)

// DigestParams are per-trigger overrides. Zero values fall back to
// configuration defaults.
type DigestParams struct {
	WindowMinutes  int
	RunSource      string
	BucketStartUTC string
	RepoOwner      string
	RepoName       string
}

// DigestService runs the commit digest workflow: scan the repository
// window, summarize activity into area blocks, post to the chat
// channel, and record the run.
type DigestService interface {
	Run(ctx context.Context, params DigestParams) (*model.RunResult, error)
}

type digestService struct {
	cfg      config.Config
	llm      llm.Client
	code     codehost.Client
	chat     chat.Service
	recorder *Recorder
	logger   *slog.Logger
}

func NewDigestService(
	cfg config.Config,
	llmClient llm.Client,
	code codehost.Client,
	chatService chat.Service,
	recorder *Recorder,
	logger *slog.Logger,
) DigestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &digestService{
		cfg:      cfg,
		llm:      llmClient,
		code:     code,
		chat:     chatService,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *digestService) Run(ctx context.Context, params DigestParams) (*model.RunResult, error) {
	channelID := s.cfg.Slack.ChannelID
	if channelID == "" {
		return nil, Preconditionf("Missing required env var: SLACK_CHANNEL_ID")
	}
	repoOwner := strings.TrimSpace(params.RepoOwner)
	if repoOwner == "" {
		repoOwner = s.cfg.GitHub.RepoOwner
	}
	repoName := strings.TrimSpace(params.RepoName)
	if repoName == "" {
		repoName = s.cfg.GitHub.RepoName
	}
	if repoOwner == "" || repoName == "" {
		return nil, Preconditionf("Missing GitHub repository target. Provide repo_owner/repo_name in " +
			"POST /digest/trigger payload or set LEADSYNC_GITHUB_REPO_OWNER and LEADSYNC_GITHUB_REPO_NAME.")
	}
	windowMinutes := params.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = s.cfg.Digest.WindowMinutes
	}
	runSource := params.RunSource
	if runSource == "" {
		runSource = "manual"
	}

	if skip := s.maybeAcquireLock(ctx, windowMinutes, runSource, params.BucketStartUTC); skip != nil {
		return skip, nil
	}

	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	scanText, err := s.scanCommits(ctx, repoOwner, repoName, since)
	if err != nil {
		return nil, err
	}

	digestLabel := "Hourly"
	if windowMinutes >= 1440 {
		digestLabel = "Daily"
	}

	run := llm.NewFallback(s.llm, s.cfg.LLM.Model, s.cfg.LLM.FallbackModel, s.logger)
	var digestText string
	if scanText == noCommitsMarker {
		digestText = heartbeatDigest(windowMinutes)
	} else {
		digestText, err = run.Generate(ctx, llm.Request{
			SystemPrompt: digestWriterSystemPrompt,
			UserPrompt:   buildDigestWritePrompt(digestLabel, windowMinutes, scanText),
		})
		if err != nil {
			return nil, fmt.Errorf("write digest: %w", err)
		}
	}

	areas := ParseDigestBlocks(digestText)
	message := FormatDigestMessage(digestLabel, repoOwner, repoName, areas)
	if err := s.chat.PostMessage(ctx, chat.PostMessageParams{Channel: channelID, Text: message}); err != nil {
		return nil, fmt.Errorf("post digest to channel %s: %w", channelID, err)
	}

	s.persistRun(ctx, digestRunRecord{
		ScanText:       scanText,
		DigestText:     digestText,
		Areas:          areas,
		WindowMinutes:  windowMinutes,
		RunSource:      runSource,
		BucketStartUTC: params.BucketStartUTC,
	})

	return &model.RunResult{Raw: message, Model: run.Model()}, nil
}

// maybeAcquireLock returns a skip result when another run already owns
// this bucket. Lock failures log and let the run proceed; a broken lock
// table must not stop the digest.
func (s *digestService) maybeAcquireLock(ctx context.Context, windowMinutes int, runSource, bucketStartUTC string) *model.RunResult {
	if !s.cfg.Digest.IdempotencyEnabled || bucketStartUTC == "" || !s.recorder.Enabled() {
		return nil
	}
	lockKey := fmt.Sprintf("digest:%s:window=%d:source=%s", bucketStartUTC, windowMinutes, runSource)
	acquired, err := s.recorder.AcquireLock(ctx, model.WorkflowDigest, lockKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "digest idempotency lock failed; continuing run",
			"lock_key", lockKey,
			"error", err)
		return nil
	}
	if !acquired {
		s.logger.InfoContext(ctx, "skipping duplicate digest bucket", "lock_key", lockKey)
		return &model.RunResult{
			Raw:   fmt.Sprintf("skipped: duplicate bucket %s", bucketStartUTC),
			Model: s.cfg.LLM.Model,
		}
	}
	return nil
}

// scanCommits renders every commit in the window with file-level detail
// and truncated patches, or the NO_COMMITS marker.
func (s *digestService) scanCommits(ctx context.Context, repoOwner, repoName string, since time.Time) (string, error) {
	commits, err := s.code.ListCommitsSince(ctx, repoOwner, repoName, since, digestCommitLimit)
	if err != nil {
		return "", fmt.Errorf("list commits since %s: %w", since.Format(time.RFC3339), err)
	}
	if len(commits) == 0 {
		return noCommitsMarker, nil
	}
	var b strings.Builder
	for i, commit := range commits {
		detailed := commit
		if full, err := s.code.GetCommit(ctx, repoOwner, repoName, commit.SHA); err != nil {
			s.logger.WarnContext(ctx, "commit detail fetch failed; using listing entry",
				"sha", commit.SHA,
				"error", err)
		} else {
			detailed = *full
		}
		if i > 0 {
			b.WriteString("\n")
		}
		writeCommitReport(&b, detailed)
	}
	return b.String(), nil
}

func writeCommitReport(b *strings.Builder, commit model.Commit) {
	fmt.Fprintf(b, "SHA: %s\n", shortSHA(commit.SHA))
	fmt.Fprintf(b, "AUTHOR: %s\n", commit.Author)
	fmt.Fprintf(b, "MESSAGE: %s\n", commit.Message)
	b.WriteString("FILES:\n")
	if len(commit.Files) == 0 {
		b.WriteString("- none reported\n")
		return
	}
	for _, file := range commit.Files {
		fmt.Fprintf(b, "- %s (%s, +%d/-%d)\n", file.Filename, file.Status, file.Additions, file.Deletions)
		if file.Patch == "" {
			continue
		}
		b.WriteString("  PATCH:\n")
		lines := strings.Split(file.Patch, "\n")
		truncated := len(lines) > digestPatchMaxLines
		if truncated {
			lines = lines[:digestPatchMaxLines]
		}
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
		if truncated {
			b.WriteString("  ...truncated\n")
		}
	}
}

// FormatDigestMessage renders parsed area blocks into the chat message.
func FormatDigestMessage(digestLabel, repoOwner, repoName string, areas []model.DigestArea) string {
	lines := []string{fmt.Sprintf("*[LeadSync %s Digest — %s/%s]*", digestLabel, repoOwner, repoName), ""}
	for i, area := range areas {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("*%s* (%d commits by %s)", area.Area, area.Commits, area.Authors))
		if area.Summary != "" {
			lines = append(lines, area.Summary)
		}
		for _, change := range area.Changes {
			lines = append(lines, "• "+change)
		}
		if area.Files != "" && area.Files != "none" {
			lines = append(lines, "`Key files:` "+formatDigestFiles(area.Files))
		}
		if area.Decisions != "" && area.Decisions != "None." {
			lines = append(lines, fmt.Sprintf("_Decisions: %s_", area.Decisions))
		}
	}
	return strings.Join(lines, "\n")
}

func formatDigestFiles(files string) string {
	parts := strings.Split(files, ",")
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			formatted = append(formatted, "`"+trimmed+"`")
		}
	}
	return strings.Join(formatted, " ")
}

func heartbeatDigest(windowMinutes int) string {
	return "---\n" +
		"AREA: general\n" +
		"AUTHORS: none\n" +
		"COMMITS: 0\n" +
		"FILES: none\n" +
		"CHANGES:\n" +
		"- No changes\n" +
		fmt.Sprintf("SUMMARY: No commits in the last %d minutes.\n", windowMinutes) +
		"DECISIONS: None.\n" +
		"---"
}

type digestRunRecord struct {
	ScanText       string
	DigestText     string
	Areas          []model.DigestArea
	WindowMinutes  int
	RunSource      string
	BucketStartUTC string
}

func (s *digestService) persistRun(ctx context.Context, rec digestRunRecord) {
	if !s.recorder.Enabled() {
		return
	}
	var bucketValue any
	if rec.BucketStartUTC != "" {
		bucketValue = rec.BucketStartUTC
	}
	s.recorder.RecordEvent(ctx, &model.Event{
		EventType: model.EventTypeGithubCommitBatch,
		Workflow:  model.WorkflowDigest,
		Payload: jsonPayload(map[string]any{
			"scan_summary":     rec.ScanText,
			"window_minutes":   rec.WindowMinutes,
			"run_source":       rec.RunSource,
			"bucket_start_utc": bucketValue,
		}),
	})
	for _, block := range rec.Areas {
		decision := block.Decisions
		s.recorder.RecordMemoryItem(ctx, &model.MemoryItem{
			Workflow: model.WorkflowDigest,
			ItemType: model.MemoryItemTypeDigestArea,
			Summary:  fmt.Sprintf("%s: %s", block.Area, block.Summary),
			Decision: &decision,
			Context: jsonPayload(map[string]any{
				"area":    block.Area,
				"authors": block.Authors,
				"commits": block.Commits,
				"files":   block.Files,
				"changes": block.Changes,
				"source":  "digest_writer",
			}),
		})
	}
	s.recorder.RecordEvent(ctx, &model.Event{
		EventType: model.EventTypeDailyDigestPosted,
		Workflow:  model.WorkflowDigest,
		Payload: jsonPayload(map[string]any{
			"digest_summary":   rec.DigestText,
			"area_count":       len(rec.Areas),
			"window_minutes":   rec.WindowMinutes,
			"run_source":       rec.RunSource,
			"bucket_start_utc": bucketValue,
		}),
	})
}

func buildDigestWritePrompt(digestLabel string, windowMinutes int, scanText string) string {
	return fmt.Sprintf("Draft a technically detailed %s engineering digest from the scanned commits.\n", strings.ToLower(digestLabel)) +
		"Group commits by subsystem or area (e.g., 'API', 'Auth', 'Testing').\n\n" +
		"The scan output includes PATCH/diff content for each file. Read these patches carefully to " +
		"identify specific function names, type changes, parameter modifications, and logic changes. " +
		"Do NOT ignore the patch data.\n\n" +
		"For EACH area, output a block in this EXACT format (one block per area):\n" +
		"---\n" +
		"AREA: <area name>\n" +
		"AUTHORS: <comma-separated list of commit authors in this area>\n" +
		"COMMITS: <number of commits in this area>\n" +
		"FILES: <comma-separated list of key files changed, e.g. internal/api/server.go (M), internal/api/server_test.go (A)>\n" +
		"CHANGES:\n" +
		"- <specific code-level change derived from the patch>\n" +
		"- <another specific code-level change>\n" +
		"SUMMARY: <2-3 sentences synthesizing the changes into a cohesive engineering narrative. " +
		"Reference the specific functions and logic from CHANGES. Never write generic descriptions " +
		"like 'made updates' or 'improved functionality'.>\n" +
		"DECISIONS: <key technical decisions, trade-offs, or risks. If none, write 'None.'>\n" +
		"---\n\n" +
		"Rules:\n" +
		"- Maximum 8 area blocks.\n" +
		"- FILES uses (A)dded, (M)odified, (D)eleted status markers.\n" +
		"- CHANGES must list 2-5 specific code-level changes per area, derived from patch content. " +
		"Each bullet must name a function, type, method, parameter, or specific logic change.\n" +
		"- Attribute work to specific authors.\n" +
		"- SUMMARY should reference the specific changes listed in CHANGES.\n" +
		"- If the scan output is 'NO_COMMITS', output exactly:\n" +
		"---\n" +
		"AREA: general\nAUTHORS: none\nCOMMITS: 0\nFILES: none\nCHANGES:\n- No changes\n" +
		fmt.Sprintf("SUMMARY: No commits in the last %d minutes.\n", windowMinutes) +
		"DECISIONS: None.\n" +
		"---\n\n" +
		"Scanned commits:\n" + scanText + "\n"
}

const digestWriterSystemPrompt = "You are a senior engineer who reads diffs and patches to write " +
	"precise digests. You identify specific function names, parameter changes, logic modifications, " +
	"and architectural decisions from the actual code changes. Never write generic filler."
