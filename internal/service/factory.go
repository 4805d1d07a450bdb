package service

import (
	"log/slog"

	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/codehost"
	"github.com/hongdnn/leadsync/internal/service/docs"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
	"github.com/hongdnn/leadsync/internal/store"
)

// Services wires workflow services from shared collaborators. Getters
// build services on demand; the recorder is shared so every workflow
// sees the same enabled state.
type Services struct {
	cfg      config.Config
	stores   *store.Stores
	llm      llm.Client
	tracker  issue_tracker.IssueTrackerService
	code     codehost.Client
	chat     chat.Service
	docs     docs.Service
	recorder *Recorder
	logger   *slog.Logger
}

func NewServices(
	cfg config.Config,
	stores *store.Stores,
	llmClient llm.Client,
	tracker issue_tracker.IssueTrackerService,
	code codehost.Client,
	chatService chat.Service,
	docsService docs.Service,
	logger *slog.Logger,
) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		cfg:      cfg,
		stores:   stores,
		llm:      llmClient,
		tracker:  tracker,
		code:     code,
		chat:     chatService,
		docs:     docsService,
		recorder: NewRecorder(stores, cfg.Memory.Enabled, logger),
		logger:   logger,
	}
}

func (s *Services) Recorder() *Recorder {
	return s.recorder
}

func (s *Services) History() HistoryService {
	return NewHistoryService(s.tracker, s.logger)
}

func (s *Services) Preferences() PreferenceService {
	return NewPreferenceService(s.docs, s.cfg.GoogleDocs)
}

func (s *Services) Memory() MemoryQueryService {
	return NewMemoryQueryService(s.stores)
}

func (s *Services) Enrichment() EnrichmentService {
	return NewEnrichmentService(s.cfg, s.llm, s.tracker, s.History(), s.Preferences(), s.Memory(), s.recorder, s.logger)
}

func (s *Services) Digest() DigestService {
	return NewDigestService(s.cfg, s.llm, s.code, s.chat, s.recorder, s.logger)
}

func (s *Services) SlackQA() SlackQAService {
	return NewSlackQAService(s.cfg, s.llm, s.tracker, s.History(), s.Preferences(), s.Memory(), s.chat, s.recorder, s.logger)
}

func (s *Services) PRDescribe() PRDescribeService {
	return NewPRDescribeService(s.cfg, s.llm, s.code, s.logger)
}

func (s *Services) PRLink() PRLinkService {
	return NewPRLinkService(s.tracker, s.code, s.logger)
}

func (s *Services) DoneScan() DoneScanService {
	return NewDoneScanService(s.cfg, s.llm, s.tracker, s.code, s.recorder, s.logger)
}

func (s *Services) LeaderRules() LeaderRuleService {
	return NewLeaderRuleService(s.stores, s.cfg.Memory.Enabled)
}
