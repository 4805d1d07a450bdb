package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/docs"
)

// Categories are matched in order; frontend and database tokens win
// over the backend catch-all.
var preferenceCategoryKeywords = []struct {
	category model.PreferenceCategory
	keywords map[string]bool
}{
	{model.PreferenceCategoryFrontend, keywordSet("frontend", "front", "ui", "ux", "fe", "client", "react", "web")},
	{model.PreferenceCategoryDatabase, keywordSet("database", "db", "sql", "schema", "migration", "postgres", "query")},
	{model.PreferenceCategoryBackend, keywordSet("backend", "back", "api", "service", "be", "server")},
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

// PreferenceService routes tickets to a team preference category and
// loads the category's preference document. Loading hard-fails: a
// missing or empty document aborts the run rather than producing
// guidance that silently ignores team standards.
type PreferenceService interface {
	ResolveCategory(labels, components []string) model.PreferenceCategory
	LoadForCategory(ctx context.Context, category model.PreferenceCategory) (string, error)
}

type preferenceService struct {
	docs docs.Service
	cfg  config.GoogleDocsConfig
}

func NewPreferenceService(docsService docs.Service, cfg config.GoogleDocsConfig) PreferenceService {
	return &preferenceService{docs: docsService, cfg: cfg}
}

// NormalizeTokens lowers each value and expands it into the whole
// string plus its alphanumeric sub-tokens, so "Front-End" matches both
// "front" and "end" keyword lookups.
func NormalizeTokens(values []string) []string {
	var tokens []string
	for _, value := range values {
		lowered := strings.ToLower(strings.TrimSpace(value))
		if lowered == "" {
			continue
		}
		tokens = append(tokens, lowered)
		for _, token := range tokenSplitRe.Split(lowered, -1) {
			if token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}

func (s *preferenceService) ResolveCategory(labels, components []string) model.PreferenceCategory {
	tokens := append(NormalizeTokens(labels), NormalizeTokens(components)...)
	for _, entry := range preferenceCategoryKeywords {
		for _, token := range tokens {
			if entry.keywords[token] {
				return entry.category
			}
		}
	}
	return model.PreferenceCategoryBackend
}

func (s *preferenceService) LoadForCategory(ctx context.Context, category model.PreferenceCategory) (string, error) {
	docID, err := s.documentID(category)
	if err != nil {
		return "", err
	}
	text, err := s.docs.FetchPlainText(ctx, docID)
	if err != nil {
		return "", &PreconditionError{Message: fmt.Sprintf("Failed to fetch Google Docs preferences for %s", category), Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", Preconditionf("Google Docs preferences for %s are empty.", category)
	}
	return text, nil
}

func (s *preferenceService) documentID(category model.PreferenceCategory) (string, error) {
	var docID, envName string
	switch category {
	case model.PreferenceCategoryFrontend:
		docID, envName = s.cfg.FrontendDocID, "LEADSYNC_FRONTEND_PREFS_DOC_ID"
	case model.PreferenceCategoryBackend:
		docID, envName = s.cfg.BackendDocID, "LEADSYNC_BACKEND_PREFS_DOC_ID"
	case model.PreferenceCategoryDatabase:
		docID, envName = s.cfg.DatabaseDocID, "LEADSYNC_DATABASE_PREFS_DOC_ID"
	default:
		return "", fmt.Errorf("unknown preference category: %s", category)
	}
	if docID == "" {
		return "", Preconditionf("%s is required", envName)
	}
	return docID, nil
}

func keywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}
