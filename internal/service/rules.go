package service

import (
	"embed"
)

//go:embed templates/*.md
var rulesetTemplates embed.FS

// Ruleset keyword routing mirrors the preference categories, minus the
// "web" and "query" aliases that only the docs routing recognizes.
var rulesetCategoryMap = []struct {
	file     string
	keywords map[string]bool
}{
	{"frontend-ruleset.md", keywordSet("frontend", "front", "ui", "ux", "fe", "client", "react")},
	{"db-ruleset.md", keywordSet("database", "db", "sql", "schema", "migration", "postgres")},
	{"backend-ruleset.md", keywordSet("backend", "back", "api", "service", "be", "server")},
}

// SelectRulesetFile picks the ruleset template for a ticket's labels
// and components, defaulting to the backend ruleset.
func SelectRulesetFile(labels, components []string) string {
	tokens := append(NormalizeTokens(labels), NormalizeTokens(components)...)
	for _, entry := range rulesetCategoryMap {
		for _, token := range tokens {
			if entry.keywords[token] {
				return entry.file
			}
		}
	}
	return "backend-ruleset.md"
}

// LoadRulesetContent returns the embedded ruleset text, or "" when the
// name matches no template. Callers render their own fallback line.
func LoadRulesetContent(fileName string) string {
	content, err := rulesetTemplates.ReadFile("templates/" + fileName)
	if err != nil {
		return ""
	}
	return string(content)
}
