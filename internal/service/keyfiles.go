package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hongdnn/leadsync/internal/model"
)

const maxKeyFiles = 8

var (
	keyFileLineRe    = regexp.MustCompile(`(?i)^KEY_FILE:\s*([^|]+?)\s*\|\s*WHY:\s*([^|]+?)\s*\|\s*CONFIDENCE:\s*(\w+)\s*$`)
	validConfidences = map[string]bool{"high": true, "medium": true, "low": true}
)

// ParseKeyFiles extracts up to eight KEY_FILE records from gatherer
// output. Lines may carry a bullet prefix; paths are deduplicated
// case-insensitively and unknown confidence values degrade to medium.
func ParseKeyFiles(text string) []model.KeyFile {
	seen := make(map[string]bool)
	var parsed []model.KeyFile
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			line = strings.TrimSpace(line[2:])
		}
		match := keyFileLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		path := strings.Trim(strings.TrimSpace(match[1]), "`")
		why := strings.TrimSpace(match[2])
		confidence := strings.ToLower(strings.TrimSpace(match[3]))
		if path == "" || why == "" {
			continue
		}
		if !validConfidences[confidence] {
			confidence = "medium"
		}
		dedupeKey := strings.ToLower(path)
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true
		parsed = append(parsed, model.KeyFile{Path: path, Why: why, Confidence: confidence})
		if len(parsed) >= maxKeyFiles {
			break
		}
	}
	return parsed
}

// RenderKeyFilesMarkdown renders key-file records as markdown bullet
// lines. An empty slice renders as "".
func RenderKeyFilesMarkdown(files []model.KeyFile) string {
	lines := make([]string, 0, len(files))
	for _, item := range files {
		lines = append(lines, fmt.Sprintf("- `%s` - %s (confidence: %s)", item.Path, item.Why, item.Confidence))
	}
	return strings.Join(lines, "\n")
}
