package service

import (
	"strings"

	"github.com/hongdnn/leadsync/internal/model"
)

var diffHeaderPrefixes = []string{
	"index ", "--- ", "+++ ", "new file mode", "deleted file mode", "rename from", "rename to",
}

// ParseUnifiedDiff parses raw unified diff text into per-file changes.
// It is the last-resort source of changed files for pull requests whose
// file listing endpoints returned nothing.
func ParseUnifiedDiff(diffText string) []model.FileChange {
	var files []model.FileChange
	var current *model.FileChange
	var headers []string

	flush := func() {
		if current == nil {
			return
		}
		current.Status = statusFromDiffHeaders(headers)
		files = append(files, *current)
		current = nil
		headers = nil
	}

	for _, rawLine := range strings.Split(diffText, "\n") {
		line := strings.TrimSuffix(rawLine, "\r")
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			parts := strings.Split(line, " ")
			bPath := ""
			if len(parts) >= 4 {
				bPath = parts[len(parts)-1]
			}
			current = &model.FileChange{
				Filename: strings.TrimPrefix(bPath, "b/"),
				Status:   "modified",
			}
			headers = []string{line}
			continue
		}
		if current == nil {
			continue
		}

		if hasAnyPrefix(line, diffHeaderPrefixes) {
			headers = append(headers, line)
			if strings.HasPrefix(line, "+++ b/") {
				current.Filename = line[len("+++ b/"):]
			}
			continue
		}

		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "+") ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, " ") {
			current.Patch = strings.TrimSpace(current.Patch + "\n" + line)
			switch {
			case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
				current.Additions++
			case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
				current.Deletions++
			}
			continue
		}

		headers = append(headers, line)
	}
	flush()

	return mergeFilesByPath(files)
}

// mergeFilesByPath de-duplicates file entries by path in first-seen
// order. Line counts sum, the latest non-empty status wins, and patches
// concatenate.
func mergeFilesByPath(files []model.FileChange) []model.FileChange {
	merged := make(map[string]*model.FileChange)
	var order []string
	for _, file := range files {
		path := strings.TrimSpace(file.Filename)
		if path == "" {
			continue
		}
		item, ok := merged[path]
		if !ok {
			item = &model.FileChange{Filename: path, Status: "modified"}
			merged[path] = item
			order = append(order, path)
		}
		if file.Status != "" {
			item.Status = file.Status
		}
		item.Additions += file.Additions
		item.Deletions += file.Deletions
		if patch := strings.TrimSpace(file.Patch); patch != "" {
			if item.Patch != "" {
				item.Patch += "\n" + patch
			} else {
				item.Patch = patch
			}
		}
	}
	result := make([]model.FileChange, 0, len(order))
	for _, path := range order {
		result = append(result, *merged[path])
	}
	return result
}

func statusFromDiffHeaders(headers []string) string {
	joined := strings.ToLower(strings.Join(headers, "\n"))
	switch {
	case strings.Contains(joined, "new file mode"):
		return "added"
	case strings.Contains(joined, "deleted file mode"):
		return "removed"
	case strings.Contains(joined, "rename from") && strings.Contains(joined, "rename to"):
		return "renamed"
	default:
		return "modified"
	}
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
