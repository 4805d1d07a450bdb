package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hongdnn/leadsync/internal/model"
)

const maxDigestAreas = 8

var digestAreaLineRe = regexp.MustCompile(`(?i)^AREA:\s*(.+?)\s*\|\s*SUMMARY:\s*(.+?)\s*\|\s*(?:DECISIONS|RISKS):\s*(.+)$`)

// ParseDigestBlocks parses "---"-delimited area blocks from digest
// writer output, capped at eight areas. When no block parses it falls
// back to legacy single-line "AREA: .. | SUMMARY: .. | DECISIONS: .."
// rows, and finally to one general block carrying the raw text.
func ParseDigestBlocks(text string) []model.DigestArea {
	var areas []model.DigestArea
	for _, chunk := range splitDigestChunks(text) {
		area, ok := parseDigestChunk(chunk)
		if !ok {
			continue
		}
		areas = append(areas, area)
		if len(areas) >= maxDigestAreas {
			break
		}
	}
	if len(areas) > 0 {
		return areas
	}
	return parseLegacyDigestAreas(text)
}

func splitDigestChunks(text string) []string {
	var chunks []string
	var current []string
	flush := func() {
		chunk := strings.TrimSpace(strings.Join(current, "\n"))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return chunks
}

func parseDigestChunk(chunk string) (model.DigestArea, bool) {
	area := model.DigestArea{Decisions: "None."}
	var summaryLines, decisionLines []string
	section := ""
	found := false
	for _, raw := range strings.Split(chunk, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "AREA:"):
			area.Area = strings.TrimSpace(line[len("AREA:"):])
			found = area.Area != ""
			section = ""
		case strings.HasPrefix(upper, "AUTHORS:"):
			area.Authors = strings.TrimSpace(line[len("AUTHORS:"):])
			section = ""
		case strings.HasPrefix(upper, "COMMITS:"):
			area.Commits, _ = strconv.Atoi(strings.TrimSpace(line[len("COMMITS:"):]))
			section = ""
		case strings.HasPrefix(upper, "FILES:"):
			area.Files = strings.TrimSpace(line[len("FILES:"):])
			section = ""
		case strings.HasPrefix(upper, "CHANGES:"):
			section = "changes"
			if rest := strings.TrimSpace(line[len("CHANGES:"):]); rest != "" {
				area.Changes = append(area.Changes, bulletText(rest))
			}
		case strings.HasPrefix(upper, "SUMMARY:"):
			section = "summary"
			summaryLines = append(summaryLines, strings.TrimSpace(line[len("SUMMARY:"):]))
		case strings.HasPrefix(upper, "DECISIONS:"):
			section = "decisions"
			decisionLines = append(decisionLines, strings.TrimSpace(line[len("DECISIONS:"):]))
		default:
			switch section {
			case "changes":
				area.Changes = append(area.Changes, bulletText(line))
			case "summary":
				summaryLines = append(summaryLines, line)
			case "decisions":
				decisionLines = append(decisionLines, line)
			}
		}
	}
	if !found {
		return model.DigestArea{}, false
	}
	area.Summary = strings.TrimSpace(strings.Join(summaryLines, " "))
	if decisions := strings.TrimSpace(strings.Join(decisionLines, " ")); decisions != "" {
		area.Decisions = decisions
	}
	return area, true
}

func parseLegacyDigestAreas(text string) []model.DigestArea {
	var areas []model.DigestArea
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		match := digestAreaLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		areas = append(areas, model.DigestArea{
			Area:      strings.TrimSpace(match[1]),
			Summary:   strings.TrimSpace(match[2]),
			Decisions: strings.TrimSpace(match[3]),
		})
	}
	if len(areas) > 0 {
		return areas
	}
	fallback := strings.TrimSpace(text)
	if fallback == "" {
		return nil
	}
	if runes := []rune(fallback); len(runes) > 240 {
		fallback = string(runes[:240])
	}
	return []model.DigestArea{{
		Area:      "general",
		Summary:   fallback,
		Decisions: "No explicit risks captured.",
	}}
}

func bulletText(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, "- "))
}
