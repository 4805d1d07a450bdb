package mapper

import (
	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/internal/model"
)

// ParseIssueContext normalizes a Jira webhook payload into a stable
// issue context. The issue may arrive under "issue", under "workItem",
// or as the payload itself; field values may live on the issue or under
// its "fields" block.
func ParseIssueContext(payload map[string]any) model.IssueContext {
	issue := asMap(payload["issue"])
	if issue == nil {
		issue = asMap(payload["workItem"])
	}
	if issue == nil {
		if _, ok := payload["key"]; ok {
			issue = payload
		} else if _, ok := payload["id"]; ok {
			issue = payload
		}
	}
	if issue == nil {
		issue = map[string]any{}
	}
	fields := asMap(issue["fields"])

	key := asString(issue["key"])
	if key == "" {
		key = asString(issue["id"])
	}
	if key == "" {
		key = "UNKNOWN"
	}

	labels := parseLabels(fieldValue(fields, issue, "labels"))
	components := parseComponentNames(fieldValue(fields, issue, "components"))

	assignee := asMap(fieldValue(fields, issue, "assignee"))
	assigneeName := common.FirstNonBlank([]string{
		asString(assignee["displayName"]),
		asString(assignee["display_name"]),
		asString(assignee["name"]),
	})
	if assigneeName == "" {
		assigneeName = "Unassigned"
	}

	project := asMap(fieldValue(fields, issue, "project"))
	status := asMap(fieldValue(fields, issue, "status"))
	statusCategory := asMap(status["statusCategory"])

	return model.IssueContext{
		Key:              key,
		Summary:          asString(fieldValue(fields, issue, "summary")),
		Description:      common.ExtractText(fieldValue(fields, issue, "description")),
		Labels:           labels,
		Components:       components,
		PrimaryLabel:     common.FirstNonBlank(labels),
		PrimaryComponent: common.FirstNonBlank(components),
		Assignee:         assigneeName,
		ProjectKey:       asString(project["key"]),
		Status:           asString(status["name"]),
		StatusCategory: common.FirstNonBlank([]string{
			asString(statusCategory["key"]),
			asString(statusCategory["name"]),
		}),
	}
}

// IsDoneStatus reports whether the parsed context sits in the Done
// status category, routing the payload to the implementation scan
// instead of enrichment.
func IsDoneStatus(issue model.IssueContext) bool {
	switch issue.StatusCategory {
	case "done", "Done":
		return true
	}
	return issue.Status == "Done"
}

func fieldValue(fields, issue map[string]any, key string) any {
	if fields != nil {
		if value, ok := fields[key]; ok && value != nil {
			return value
		}
	}
	if issue != nil {
		return issue[key]
	}
	return nil
}

func parseLabels(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(raw))
	for _, item := range raw {
		if label, ok := item.(string); ok {
			labels = append(labels, label)
		}
	}
	return labels
}

func parseComponentNames(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		if component := asMap(item); component != nil {
			names = append(names, asString(component["name"]))
		}
	}
	return names
}
