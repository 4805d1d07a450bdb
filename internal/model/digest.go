package model

// DigestArea is one parsed area block from the digest writer output.
type DigestArea struct {
	Area      string   `json:"area"`
	Authors   string   `json:"authors"`
	Commits   int      `json:"commits"`
	Files     string   `json:"files"`
	Changes   []string `json:"changes,omitempty"`
	Summary   string   `json:"summary"`
	Decisions string   `json:"decisions"`
}
