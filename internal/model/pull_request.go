package model

// PRContext is the normalized view of a code-host pull request webhook.
type PRContext struct {
	Action    string `json:"action"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Number    int    `json:"number"`
	HTMLURL   string `json:"html_url"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Branch    string `json:"branch"`
	BaseSHA   string `json:"base_sha"`
	HeadSHA   string `json:"head_sha"`
	TicketKey string `json:"ticket_key,omitempty"`
}

// FileChange is one changed file in a pull request or commit, merged
// across discovery strategies by path.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// Commit is one commit returned by the code host scan.
type Commit struct {
	SHA     string       `json:"sha"`
	Author  string       `json:"author"`
	Message string       `json:"message"`
	Files   []FileChange `json:"files,omitempty"`
}
