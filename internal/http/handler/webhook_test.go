package handler_test

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/internal/http/handler"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
)

func jiraPayload(statusName, categoryKey string) map[string]any {
	return map[string]any{
		"issue": map[string]any{
			"key": "LEADS-42",
			"fields": map[string]any{
				"summary": "Add CSV export endpoint",
				"status": map[string]any{
					"name":           statusName,
					"statusCategory": map[string]any{"key": categoryKey},
				},
			},
		},
	}
}

func githubPayload() map[string]any {
	return map[string]any{
		"action": "opened",
		"pull_request": map[string]any{
			"number":   float64(42),
			"title":    "LEADS-42 Add export",
			"html_url": "https://github.com/acme/shop/pull/42",
		},
		"repository": map[string]any{
			"name":  "shop",
			"owner": map[string]any{"login": "acme"},
		},
	}
}

var _ = Describe("WebhookHandler", func() {
	var (
		router     *gin.Engine
		enrichment *mockRunService
		doneScan   *mockRunService
		prDescribe *mockRunService
		prLink     *mockRunService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		enrichment = &mockRunService{}
		doneScan = &mockRunService{}
		prDescribe = &mockRunService{}
		prLink = &mockRunService{}
		h := handler.NewWebhookHandler(enrichment, doneScan, prDescribe, prLink)
		router.POST("/webhooks/jira", h.Jira)
		router.POST("/webhooks/github", h.GitHub)
	})

	Describe("Jira", func() {
		It("returns 400 on a malformed body", func() {
			w := postRaw(router, "/webhooks/jira", "application/json", "{not json")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["detail"]).To(Equal("Invalid JSON body."))
			Expect(enrichment.payloads).To(BeEmpty())
			Expect(doneScan.payloads).To(BeEmpty())
		})

		It("routes open tickets to enrichment", func() {
			enrichment.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return &model.RunResult{Raw: "## Task\nprompt", Model: "gemini-2.5-flash"}, nil
			}

			w := postJSON(router, "/webhooks/jira", jiraPayload("To Do", "new"))

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeBody(w)
			Expect(resp["status"]).To(Equal("processed"))
			Expect(resp["model"]).To(Equal("gemini-2.5-flash"))
			Expect(resp["result"]).To(Equal("## Task\nprompt"))

			Expect(enrichment.payloads).To(HaveLen(1))
			Expect(enrichment.payloads[0]).To(Equal(jiraPayload("To Do", "new")))
			Expect(doneScan.payloads).To(BeEmpty())
		})

		It("routes done tickets to the implementation scan", func() {
			doneScan.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return &model.RunResult{Raw: "posted: scan summary comment on LEADS-42", Model: "gemini-2.5-flash"}, nil
			}

			w := postJSON(router, "/webhooks/jira", jiraPayload("Done", "done"))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["result"]).To(Equal("posted: scan summary comment on LEADS-42"))

			Expect(doneScan.payloads).To(HaveLen(1))
			Expect(enrichment.payloads).To(BeEmpty())
		})

		It("maps precondition failures to 400", func() {
			enrichment.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return nil, service.Preconditionf("Missing required env var: LEADSYNC_GITHUB_REPO_OWNER")
			}

			w := postJSON(router, "/webhooks/jira", jiraPayload("To Do", "new"))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["detail"]).To(Equal("Missing required env var: LEADSYNC_GITHUB_REPO_OWNER"))
		})

		It("maps other failures to 500", func() {
			enrichment.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return nil, errors.New("gather issue context: model unavailable")
			}

			w := postJSON(router, "/webhooks/jira", jiraPayload("To Do", "new"))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(w)["detail"]).To(Equal("Crew run failed: gather issue context: model unavailable"))
		})
	})

	Describe("GitHub", func() {
		It("returns 400 on a malformed body", func() {
			w := postRaw(router, "/webhooks/github", "application/json", "not json at all")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["detail"]).To(Equal("Invalid JSON body."))
			Expect(prDescribe.payloads).To(BeEmpty())
			Expect(prLink.payloads).To(BeEmpty())
		})

		It("runs the description rewrite then the ticket link", func() {
			prDescribe.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return &model.RunResult{Raw: "updated: PR #42 (LEADS-42) auto-details action=opened files=2", Model: "rule-engine"}, nil
			}
			prLink.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return &model.RunResult{Raw: "linked: PR #42 -> LEADS-42 comment=posted transition=In Review", Model: "rule-engine"}, nil
			}

			w := postJSON(router, "/webhooks/github", githubPayload())

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeBody(w)
			Expect(resp["status"]).To(Equal("processed"))
			Expect(resp["model"]).To(Equal("rule-engine"))
			Expect(resp["result"]).To(Equal("updated: PR #42 (LEADS-42) auto-details action=opened files=2"))
			Expect(resp["wf5_result"]).To(Equal("linked: PR #42 -> LEADS-42 comment=posted transition=In Review"))

			Expect(prDescribe.payloads).To(HaveLen(1))
			Expect(prLink.payloads).To(HaveLen(1))
			Expect(prLink.payloads[0]).To(Equal(githubPayload()))
		})

		It("fails the request when the description rewrite fails", func() {
			prDescribe.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return nil, errors.New("update pull request body: 502")
			}

			w := postJSON(router, "/webhooks/github", githubPayload())

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(w)["detail"]).To(Equal("Workflow 4 failed: update pull request body: 502"))
			Expect(prLink.payloads).To(BeEmpty())
		})

		It("maps description precondition failures to 400", func() {
			prDescribe.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return nil, service.Preconditionf("Missing required env var: LEADSYNC_GITHUB_TOKEN")
			}

			w := postJSON(router, "/webhooks/github", githubPayload())

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["detail"]).To(Equal("Missing required env var: LEADSYNC_GITHUB_TOKEN"))
		})

		It("keeps the response when the ticket link fails", func() {
			prDescribe.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return &model.RunResult{Raw: "updated: PR #42 (LEADS-42) auto-details action=opened files=2", Model: "rule-engine"}, nil
			}
			prLink.runFn = func(_ context.Context, _ map[string]any) (*model.RunResult, error) {
				return nil, errors.New("list transitions: 500")
			}

			w := postJSON(router, "/webhooks/github", githubPayload())

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeBody(w)
			Expect(resp["result"]).To(Equal("updated: PR #42 (LEADS-42) auto-details action=opened files=2"))
			Expect(resp["wf5_result"]).To(Equal("skipped:wf5-error"))
		})
	})
})
