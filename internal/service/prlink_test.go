package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

var _ = Describe("PRLinkService", func() {
	var (
		ctx     context.Context
		tracker *mockIssueTracker
		code    *mockCodeHost
		svc     service.PRLinkService
	)

	linkPayload := func(action, branch, title string) map[string]any {
		return map[string]any{
			"action": action,
			"pull_request": map[string]any{
				"number":   float64(42),
				"title":    title,
				"body":     "",
				"html_url": "https://github.com/acme/shop/pull/42",
				"head":     map[string]any{"ref": branch, "sha": "headsha1234"},
				"base":     map[string]any{"sha": "basesha1234"},
			},
			"repository": map[string]any{
				"name":  "shop",
				"owner": map[string]any{"login": "acme"},
			},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		tracker = &mockIssueTracker{
			listTransitionsFn: func(ctx context.Context, key string) ([]issue_tracker.Transition, error) {
				return []issue_tracker.Transition{
					{ID: "3", Name: "Code Review Queue"},
					{ID: "4", Name: "In Review"},
				}, nil
			},
		}
		code = &mockCodeHost{}
	})

	JustBeforeEach(func() {
		svc = service.NewPRLinkService(tracker, code, nil)
	})

	Describe("Run", func() {
		Context("with an action outside opened/reopened", func() {
			It("should skip", func() {
				result, err := svc.Run(ctx, linkPayload("synchronize", "feature/LEADS-42", "LEADS-42 Add export"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Raw).To(Equal("skipped: action 'synchronize'"))
				Expect(tracker.comments).To(BeEmpty())
				Expect(code.issueComments).To(BeEmpty())
			})
		})

		Context("with missing PR metadata", func() {
			It("should skip", func() {
				result, err := svc.Run(ctx, map[string]any{"action": "opened"})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Raw).To(Equal("skipped: missing PR metadata"))
			})
		})

		Context("without a detectable ticket key", func() {
			It("should warn on the pull request", func() {
				result, err := svc.Run(ctx, linkPayload("opened", "hotfix/typo", "Quick fix"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Raw).To(Equal("warned: PR #42 has no Jira key; comment=posted"))
				Expect(code.issueComments).To(HaveLen(1))
				Expect(code.issueComments[0]).To(Equal("No Jira ticket detected. Please add LEADS-XXX to the PR title."))
				Expect(tracker.comments).To(BeEmpty())
			})

			Context("and the warning comment fails", func() {
				BeforeEach(func() {
					code.createIssueCommentFn = func(ctx context.Context, owner, repo string, number int, body string) error {
						return errors.New("commenting disabled")
					}
				})

				It("should wrap the failure", func() {
					result, err := svc.Run(ctx, linkPayload("opened", "hotfix/typo", "Quick fix"))

					Expect(result).To(BeNil())
					Expect(err).To(MatchError(ContainSubstring("post no-ticket warning:")))
				})
			})
		})

		Context("with a linked ticket key", func() {
			It("should comment on the ticket and transition it to review", func() {
				result, err := svc.Run(ctx, linkPayload("opened", "feature/LEADS-42-export", "Add export"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Raw).To(Equal("linked: PR #42 -> LEADS-42 comment=posted transition=transitioned:In Review"))
				Expect(result.Model).To(Equal("rule-engine"))

				Expect(tracker.comments).To(HaveLen(1))
				comment := tracker.comments[0]
				Expect(comment).To(HavePrefix("Pull Request #42 Linked\n"))
				Expect(comment).To(ContainSubstring("Title: Add export\n"))
				Expect(comment).To(ContainSubstring("URL: https://github.com/acme/shop/pull/42\n"))
				Expect(comment).To(ContainSubstring("Branch: feature/LEADS-42-export\n"))
				Expect(comment).To(ContainSubstring("Repository: acme/shop\n"))
				Expect(comment).To(ContainSubstring("Commit: headsha\n"))
				Expect(comment).To(HaveSuffix("— Automatically linked by LeadSync"))

				Expect(tracker.transitioned).To(Equal([]string{"4"}))
			})

			Context("when the issue already references the PR", func() {
				BeforeEach(func() {
					tracker.fetchIssueFn = func(ctx context.Context, key string) (*issue_tracker.Issue, error) {
						return &issue_tracker.Issue{
							Key: key,
							Raw: `{"comments":[{"body":"see https://github.com/acme/shop/pull/42"}]}`,
						}, nil
					}
				})

				It("should skip the duplicate comment but still transition", func() {
					result, err := svc.Run(ctx, linkPayload("reopened", "feature/LEADS-42", "Add export"))

					Expect(err).NotTo(HaveOccurred())
					Expect(result.Raw).To(Equal("linked: PR #42 -> LEADS-42 comment=skipped:duplicate transition=transitioned:In Review"))
					Expect(tracker.comments).To(BeEmpty())
					Expect(tracker.transitioned).To(Equal([]string{"4"}))
				})
			})

			Context("when the duplicate check itself fails", func() {
				BeforeEach(func() {
					tracker.fetchIssueFn = func(ctx context.Context, key string) (*issue_tracker.Issue, error) {
						return nil, errors.New("jira 502")
					}
				})

				It("should post the comment anyway", func() {
					result, err := svc.Run(ctx, linkPayload("opened", "feature/LEADS-42", "Add export"))

					Expect(err).NotTo(HaveOccurred())
					Expect(result.Raw).To(ContainSubstring("comment=posted"))
					Expect(tracker.comments).To(HaveLen(1))
				})
			})

			Context("when no in-review transition exists", func() {
				BeforeEach(func() {
					tracker.listTransitionsFn = func(ctx context.Context, key string) ([]issue_tracker.Transition, error) {
						return []issue_tracker.Transition{{ID: "9", Name: "Done"}}, nil
					}
				})

				It("should report the skipped transition", func() {
					result, err := svc.Run(ctx, linkPayload("opened", "feature/LEADS-42", "Add export"))

					Expect(err).NotTo(HaveOccurred())
					Expect(result.Raw).To(ContainSubstring("transition=skipped:no-in-review-transition"))
					Expect(tracker.transitioned).To(BeEmpty())
				})
			})

			Context("when listing transitions fails", func() {
				BeforeEach(func() {
					tracker.listTransitionsFn = func(ctx context.Context, key string) ([]issue_tracker.Transition, error) {
						return nil, errors.New("jira 500")
					}
				})

				It("should wrap the failure", func() {
					result, err := svc.Run(ctx, linkPayload("opened", "feature/LEADS-42", "Add export"))

					Expect(result).To(BeNil())
					Expect(err).To(MatchError(ContainSubstring("list transitions:")))
				})
			})

			Context("when the transition call fails", func() {
				BeforeEach(func() {
					tracker.transitionIssueFn = func(ctx context.Context, key, transitionID string) error {
						return errors.New("workflow forbids it")
					}
				})

				It("should wrap the failure", func() {
					result, err := svc.Run(ctx, linkPayload("opened", "feature/LEADS-42", "Add export"))

					Expect(result).To(BeNil())
					Expect(err).To(MatchError(ContainSubstring("transition issue:")))
				})
			})
		})
	})
})

var _ = Describe("BuildPRLinkComment", func() {
	It("should drop optional lines the webhook omitted", func() {
		comment := service.BuildPRLinkComment(model.PRContext{Number: 7})

		Expect(comment).To(Equal(strings.Join([]string{
			"Pull Request #7 Linked",
			"URL: ",
			"",
			"— Automatically linked by LeadSync",
		}, "\n")))
	})

	It("should shorten long commit SHAs", func() {
		comment := service.BuildPRLinkComment(model.PRContext{
			Number:  7,
			HeadSHA: "0123456789abcdef",
		})

		Expect(comment).To(ContainSubstring("Commit: 0123456\n"))
	})
})
