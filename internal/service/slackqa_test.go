package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

var _ = Describe("ParseSlackText", func() {
	It("should split the ticket key from the question", func() {
		key, question := service.ParseSlackText("LEADS-7 what is the status?")

		Expect(key).To(Equal("LEADS-7"))
		Expect(question).To(Equal("what is the status?"))
	})

	It("should return an empty question when only a key is given", func() {
		key, question := service.ParseSlackText("  LEADS-7  ")

		Expect(key).To(Equal("LEADS-7"))
		Expect(question).To(Equal(""))
	})

	It("should keep the question's inner spacing", func() {
		key, question := service.ParseSlackText("LEADS-7   spaced   question")

		Expect(key).To(Equal("LEADS-7"))
		Expect(question).To(Equal("  spaced   question"))
	})
})

var _ = Describe("ParseQuestionType", func() {
	It("should read the marker from the first line", func() {
		Expect(service.ParseQuestionType("QUESTION_TYPE: PROGRESS\ncontext follows")).To(Equal(model.QuestionTypeProgress))
		Expect(service.ParseQuestionType("QUESTION_TYPE: IMPLEMENTATION")).To(Equal(model.QuestionTypeImplementation))
		Expect(service.ParseQuestionType("QUESTION_TYPE: GENERAL")).To(Equal(model.QuestionTypeGeneral))
	})

	It("should accept lowercase classifications", func() {
		Expect(service.ParseQuestionType("QUESTION_TYPE: progress")).To(Equal(model.QuestionTypeProgress))
	})

	It("should default to general for unrecognized output", func() {
		Expect(service.ParseQuestionType("QUESTION_TYPE: SOMETHING_ELSE")).To(Equal(model.QuestionTypeGeneral))
		Expect(service.ParseQuestionType("no marker at all")).To(Equal(model.QuestionTypeGeneral))
		Expect(service.ParseQuestionType("")).To(Equal(model.QuestionTypeGeneral))
	})
})

var _ = Describe("SlackQAService", func() {
	var (
		ctx      context.Context
		cfg      config.Config
		llmMock  *mockLLMClient
		tracker  *mockIssueTracker
		history  *mockHistoryService
		prefs    *mockPreferenceService
		memory   *mockMemoryService
		chatMock *mockChatService
		recorder *service.Recorder
		svc      service.SlackQAService
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.Config{}
		cfg.Slack.ChannelID = "C123"
		cfg.LLM.Model = "gemini-2.5-flash"

		llmMock = &mockLLMClient{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				if strings.Contains(req.UserPrompt, "Classify the developer question") {
					return "QUESTION_TYPE: PROGRESS\nPrior tickets delivered the export API.", nil
				}
				return "Here is summary of previous progress related to tasks with the same label:\n- LEADS-31 shipped the export API.", nil
			},
		}
		tracker = &mockIssueTracker{
			fetchIssueFn: func(ctx context.Context, key string) (*issue_tracker.Issue, error) {
				return &issue_tracker.Issue{
					Key:        key,
					Summary:    "Add CSV export endpoint",
					Status:     "In Progress",
					Assignee:   "Dana Kim",
					Labels:     []string{"backend"},
					ProjectKey: "LEADS",
				}, nil
			},
		}
		history = &mockHistoryService{}
		prefs = &mockPreferenceService{}
		memory = &mockMemoryService{}
		chatMock = &mockChatService{}
		recorder = service.NewRecorder(nil, false, nil)
	})

	JustBeforeEach(func() {
		svc = service.NewSlackQAService(cfg, llmMock, tracker, history, prefs, memory, chatMock, recorder, nil)
	})

	Describe("Run", func() {
		Context("with a progress question", func() {
			It("should post the answer into the requesting thread", func() {
				result, err := svc.Run(ctx, service.SlackQAParams{
					TicketKey: "LEADS-7",
					Question:  "what did we finish for backend already?",
					ThreadTS:  "1712341234.5678",
					ChannelID: "C777",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(chatMock.posted).To(HaveLen(1))
				Expect(chatMock.posted[0].Channel).To(Equal("C777"))
				Expect(chatMock.posted[0].ThreadTS).To(Equal("1712341234.5678"))
				Expect(chatMock.posted[0].Text).To(HavePrefix("[LEADS-7] LeadSync summary:\n"))
				Expect(result.Raw).To(Equal(chatMock.posted[0].Text))
				Expect(result.Model).To(Equal("gemini-2.5-flash"))
			})

			It("should ask the reasoner for a progress report", func() {
				_, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "what was finished?"})

				Expect(err).NotTo(HaveOccurred())
				Expect(llmMock.generateCalls).To(HaveLen(2))
				answerPrompt := llmMock.generateCalls[1].UserPrompt
				Expect(answerPrompt).To(ContainSubstring("'Here is summary of previous progress related to tasks with the same label:'"))
				Expect(answerPrompt).To(ContainSubstring("Retriever output:\nQUESTION_TYPE: PROGRESS"))
			})

			It("should give the retriever ticket facts and history context", func() {
				_, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "what was finished?"})

				Expect(err).NotTo(HaveOccurred())
				classifyPrompt := llmMock.generateCalls[0].UserPrompt
				Expect(classifyPrompt).To(ContainSubstring("Ticket LEADS-7 details:"))
				Expect(classifyPrompt).To(ContainSubstring("Summary: Add CSV export endpoint"))
				Expect(classifyPrompt).To(ContainSubstring("Same-label prior progress context:\nNo completed same-label tickets found."))
				Expect(classifyPrompt).To(ContainSubstring("Memory context unavailable for this run."))
				Expect(classifyPrompt).To(ContainSubstring("Current ticket primary label: backend"))
			})
		})

		Context("with an implementation question", func() {
			BeforeEach(func() {
				llmMock.generateFn = func(ctx context.Context, req llm.Request) (string, error) {
					if strings.Contains(req.UserPrompt, "Classify the developer question") {
						return "QUESTION_TYPE: IMPLEMENTATION\nTicket wants a streaming export.", nil
					}
					return "Use a streaming writer.", nil
				}
			})

			It("should inject the team preferences into the answer prompt", func() {
				_, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "should I buffer or stream?"})

				Expect(err).NotTo(HaveOccurred())
				answerPrompt := llmMock.generateCalls[1].UserPrompt
				Expect(answerPrompt).To(ContainSubstring("- Category: backend\n---\nFollow existing patterns.\n---\n"))
			})
		})

		Context("with an unclassifiable question", func() {
			BeforeEach(func() {
				llmMock.generateFn = func(ctx context.Context, req llm.Request) (string, error) {
					if strings.Contains(req.UserPrompt, "Classify the developer question") {
						return "I could not decide.", nil
					}
					return "The ticket is about CSV export.", nil
				}
			})

			It("should fall back to a factual answer", func() {
				_, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "what is this about?"})

				Expect(err).NotTo(HaveOccurred())
				Expect(llmMock.generateCalls[1].UserPrompt).To(ContainSubstring("Answer factually:"))
			})
		})

		Context("when no channel is available", func() {
			BeforeEach(func() {
				cfg.Slack.ChannelID = ""
			})

			It("should fail with the channel precondition", func() {
				result, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "status?"})

				Expect(result).To(BeNil())
				Expect(service.IsPrecondition(err)).To(BeTrue())
				Expect(err.Error()).To(Equal("Missing required env var: SLACK_CHANNEL_ID"))
			})
		})

		Context("when the ticket fetch fails", func() {
			BeforeEach(func() {
				tracker.fetchIssueFn = func(ctx context.Context, key string) (*issue_tracker.Issue, error) {
					return nil, errors.New("jira 502")
				}
			})

			It("should answer without ticket facts", func() {
				result, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "status?"})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Raw).To(HavePrefix("[LEADS-7] LeadSync summary:\n"))
				Expect(llmMock.generateCalls[0].UserPrompt).To(ContainSubstring("Ticket details unavailable."))
			})
		})

		Context("when the preference document cannot be loaded", func() {
			BeforeEach(func() {
				prefs.loadForCategoryFn = func(ctx context.Context, category model.PreferenceCategory) (string, error) {
					return "", service.Preconditionf("LEADSYNC_BACKEND_PREFS_DOC_ID is required")
				}
			})

			It("should propagate the precondition without answering", func() {
				result, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "status?"})

				Expect(result).To(BeNil())
				Expect(service.IsPrecondition(err)).To(BeTrue())
				Expect(llmMock.generateCalls).To(BeEmpty())
				Expect(chatMock.posted).To(BeEmpty())
			})
		})

		Context("when posting the answer fails", func() {
			BeforeEach(func() {
				chatMock.postMessageFn = func(ctx context.Context, params chat.PostMessageParams) error {
					return errors.New("not_in_channel")
				}
			})

			It("should wrap the failure with the post stage", func() {
				result, err := svc.Run(ctx, service.SlackQAParams{TicketKey: "LEADS-7", Question: "status?"})

				Expect(result).To(BeNil())
				Expect(err).To(MatchError(ContainSubstring("post slack answer:")))
			})
		})
	})
})
