package service_test

import (
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/core/db"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
	"github.com/hongdnn/leadsync/internal/store"
)

func strPtr(s string) *string { return &s }

var _ = Describe("Recorder", func() {
	var (
		ctx      context.Context
		database *db.DB
		stores   *store.Stores
		recorder *service.Recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		database, err = db.New(ctx, db.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { database.Close() })

		stores = store.NewStores(database.SQL())
		recorder = service.NewRecorder(stores, true, nil)
	})

	It("is enabled only with stores and the flag", func() {
		Expect(recorder.Enabled()).To(BeTrue())
		Expect(service.NewRecorder(stores, false, nil).Enabled()).To(BeFalse())
		Expect(service.NewRecorder(nil, true, nil).Enabled()).To(BeFalse())
	})

	It("persists events", func() {
		recorder.RecordEvent(ctx, &model.Event{
			EventType: model.EventTypeDailyDigestPosted,
			Workflow:  model.WorkflowDigest,
			TicketKey: strPtr("LEADS-42"),
			Payload:   json.RawMessage(`{"channel":"C123"}`),
		})

		events, err := stores.Events().ListByWorkflow(ctx, model.WorkflowDigest, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].EventType).To(Equal(model.EventTypeDailyDigestPosted))
		Expect(events[0].TicketKey).To(HaveValue(Equal("LEADS-42")))
	})

	It("persists memory items", func() {
		recorder.RecordMemoryItem(ctx, &model.MemoryItem{
			Workflow:  model.WorkflowTicketEnrichment,
			ItemType:  model.MemoryItemTypeTicketEnrichment,
			TicketKey: strPtr("LEADS-1"),
			Summary:   "Implemented export endpoint",
		})

		items, err := stores.MemoryItems().ListByTicket(ctx, "LEADS-1", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Summary).To(Equal("Implemented export endpoint"))
	})

	It("skips writes when disabled", func() {
		disabled := service.NewRecorder(stores, false, nil)
		disabled.RecordEvent(ctx, &model.Event{
			EventType: model.EventTypeDailyDigestPosted,
			Workflow:  model.WorkflowDigest,
		})

		events, err := stores.Events().ListByWorkflow(ctx, model.WorkflowDigest, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("logs and continues when the store fails", func() {
		Expect(database.Close()).To(Succeed())

		recorder.RecordEvent(ctx, &model.Event{
			EventType: model.EventTypeDailyDigestPosted,
			Workflow:  model.WorkflowDigest,
		})
		recorder.RecordMemoryItem(ctx, &model.MemoryItem{
			Workflow: model.WorkflowDigest,
			ItemType: model.MemoryItemTypeDigestArea,
			Summary:  "dropped",
		})
	})
})

var _ = Describe("MemoryQueryService", func() {
	var (
		ctx    context.Context
		stores *store.Stores
		svc    service.MemoryQueryService
	)

	BeforeEach(func() {
		ctx = context.Background()
		database, err := db.New(ctx, db.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { database.Close() })

		stores = store.NewStores(database.SQL())
		svc = service.NewMemoryQueryService(stores)
	})

	Describe("SlackMemoryContext", func() {
		It("renders placeholder lines on an empty store", func() {
			text, err := svc.SlackMemoryContext(ctx, service.MemoryContextParams{
				TicketKey:  "LEADS-9",
				ProjectKey: "LEADS",
				Label:      "payments",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Memory Context\n" +
				"Ticket Memory:\n" +
				"- None.\n" +
				"Recent Digest Signals:\n" +
				"- None.\n" +
				"Similar Q&A:\n" +
				"- None."))
		})

		It("renders the three seeded sections", func() {
			_, err := stores.MemoryItems().Create(ctx, &model.MemoryItem{
				Workflow:  model.WorkflowTicketEnrichment,
				ItemType:  model.MemoryItemTypeTicketEnrichment,
				TicketKey: strPtr("LEADS-9"),
				Summary:   "Implemented export endpoint",
				Decision:  strPtr("Stream rows in batches."),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = stores.MemoryItems().Create(ctx, &model.MemoryItem{
				Workflow: model.WorkflowDigest,
				ItemType: model.MemoryItemTypeDigestArea,
				RepoKey:  strPtr("acme/shop"),
				Summary:  "API: export work landed",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = stores.MemoryItems().Create(ctx, &model.MemoryItem{
				Workflow:  model.WorkflowSlackQA,
				ItemType:  model.MemoryItemTypeSlackQA,
				TicketKey: strPtr("LEADS-2"),
				Label:     strPtr("payments"),
				Summary:   "Deployed behind a flag",
				Context:   json.RawMessage(`{"question":"when does it ship?"}`),
			})
			Expect(err).NotTo(HaveOccurred())

			text, err := svc.SlackMemoryContext(ctx, service.MemoryContextParams{
				TicketKey: "LEADS-9",
				Label:     "payments",
			})

			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(text, "\n")
			Expect(lines).To(HaveLen(7))
			Expect(lines[0]).To(Equal("Memory Context"))
			Expect(lines[1]).To(Equal("Ticket Memory:"))
			Expect(lines[2]).To(HaveSuffix(" | Implemented export endpoint | Decision: Stream rows in batches."))
			Expect(lines[3]).To(Equal("Recent Digest Signals:"))
			Expect(lines[4]).To(HaveSuffix(" | API: export work landed | Follow-up: No follow-up noted."))
			Expect(lines[5]).To(Equal("Similar Q&A:"))
			Expect(lines[6]).To(Equal("- LEADS-2 | Deployed behind a flag | Q: when does it ship?"))
		})

		It("skips the similar lookup without a label", func() {
			_, err := stores.MemoryItems().Create(ctx, &model.MemoryItem{
				Workflow:  model.WorkflowSlackQA,
				ItemType:  model.MemoryItemTypeSlackQA,
				TicketKey: strPtr("LEADS-2"),
				Label:     strPtr("payments"),
				Summary:   "Deployed behind a flag",
			})
			Expect(err).NotTo(HaveOccurred())

			text, err := svc.SlackMemoryContext(ctx, service.MemoryContextParams{TicketKey: "LEADS-9"})

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(HaveSuffix("Similar Q&A:\n- None."))
		})
	})

	Describe("LeaderRulesText", func() {
		It("returns empty without rules", func() {
			text, err := svc.LeaderRulesText(ctx, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
		})

		It("renders rules most recent first", func() {
			for _, rule := range []string{"Always add tests", "Prefer smaller services"} {
				_, err := stores.MemoryItems().Create(ctx, &model.MemoryItem{
					Workflow: model.WorkflowSlackPrefs,
					ItemType: model.MemoryItemTypeLeaderRule,
					Summary:  rule,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			text, err := svc.LeaderRulesText(ctx, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("General Leader Rules:\n- Prefer smaller services\n- Always add tests"))
		})
	})
})

var _ = Describe("LeaderRuleService", func() {
	var (
		ctx    context.Context
		stores *store.Stores
	)

	BeforeEach(func() {
		ctx = context.Background()
		database, err := db.New(ctx, db.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { database.Close() })

		stores = store.NewStores(database.SQL())
	})

	It("rejects saves while memory is disabled", func() {
		err := service.NewLeaderRuleService(stores, false).Save(ctx, "Ship behind a flag.")

		Expect(err).To(MatchError("Memory is disabled."))
		Expect(service.IsPrecondition(err)).To(BeTrue())
	})

	It("stores the rule without a label", func() {
		err := service.NewLeaderRuleService(stores, true).Save(ctx, "Ship behind a flag.")

		Expect(err).NotTo(HaveOccurred())
		rules, err := stores.MemoryItems().ListLeaderRules(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(HaveLen(1))
		Expect(rules[0].Summary).To(Equal("Ship behind a flag."))
		Expect(rules[0].Workflow).To(Equal(model.WorkflowSlackPrefs))
		Expect(rules[0].ItemType).To(Equal(model.MemoryItemTypeLeaderRule))
	})
})
