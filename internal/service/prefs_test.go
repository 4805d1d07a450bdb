package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
)

var _ = Describe("NormalizeTokens", func() {
	It("should lowercase and expand values into sub-tokens", func() {
		Expect(service.NormalizeTokens([]string{"Front-End"})).To(Equal([]string{"front-end", "front", "end"}))
	})

	It("should keep single-word values as one token pair", func() {
		Expect(service.NormalizeTokens([]string{"Backend"})).To(Equal([]string{"backend", "backend"}))
	})

	It("should skip blank values", func() {
		Expect(service.NormalizeTokens([]string{"  ", ""})).To(BeEmpty())
	})
})

var _ = Describe("PreferenceService", func() {
	var (
		ctx      context.Context
		docsMock *mockDocsService
		cfg      config.GoogleDocsConfig
		svc      service.PreferenceService
	)

	BeforeEach(func() {
		ctx = context.Background()
		docsMock = &mockDocsService{
			fetchPlainTextFn: func(ctx context.Context, documentID string) (string, error) {
				return "  Use context propagation everywhere.  ", nil
			},
		}
		cfg = config.GoogleDocsConfig{
			FrontendDocID: "doc-frontend",
			BackendDocID:  "doc-backend",
			DatabaseDocID: "doc-database",
		}
	})

	JustBeforeEach(func() {
		svc = service.NewPreferenceService(docsMock, cfg)
	})

	Describe("ResolveCategory", func() {
		It("should route frontend tokens before anything else", func() {
			Expect(svc.ResolveCategory([]string{"UI"}, nil)).To(Equal(model.PreferenceCategoryFrontend))
			Expect(svc.ResolveCategory([]string{"react-app"}, nil)).To(Equal(model.PreferenceCategoryFrontend))
			Expect(svc.ResolveCategory(nil, []string{"Web Client"})).To(Equal(model.PreferenceCategoryFrontend))
		})

		It("should route database tokens", func() {
			Expect(svc.ResolveCategory([]string{"schema-migration"}, nil)).To(Equal(model.PreferenceCategoryDatabase))
			Expect(svc.ResolveCategory(nil, []string{"Postgres"})).To(Equal(model.PreferenceCategoryDatabase))
		})

		It("should prefer frontend over database when both match", func() {
			Expect(svc.ResolveCategory([]string{"db"}, []string{"ui"})).To(Equal(model.PreferenceCategoryFrontend))
		})

		It("should default to backend", func() {
			Expect(svc.ResolveCategory([]string{"observability"}, nil)).To(Equal(model.PreferenceCategoryBackend))
			Expect(svc.ResolveCategory(nil, nil)).To(Equal(model.PreferenceCategoryBackend))
		})
	})

	Describe("LoadForCategory", func() {
		It("should fetch the category document and trim it", func() {
			var fetchedID string
			docsMock.fetchPlainTextFn = func(ctx context.Context, documentID string) (string, error) {
				fetchedID = documentID
				return "  Use context propagation everywhere.  ", nil
			}

			text, err := svc.LoadForCategory(ctx, model.PreferenceCategoryDatabase)

			Expect(err).NotTo(HaveOccurred())
			Expect(fetchedID).To(Equal("doc-database"))
			Expect(text).To(Equal("Use context propagation everywhere."))
		})

		Context("when the category document is not configured", func() {
			BeforeEach(func() {
				cfg.FrontendDocID = ""
			})

			It("should fail with the env var precondition", func() {
				_, err := svc.LoadForCategory(ctx, model.PreferenceCategoryFrontend)

				Expect(service.IsPrecondition(err)).To(BeTrue())
				Expect(err.Error()).To(Equal("LEADSYNC_FRONTEND_PREFS_DOC_ID is required"))
			})
		})

		Context("when the fetch fails", func() {
			BeforeEach(func() {
				docsMock.fetchPlainTextFn = func(ctx context.Context, documentID string) (string, error) {
					return "", errors.New("401 unauthorized")
				}
			})

			It("should wrap the failure as a precondition", func() {
				_, err := svc.LoadForCategory(ctx, model.PreferenceCategoryBackend)

				Expect(service.IsPrecondition(err)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("Failed to fetch Google Docs preferences for backend"))
				Expect(err.Error()).To(ContainSubstring("401 unauthorized"))
			})
		})

		Context("when the document is empty", func() {
			BeforeEach(func() {
				docsMock.fetchPlainTextFn = func(ctx context.Context, documentID string) (string, error) {
					return "   \n  ", nil
				}
			})

			It("should fail with the empty-document precondition", func() {
				_, err := svc.LoadForCategory(ctx, model.PreferenceCategoryBackend)

				Expect(service.IsPrecondition(err)).To(BeTrue())
				Expect(err.Error()).To(Equal("Google Docs preferences for backend are empty."))
			})
		})
	})
})

var _ = Describe("SelectRulesetFile", func() {
	It("should pick the frontend ruleset for frontend tokens", func() {
		Expect(service.SelectRulesetFile([]string{"UI"}, nil)).To(Equal("frontend-ruleset.md"))
	})

	It("should pick the database ruleset for schema tokens", func() {
		Expect(service.SelectRulesetFile([]string{"schema"}, nil)).To(Equal("db-ruleset.md"))
	})

	It("should not route the docs-only web alias", func() {
		Expect(service.SelectRulesetFile([]string{"web"}, nil)).To(Equal("backend-ruleset.md"))
	})

	It("should default to the backend ruleset", func() {
		Expect(service.SelectRulesetFile(nil, nil)).To(Equal("backend-ruleset.md"))
	})
})

var _ = Describe("LoadRulesetContent", func() {
	It("should load every embedded ruleset", func() {
		for _, name := range []string{"backend-ruleset.md", "frontend-ruleset.md", "db-ruleset.md"} {
			Expect(service.LoadRulesetContent(name)).NotTo(BeEmpty(), name)
		}
	})

	It("should return empty for unknown templates", func() {
		Expect(service.LoadRulesetContent("missing-ruleset.md")).To(BeEmpty())
	})
})
