package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hongdnn/leadsync/internal/http/handler"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service"
)

var _ = Describe("DigestHandler", func() {
	var (
		router *gin.Engine
		digest *mockDigestService
		token  string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		digest = &mockDigestService{}
		token = ""
	})

	JustBeforeEach(func() {
		router = gin.New()
		h := handler.NewDigestHandler(digest, token)
		router.POST("/digest/trigger", h.Trigger)
	})

	It("runs with defaults when the body is empty", func() {
		digest.runFn = func(_ context.Context, _ service.DigestParams) (*model.RunResult, error) {
			return &model.RunResult{Raw: "posted digest covering 3 areas", Model: "gemini-2.5-flash"}, nil
		}

		w := postRaw(router, "/digest/trigger", "application/json", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decodeBody(w)
		Expect(resp["status"]).To(Equal("processed"))
		Expect(resp["model"]).To(Equal("gemini-2.5-flash"))
		Expect(resp["result"]).To(Equal("posted digest covering 3 areas"))

		Expect(digest.params).To(HaveLen(1))
		Expect(digest.params[0]).To(Equal(service.DigestParams{RunSource: "manual"}))
	})

	It("applies body overrides", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{
			"run_source":       "SCHEDULED",
			"window_minutes":   float64(60),
			"bucket_start_utc": " 2026-02-07T09:00:00Z ",
			"repo_owner":       " acme ",
			"repo_name":        " shop ",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(digest.params).To(HaveLen(1))
		Expect(digest.params[0]).To(Equal(service.DigestParams{
			WindowMinutes:  60,
			RunSource:      "scheduled",
			BucketStartUTC: "2026-02-07T09:00:00Z",
			RepoOwner:      "acme",
			RepoName:       "shop",
		}))
	})

	It("accepts window_minutes as a numeric string", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": " 90 "})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(digest.params[0].WindowMinutes).To(Equal(90))
	})

	It("truncates fractional window_minutes", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": 45.9})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(digest.params[0].WindowMinutes).To(Equal(45))
	})

	It("ignores a null window_minutes", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": nil})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(digest.params[0].WindowMinutes).To(Equal(0))
	})

	It("rejects an unknown run_source", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"run_source": "cron"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("run_source must be 'manual' or 'scheduled'."))
		Expect(digest.params).To(BeEmpty())
	})

	It("rejects non-numeric window_minutes", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": "abc"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("window_minutes must be a positive integer."))
	})

	It("rejects zero window_minutes", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": float64(0)})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("window_minutes must be a positive integer."))
	})

	It("rejects boolean window_minutes", func() {
		w := postJSON(router, "/digest/trigger", map[string]any{"window_minutes": true})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("window_minutes must be a positive integer."))
	})

	It("rejects a non-object body", func() {
		w := postRaw(router, "/digest/trigger", "application/json", "[1,2]")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("JSON body must be an object."))
	})

	It("rejects malformed JSON", func() {
		w := postRaw(router, "/digest/trigger", "application/json", "{oops")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("Invalid JSON body."))
	})

	It("maps precondition failures to 400", func() {
		digest.runFn = func(_ context.Context, _ service.DigestParams) (*model.RunResult, error) {
			return nil, service.Preconditionf("Missing required env var: SLACK_CHANNEL_ID")
		}

		w := postRaw(router, "/digest/trigger", "application/json", "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(w)["detail"]).To(Equal("Missing required env var: SLACK_CHANNEL_ID"))
	})

	It("maps other failures to 500", func() {
		digest.runFn = func(_ context.Context, _ service.DigestParams) (*model.RunResult, error) {
			return nil, errors.New("post digest to channel C123: 502")
		}

		w := postRaw(router, "/digest/trigger", "application/json", "")

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeBody(w)["detail"]).To(Equal("Crew run failed: post digest to channel C123: 502"))
	})

	Context("when a trigger token is configured", func() {
		BeforeEach(func() {
			token = " secret "
		})

		It("rejects requests without the token header", func() {
			w := postRaw(router, "/digest/trigger", "application/json", "")

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(decodeBody(w)["detail"]).To(Equal("Unauthorized digest trigger."))
			Expect(digest.params).To(BeEmpty())
		})

		It("rejects requests with the wrong token", func() {
			req := httptest.NewRequest(http.MethodPost, "/digest/trigger", bytes.NewBufferString(""))
			req.Header.Set("X-LeadSync-Trigger-Token", "guess")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(digest.params).To(BeEmpty())
		})

		It("accepts the token ignoring surrounding whitespace", func() {
			req := httptest.NewRequest(http.MethodPost, "/digest/trigger", bytes.NewBufferString(""))
			req.Header.Set("X-LeadSync-Trigger-Token", "  secret  ")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(digest.params).To(HaveLen(1))
		})
	})
})
