package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailku_backend/internals/features/finance/collections/binder"
	"retailku_backend/internals/features/finance/collections/collaborator"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/service"
	helper "retailku_backend/internals/helpers"
)

type fakeSubmitter struct{ err error }

func (f fakeSubmitter) Submit(context.Context, collaborator.SubmitRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "REC-77", nil
}

type fakeIssuer struct{}

func (fakeIssuer) IssueGiftVoucher(_ context.Context, req model.VoucherIssueRequest) (string, error) {
	return "GV-" + req.VoucherCode, nil
}

type envelope struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	ErrorCode string              `json:"error_code"`
	Errors    map[string][]string `json:"errors"`
	Data      json.RawMessage     `json:"data"`
}

type harness struct {
	app  *fiber.App
	user uuid.UUID
}

func newHarness(sub service.Submitter) *harness {
	h := &harness{app: fiber.New(), user: uuid.New()}
	svc := service.NewCollectionService(service.Deps{
		Binder:    binder.New(fakeIssuer{}, nil, binder.Config{}, nil),
		Submitter: sub,
	})
	ctrl := NewCollectionController(svc, nil, nil)

	h.app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-Anon") == "" {
			c.Locals(helper.LocUserID, h.user.String())
			c.Locals(helper.LocLocationID, "L-1")
		}
		return c.Next()
	})
	g := h.app.Group("/collections")
	g.Get("/methods", ctrl.ListMethods)
	g.Post("/sessions", ctrl.OpenSession)
	g.Get("/sessions/:id", ctrl.GetSession)
	g.Delete("/sessions/:id", ctrl.AbandonSession)
	g.Post("/sessions/:id/entries", ctrl.AddEntry)
	g.Patch("/sessions/:id/entries/:local_id", ctrl.MutateAmount)
	g.Delete("/sessions/:id/entries/:local_id", ctrl.RemoveEntry)
	g.Post("/sessions/:id/complete", ctrl.Complete)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, hdr ...string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env
}

func (h *harness) open(t *testing.T, body string) string {
	t.Helper()
	code, env := h.do(t, http.MethodPost, "/collections/sessions", body)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var s struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s.SessionID
}

func TestListMethods_RefundMarksVoucherCreation(t *testing.T) {
	h := newHarness(fakeSubmitter{})

	code, env := h.do(t, http.MethodGet, "/collections/methods?flow=customer_refund", "")
	require.Equal(t, http.StatusOK, code)

	var methods []struct {
		Kind          string `json:"kind"`
		CreatesRecord bool   `json:"creates_record"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &methods))
	found := false
	for _, m := range methods {
		if m.Kind == string(model.MethodGiftVoucher) {
			found = true
			assert.True(t, m.CreatesRecord)
		}
	}
	assert.True(t, found)

	code, _ = h.do(t, http.MethodGet, "/collections/methods?flow=bogus", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOpenSession_RequestValidation(t *testing.T) {
	h := newHarness(fakeSubmitter{})

	code, env := h.do(t, http.MethodPost, "/collections/sessions", `{"flow":"lottery","total_amount":10,"customer_id":"C-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_ERROR", env.ErrorCode)
	assert.Contains(t, env.Errors, "Flow")

	code, env = h.do(t, http.MethodPost, "/collections/sessions", `{"flow":"order_payment","total_amount":10,"customer_id":"C-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "reference_id")

	code, _ = h.do(t, http.MethodPost, "/collections/sessions", `{"flow":"customer_payment","total_amount":10,"customer_id":"C-1"}`, "X-Anon", "1")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAddEntry_OverRemainingIsRejected(t *testing.T) {
	h := newHarness(fakeSubmitter{})
	id := h.open(t, `{"flow":"customer_payment","total_amount":100,"customer_id":"C-1"}`)

	code, env := h.do(t, http.MethodPost, "/collections/sessions/"+id+"/entries", `{"kind":"cash","amount":100.01}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "AMOUNT_EXCEEDS_REMAINING", env.ErrorCode)
}

func TestComplete_BlockedThenSubmitted(t *testing.T) {
	h := newHarness(fakeSubmitter{})
	id := h.open(t, `{"flow":"customer_payment","total_amount":100,"customer_id":"C-1"}`)

	code, env := h.do(t, http.MethodPost, "/collections/sessions/"+id+"/entries", `{"kind":"cash","amount":60}`)
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = h.do(t, http.MethodPost, "/collections/sessions/"+id+"/complete", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUBMISSION_BLOCKED", env.ErrorCode)

	code, _ = h.do(t, http.MethodPost, "/collections/sessions/"+id+"/entries", `{"kind":"cash","amount":40}`)
	require.Equal(t, http.StatusCreated, code)

	code, env = h.do(t, http.MethodPost, "/collections/sessions/"+id+"/complete", "")
	require.Equal(t, http.StatusCreated, code, env.Message)

	var res struct {
		RecordID string          `json:"record_id"`
		Payload  json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "REC-77", res.RecordID)
	assert.JSONEq(t, `{"totalAmount":100,"cash":100}`, string(res.Payload))

	code, env = h.do(t, http.MethodPost, "/collections/sessions/"+id+"/entries", `{"kind":"cash","amount":1}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SESSION_COMPLETED", env.ErrorCode)
}

func TestComplete_SubmitFailureIsUpstreamError(t *testing.T) {
	h := newHarness(fakeSubmitter{err: collaborator.ErrUnavailable})
	id := h.open(t, `{"flow":"customer_payment","total_amount":0,"customer_id":"C-1"}`)

	code, env := h.do(t, http.MethodPost, "/collections/sessions/"+id+"/complete", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "SUBMISSION_FAILED", env.ErrorCode)
}

func TestEntryAndSessionNotFound(t *testing.T) {
	h := newHarness(fakeSubmitter{})
	id := h.open(t, `{"flow":"customer_payment","total_amount":10,"customer_id":"C-1"}`)

	code, _ := h.do(t, http.MethodDelete, "/collections/sessions/"+id+"/entries/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodPatch, "/collections/sessions/"+id+"/entries/nope", `{"amount":5}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodGet, "/collections/sessions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodGet, "/collections/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodDelete, "/collections/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodGet, "/collections/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMutateAmount_RequiresAmount(t *testing.T) {
	h := newHarness(fakeSubmitter{})
	id := h.open(t, `{"flow":"customer_payment","total_amount":10,"customer_id":"C-1"}`)

	code, env := h.do(t, http.MethodPost, "/collections/sessions/"+id+"/entries", `{"kind":"cash","amount":4}`)
	require.Equal(t, http.StatusCreated, code)
	var added struct {
		Entry struct {
			LocalID string `json:"local_id"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))

	path := "/collections/sessions/" + id + "/entries/" + added.Entry.LocalID
	code, _ = h.do(t, http.MethodPatch, path, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = h.do(t, http.MethodPatch, path, `{"amount":10}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var mut struct {
		Session struct {
			Remaining   json.Number `json:"remaining"`
			Submittable bool        `json:"submittable"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &mut))
	assert.Equal(t, "0", mut.Session.Remaining.String())
	assert.True(t, mut.Session.Submittable)
}
