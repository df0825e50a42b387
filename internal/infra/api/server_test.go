//go:build !integration

package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/infra/adapters/payment"
	"jobflow/internal/infra/api"
	"jobflow/internal/infra/sse"
	"jobflow/internal/usecase"
)

const (
	testSecret = "test-secret"
	testKey    = "merchant-key"
	testSalt   = "merchant-salt"
	frontend   = "http://app.test"
)

type fixtureConfig struct {
	key, salt   string
	chatLimiter api.UserLimiter
	verify      *api.IPLimiter
}

type fixture struct {
	srv    *api.Server
	h      http.Handler
	am     *api.AuthManager
	users  *memUsers
	ledger *memLedger
	jobs   *memJobs
	flags  *memFlags
	stream *sse.Broadcaster
	ai     *fakeAI
}

func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *fixture {
	t.Helper()
	cfg := fixtureConfig{key: testKey, salt: testSalt}
	for _, o := range opts {
		o(&cfg)
	}

	log := newLogger()
	f := &fixture{
		am:     api.NewAuthManager(testSecret, time.Hour),
		users:  newMemUsers(),
		ledger: newMemLedger(),
		jobs:   &memJobs{},
		flags:  newMemFlags(model.FlagMap{"aiChat": true, "resumeReview": false}),
		stream: sse.NewBroadcaster(log),
		ai:     &fakeAI{},
	}

	gateway := payment.NewPayUGateway(cfg.key, cfg.salt, false)
	urls := usecase.PaymentURLs{
		Frontend: frontend,
		Success:  frontend + "/payment-success",
		Failure:  frontend + "/payment-failure",
	}
	settings := usecase.ChatSettings{Model: "claude-3-5-sonnet-20240620", MaxTokens: 600, Temperature: 0.6}

	srv := api.NewServer(api.Deps{
		Auth:          f.am,
		Users:         usecase.NewUserUseCase(f.users, log),
		Payments:      usecase.NewPaymentUseCase(f.users, f.ledger, gateway, memTx{}, urls, true, false, log),
		Jobs:          usecase.NewJobUseCase(f.jobs, log),
		Chat:          usecase.NewChatUseCase(f.ai, settings, log),
		Flags:         usecase.NewFeatureFlagUseCase(f.flags, memTx{}, f.stream, log),
		Stream:        f.stream,
		ChatLimiter:   cfg.chatLimiter,
		VerifyLimiter: cfg.verify,
	}, api.Options{RequestTimeout: 5 * time.Second, ChatModel: settings.Model}, log)
	f.srv = srv
	f.h = srv.Routes()
	return f
}

func (f *fixture) token(t *testing.T, sub, email, name, role string) string {
	t.Helper()
	tok, err := f.am.Mint(sub, email, name, role)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(method, path, contentType, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, path, body, token string) *httptest.ResponseRecorder {
	return f.do(method, path, "application/json", body, token)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body=%s", rec.Body.String())
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec, &m)
	return m.Message
}

// signedCallback returns a form body for a gateway response signed with testSalt.
func signedCallback(status, txnid, userID, plan string) url.Values {
	resp := &model.PayUResponse{
		Status:      status,
		TxnID:       txnid,
		Amount:      "199.00",
		ProductInfo: "JobFlow Premium",
		FirstName:   "Ada",
		Email:       "ada@example.com",
		Key:         testKey,
	}
	resp.UDF[0] = userID
	resp.UDF[1] = plan
	resp.Hash = payment.Digest(payment.ResponseHashString(resp, testSalt))

	v := url.Values{}
	v.Set("status", resp.Status)
	v.Set("txnid", resp.TxnID)
	v.Set("amount", resp.Amount)
	v.Set("productinfo", resp.ProductInfo)
	v.Set("firstname", resp.FirstName)
	v.Set("email", resp.Email)
	v.Set("key", resp.Key)
	v.Set("udf1", userID)
	v.Set("udf2", plan)
	v.Set("hash", resp.Hash)
	return v
}

//
// ---------------- tests ----------------
//

func TestAuth(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token is 401", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/me", "", "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized.", messageOf(t, rec))
	})

	t.Run("token signed with another secret is 401", func(t *testing.T) {
		other := api.NewAuthManager("other", time.Hour)
		tok, err := other.Mint("user-1", "", "", "")
		require.NoError(t, err)
		rec := f.do(http.MethodGet, "/me", "", "", tok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token is 401", func(t *testing.T) {
		tok, err := api.NewAuthManager(testSecret, -time.Minute).Mint("user-1", "", "", "")
		require.NoError(t, err)
		rec := f.do(http.MethodGet, "/me", "", "", tok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token mirrors the user and serves /me", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/me", "", "", f.token(t, "user-1", "ada@example.com", "Ada", ""))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var u model.User
		decodeBody(t, rec, &u)
		assert.Equal(t, "user-1", u.ID)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.False(t, u.IsPremium)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestPayUInit(t *testing.T) {
	t.Run("signs the form with amount to two decimals", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		tok := f.token(t, "user-1", "ada@example.com", "Ada", "")

		// --- Act ---
		rec := f.doJSON(http.MethodPost, "/payments/payu/init", `{"amount":"199","plan":"Yearly"}`, tok)

		// --- Assert ---
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Action  string            `json:"action"`
			Payload map[string]string `json:"payload"`
		}
		decodeBody(t, rec, &body)
		assert.Equal(t, "https://test.payu.in/_payment", body.Action)

		p := body.Payload
		assert.Equal(t, testKey, p["key"])
		assert.Equal(t, "199.00", p["amount"])
		assert.Equal(t, "JobFlow Premium", p["productinfo"])
		assert.Equal(t, "Ada", p["firstname"])
		assert.Equal(t, "ada@example.com", p["email"])
		assert.Equal(t, "user-1", p["udf1"])
		assert.Equal(t, "premium_yearly", p["udf2"])
		assert.Equal(t, frontend+"/payment-success", p["surl"])
		assert.Len(t, p["txnid"], 32)

		req := &model.PayURequest{
			Key: p["key"], TxnID: p["txnid"], Amount: p["amount"], ProductInfo: p["productinfo"],
			FirstName: p["firstname"], Email: p["email"],
		}
		req.UDF[0], req.UDF[1] = p["udf1"], p["udf2"]
		assert.Equal(t, payment.Digest(payment.RequestHashString(req, testSalt)), p["hash"])
	})

	t.Run("rejects a non-positive or unparsable amount", func(t *testing.T) {
		f := newFixture(t)
		tok := f.token(t, "user-1", "ada@example.com", "Ada", "")
		for _, body := range []string{`{"amount":0}`, `{"amount":"abc"}`, `{"amount":-5}`, `{}`} {
			rec := f.doJSON(http.MethodPost, "/payments/payu/init", body, tok)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Equal(t, "Invalid amount.", messageOf(t, rec))
		}
	})

	t.Run("requires an email from the body or the token", func(t *testing.T) {
		f := newFixture(t)
		tok := f.token(t, "user-1", "", "Ada", "")
		rec := f.doJSON(http.MethodPost, "/payments/payu/init", `{"amount":10}`, tok)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email is required for PayU.", messageOf(t, rec))

		rec = f.doJSON(http.MethodPost, "/payments/payu/init", `{"amount":10,"email":"x@example.com"}`, tok)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing merchant config is reported before the amount", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.key = "" })
		tok := f.token(t, "user-1", "ada@example.com", "Ada", "")
		rec := f.doJSON(http.MethodPost, "/payments/payu/init", `{"amount":"abc"}`, tok)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "PAYU_KEY or PAYU_SALT not configured.", messageOf(t, rec))
	})

	t.Run("requires authentication", func(t *testing.T) {
		f := newFixture(t)
		rec := f.doJSON(http.MethodPost, "/payments/payu/init", `{"amount":10}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPayUCallback(t *testing.T) {
	const form = "application/x-www-form-urlencoded"

	t.Run("valid success grants premium once and redirects", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		_ = f.do(http.MethodGet, "/me", "", "", f.token(t, "user-1", "ada@example.com", "Ada", ""))
		body := signedCallback("success", "txn-1", "user-1", "premium_monthly").Encode()

		// --- Act ---
		rec := f.do(http.MethodPost, "/payments/payu/callback", form, body, "")

		// --- Assert ---
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
		assert.Equal(t, frontend+"/payment-success?txnid=txn-1", rec.Header().Get("Location"))

		u, err := f.users.FindByID(context.Background(), nil, "user-1")
		require.NoError(t, err)
		require.True(t, u.IsPremium)
		require.NotNil(t, u.PremiumUntil)
		first := *u.PremiumUntil
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), first, time.Minute)

		// A replay still lands on the success page but does not extend the entitlement.
		rec = f.do(http.MethodPost, "/payments/payu/callback", form, body, "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontend+"/payment-success?txnid=txn-1", rec.Header().Get("Location"))
		u, _ = f.users.FindByID(context.Background(), nil, "user-1")
		assert.Equal(t, first, *u.PremiumUntil)
	})

	t.Run("tampered hash redirects to failure without granting", func(t *testing.T) {
		f := newFixture(t)
		_ = f.do(http.MethodGet, "/me", "", "", f.token(t, "user-1", "ada@example.com", "Ada", ""))
		v := signedCallback("success", "txn-2", "user-1", "premium_yearly")
		v.Set("amount", "1.00")

		rec := f.do(http.MethodPost, "/payments/payu/callback", form, v.Encode(), "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontend+"/payment-failure", rec.Header().Get("Location"))

		u, _ := f.users.FindByID(context.Background(), nil, "user-1")
		assert.False(t, u.IsPremium)
		assert.Empty(t, f.ledger.rows)
	})

	t.Run("signed failure status redirects to failure", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/payments/payu/callback", form, signedCallback("failure", "txn-3", "user-1", "").Encode(), "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontend+"/payment-failure", rec.Header().Get("Location"))
	})

	t.Run("JSON bodies are accepted too", func(t *testing.T) {
		f := newFixture(t)
		v := signedCallback("success", "txn-4", "", "")
		m := map[string]string{}
		for k := range v {
			m[k] = v.Get(k)
		}
		b, _ := json.Marshal(m)
		rec := f.doJSON(http.MethodPost, "/payments/payu/callback", string(b), "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontend+"/payment-success?txnid=txn-4", rec.Header().Get("Location"))
	})

	t.Run("missing fields answer in plain text", func(t *testing.T) {
		f := newFixture(t)
		v := signedCallback("success", "txn-5", "user-1", "")
		v.Del("hash")
		rec := f.do(http.MethodPost, "/payments/payu/callback", form, v.Encode(), "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing PayU fields.", strings.TrimSpace(rec.Body.String()))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	})

	t.Run("missing salt wins over missing fields", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.salt = "" })
		rec := f.do(http.MethodPost, "/payments/payu/callback", form, "", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "PAYU_SALT not configured.", strings.TrimSpace(rec.Body.String()))
	})
}

func TestPayUVerify(t *testing.T) {
	toJSON := func(v url.Values) string {
		m := map[string]string{}
		for k := range v {
			m[k] = v.Get(k)
		}
		b, _ := json.Marshal(m)
		return string(b)
	}

	t.Run("reports validity without side effects", func(t *testing.T) {
		f := newFixture(t)
		_ = f.do(http.MethodGet, "/me", "", "", f.token(t, "user-1", "ada@example.com", "Ada", ""))

		rec := f.doJSON(http.MethodPost, "/payments/payu/verify", toJSON(signedCallback("success", "t1", "user-1", "")), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out struct {
			Valid bool `json:"valid"`
		}
		decodeBody(t, rec, &out)
		assert.True(t, out.Valid)

		bad := signedCallback("success", "t1", "user-1", "")
		bad.Set("hash", strings.ToUpper(bad.Get("hash")))
		rec = f.doJSON(http.MethodPost, "/payments/payu/verify", toJSON(bad), "")
		decodeBody(t, rec, &out)
		assert.False(t, out.Valid)

		u, _ := f.users.FindByID(context.Background(), nil, "user-1")
		assert.False(t, u.IsPremium)
		assert.Empty(t, f.ledger.rows)
	})

	t.Run("missing fields is a JSON 400", func(t *testing.T) {
		f := newFixture(t)
		rec := f.doJSON(http.MethodPost, "/payments/payu/verify", `{"status":"success"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing required PayU fields.", messageOf(t, rec))
	})

	t.Run("missing salt is a JSON 500", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.salt = "" })
		rec := f.doJSON(http.MethodPost, "/payments/payu/verify", `{}`, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "PAYU_SALT not configured.", messageOf(t, rec))
	})

	t.Run("is limited per client address", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.verify = api.NewIPLimiter(0.001, 1) })
		body := toJSON(signedCallback("success", "t1", "", ""))

		rec := f.doJSON(http.MethodPost, "/payments/payu/verify", body, "")
		require.Equal(t, http.StatusOK, rec.Code)
		rec = f.doJSON(http.MethodPost, "/payments/payu/verify", body, "")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		req := httptest.NewRequest(http.MethodPost, "/payments/payu/verify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:4000"
		other := httptest.NewRecorder()
		f.h.ServeHTTP(other, req)
		assert.Equal(t, http.StatusOK, other.Code, "another address has its own bucket")
	})
}

func TestJobsAPI(t *testing.T) {
	f := newFixture(t)
	ada := f.token(t, "user-1", "ada@example.com", "Ada", "")
	bob := f.token(t, "user-2", "bob@example.com", "Bob", "")

	var created model.Job
	t.Run("create returns 201 with defaults", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/jobs", `{"company":" Acme ","role":"Go Engineer","appliedDate":"2026-10-01","checklist":[{"text":"Send CV"}]}`, ada)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeBody(t, rec, &created)
		assert.Equal(t, "Acme", created.Company)
		assert.Equal(t, model.JobStatusApplied, created.Status)
		require.NotNil(t, created.AppliedDate)
		assert.Equal(t, "2026-10-01", created.AppliedDate.Format("2006-01-02"))
		assert.Equal(t, []model.ChecklistItem{{Text: "Send CV"}}, created.Checklist)
	})

	t.Run("job ids are readable as _id and the echoed job updates", func(t *testing.T) {
		// --- Arrange ---
		carol := f.token(t, "user-3", "carol@example.com", "Carol", "")
		rec := f.doJSON(http.MethodPost, "/jobs", `{"company":"Initech","role":"SRE","appliedDate":"2026-09-01"}`, carol)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var job map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		require.Equal(t, job["id"], job["_id"])

		// --- Act ---
		job["status"] = "Interview"
		body, err := json.Marshal(job)
		require.NoError(t, err)
		rec = f.doJSON(http.MethodPut, "/jobs/"+job["_id"].(string), string(body), carol)

		// --- Assert ---
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated model.Job
		decodeBody(t, rec, &updated)
		assert.Equal(t, job["id"], updated.ID)
		assert.Equal(t, model.JobStatusInterview, updated.Status)
		require.NotNil(t, updated.AppliedDate)
		assert.Equal(t, "2026-09-01", updated.AppliedDate.Format("2006-01-02"))
	})

	t.Run("duplicate company and role is 409", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/jobs", `{"company":"ACME","role":"go engineer"}`, ada)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Duplicate job detected for this company and role.", messageOf(t, rec))
	})

	t.Run("bad input is 400", func(t *testing.T) {
		cases := map[string]string{
			"status":  `{"company":"X","role":"Y","status":"Ghosted"}`,
			"date":    `{"company":"X","role":"Y","appliedDate":"yesterday"}`,
			"length":  `{"company":"` + strings.Repeat("x", 201) + `"}`,
			"garbage": `{`,
		}
		for name, body := range cases {
			rec := f.doJSON(http.MethodPost, "/jobs", body, ada)
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		}
		rec := f.doJSON(http.MethodPost, "/jobs", cases["length"], ada)
		assert.Equal(t, "field company exceeds 200", messageOf(t, rec))
	})

	t.Run("list is scoped to the caller and searchable", func(t *testing.T) {
		_ = f.doJSON(http.MethodPost, "/jobs", `{"company":"Globex","role":"Designer","jobDescription":"Figma"}`, ada)
		_ = f.doJSON(http.MethodPost, "/jobs", `{"company":"Acme","role":"Go Engineer"}`, bob)

		rec := f.doJSON(http.MethodGet, "/jobs", "", ada)
		require.Equal(t, http.StatusOK, rec.Code)
		var all []model.Job
		decodeBody(t, rec, &all)
		assert.Len(t, all, 2)

		rec = f.doJSON(http.MethodGet, "/jobs?q="+url.QueryEscape(" figma "), "", ada)
		var hits []model.Job
		decodeBody(t, rec, &hits)
		require.Len(t, hits, 1)
		assert.Equal(t, "Globex", hits[0].Company)

		rec = f.doJSON(http.MethodGet, "/jobs?q=nothing", "", ada)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("update is 404 for another user's job", func(t *testing.T) {
		rec := f.doJSON(http.MethodPut, "/jobs/"+created.ID, `{"company":"Acme","role":"Go Engineer","status":"Offer"}`, bob)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = f.doJSON(http.MethodPut, "/jobs/"+created.ID, `{"company":"Acme","role":"Go Engineer","status":"Offer","pinned":true}`, ada)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var j model.Job
		decodeBody(t, rec, &j)
		assert.Equal(t, model.JobStatusOffer, j.Status)
		assert.True(t, j.Pinned)
	})

	t.Run("delete answers with a message", func(t *testing.T) {
		rec := f.doJSON(http.MethodDelete, "/jobs/"+created.ID, "", ada)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Job deleted", messageOf(t, rec))
	})
}

func TestChatAPI(t *testing.T) {
	t.Run("relays the reply with usage", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		var got adapter.ChatRequest
		f.ai.chat = func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
			got = req
			return &adapter.ChatResponse{
				Text:     " Quantify impact. ",
				Model:    req.Model,
				Provider: "anthropic",
				Usage:    &adapter.Usage{InputTokens: 20, OutputTokens: 4},
			}, nil
		}
		tok := f.token(t, "user-1", "ada@example.com", "Ada", "")

		// --- Act ---
		rec := f.doJSON(http.MethodPost, "/chat", `{"messages":[null,{"role":"system","content":" resume tips? "}]}`, tok)

		// --- Assert ---
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"reply":"Quantify impact.","model":"claude-3-5-sonnet-20240620","usage":{"input_tokens":20,"output_tokens":4}}`, rec.Body.String())
		assert.Equal(t, []adapter.Message{{Role: "user", Content: "resume tips?"}}, got.Messages)
	})

	t.Run("passes the provider usage object through", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		usage := `{"input_tokens":20,"output_tokens":4,"cache_read_input_tokens":16,"service_tier":"standard"}`
		f.ai.chat = func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
			return &adapter.ChatResponse{
				Text:     "ok",
				Model:    req.Model,
				Provider: "anthropic",
				Usage:    &adapter.Usage{InputTokens: 20, OutputTokens: 4, Raw: []byte(usage)},
			}, nil
		}

		// --- Act ---
		rec := f.doJSON(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`, f.token(t, "user-1", "", "", ""))

		// --- Assert ---
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"reply":"ok","model":"claude-3-5-sonnet-20240620","usage":`+usage+`}`, rec.Body.String())
	})

	t.Run("empty history is 400", func(t *testing.T) {
		f := newFixture(t)
		tok := f.token(t, "user-1", "", "", "")
		for _, body := range []string{`{}`, `{"messages":"hi"}`, `{"messages":[{"role":"user","content":"  "}]}`} {
			rec := f.doJSON(http.MethodPost, "/chat", body, tok)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Equal(t, "Message is required.", messageOf(t, rec))
		}
	})

	t.Run("missing key is 500 even without messages", func(t *testing.T) {
		f := newFixture(t)
		f.ai.ready = func(string) error { return domain.MissingConfig("ANTHROPIC_API_KEY not set.") }
		rec := f.doJSON(http.MethodPost, "/chat", `{}`, f.token(t, "user-1", "", "", ""))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "ANTHROPIC_API_KEY not set.", messageOf(t, rec))
	})

	t.Run("upstream status and message are mirrored", func(t *testing.T) {
		f := newFixture(t)
		f.ai.chat = func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
			return nil, &domain.UpstreamError{Provider: "anthropic", Status: 429, Message: "Number of requests exceeded."}
		}
		rec := f.doJSON(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`, f.token(t, "user-1", "", "", ""))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "Number of requests exceeded.", messageOf(t, rec))
	})

	t.Run("unreachable upstream is 502", func(t *testing.T) {
		f := newFixture(t)
		f.ai.chat = func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
			return nil, &domain.UpstreamError{Provider: "anthropic", Message: "Claude request failed."}
		}
		rec := f.doJSON(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`, f.token(t, "user-1", "", "", ""))
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Claude request failed.", messageOf(t, rec))
	})

	t.Run("per-user window is enforced", func(t *testing.T) {
		lim := &fakeLimiter{allow: false}
		f := newFixture(t, func(c *fixtureConfig) { c.chatLimiter = lim })
		rec := f.doJSON(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`, f.token(t, "user-9", "", "", ""))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, []string{"rate_limit:chat:user-9"}, lim.keys)
	})
}

func TestFeatureFlagsAPI(t *testing.T) {
	t.Run("list returns the flag map", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/feature-flags", "", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"flags":{"aiChat":true,"resumeReview":false}}`, rec.Body.String())
	})

	t.Run("admin update requires the admin role", func(t *testing.T) {
		f := newFixture(t)
		rec := f.doJSON(http.MethodPut, "/admin/feature-flags/aiChat", `{"enabled":false}`, f.token(t, "user-1", "", "", ""))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.doJSON(http.MethodPut, "/admin/feature-flags/aiChat", `{}`, f.token(t, "admin-1", "", "", api.RoleAdmin))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "field enabled is required", messageOf(t, rec))
	})

	t.Run("admin update broadcasts the full map", func(t *testing.T) {
		f := newFixture(t)
		sub := &recordingSub{}
		f.stream.Add(sub)

		rec := f.doJSON(http.MethodPut, "/admin/feature-flags/resumeReview", `{"enabled":true}`, f.token(t, "admin-1", "", "", api.RoleAdmin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"flags":{"aiChat":true,"resumeReview":true}}`, rec.Body.String())
		assert.Equal(t, []string{"data: {\"flags\":{\"aiChat\":true,\"resumeReview\":true}}\n\n"}, sub.Frames())
	})

	t.Run("stream delivers the retry hint and later broadcasts", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		ts := httptest.NewServer(f.h)
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/feature-flags/stream")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

		rd := bufio.NewReader(resp.Body)
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "retry: 10000\n", line)
		require.Eventually(t, func() bool { return f.stream.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

		// --- Act ---
		require.NoError(t, f.stream.Publish(context.Background(), model.FlagMap{"aiChat": false}))

		// --- Assert ---
		var data string
		for data == "" {
			line, err = rd.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				data = line
			}
		}
		assert.Equal(t, "data: {\"flags\":{\"aiChat\":false}}\n", data)

		resp.Body.Close()
		require.Eventually(t, func() bool { return f.stream.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestShutdownWithOpenStream(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- f.srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/feature-flags/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return f.stream.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// --- Act ---
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	err = f.srv.Shutdown(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, f.stream.Len())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/nope", "", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
