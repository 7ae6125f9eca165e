package front

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/pending"
	"github.com/router-for-me/BizCardCloud/internal/ratelimit"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
	"github.com/stretchr/testify/require"
)

var limiterNow = time.Unix(1700000000, 0)

type harness struct {
	engine        *gin.Engine
	store         store.Storage
	tenants       *tenant.Service
	subscriptions *billing.SubscriptionManager
}

func newHarness(t *testing.T, limits ratelimit.Settings) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := store.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	tenants := tenant.NewService(s, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	gw := gateway.NewClient(config.PaymentConfig{MerchantID: "M1", TerminalID: "T1", SecureKey: "secret"})
	pm := pending.NewManager(config.PendingConfig{TTL: time.Hour}, nil, nil)
	subscriptions := billing.NewSubscriptionManager(s, gw, pm)

	r := gin.New()
	RegisterFrontRoutes(r, api.Deps{
		Store:         s,
		Tenants:       tenants,
		Subscriptions: subscriptions,
		Reconciler:    billing.NewWebhookReconciler(s, gw, pm),
		Limiter:       ratelimit.NewManager(limits, nil, func() time.Time { return limiterNow }),
	})
	return &harness{engine: r, store: s, tenants: tenants, subscriptions: subscriptions}
}

func (h *harness) serve(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignupAndLogin(t *testing.T) {
	h := newHarness(t, ratelimit.Settings{})

	w, body := h.serve(jsonRequest(http.MethodPost, "/v0/tenants/signup", `{"name":"Acme Corp","admin_email":"boss@acme.com","password":"secret1"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotEmpty(t, body["token"])
	require.NotContains(t, w.Body.String(), "password_hash")
	created := body["tenant"].(map[string]any)
	require.Equal(t, "acme-corp", created["slug"])
	require.Equal(t, "free", created["plan_id"])

	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/tenants/login", `{"slug":"acme-corp","email":"boss@acme.com","password":"secret1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, body["token"])

	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/tenants/login", `{"email":"boss@acme.com","password":"nope-nope"}`))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_credentials", body["code"])

	w, _ = h.serve(jsonRequest(http.MethodPost, "/v0/tenants/signup", `{"name":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlansListsActivePlans(t *testing.T) {
	h := newHarness(t, ratelimit.Settings{})
	enterprise, err := h.store.GetPlan(context.Background(), models.PlanEnterprise)
	require.NoError(t, err)
	enterprise.IsActive = false
	require.NoError(t, h.store.SavePlan(context.Background(), enterprise))

	w, body := h.serve(httptest.NewRequest(http.MethodGet, "/v0/plans", nil))
	require.Equal(t, http.StatusOK, w.Code)
	plans := body["plans"].([]any)
	require.Len(t, plans, 2)
	pro := plans[1].(map[string]any)
	require.Equal(t, "pro", pro["id"])
	require.Equal(t, "99.00", pro["price_yearly"])
}

func TestCompanyCardFlow(t *testing.T) {
	h := newHarness(t, ratelimit.Settings{})
	ctx := context.Background()
	session, err := h.tenants.Signup(ctx, tenant.SignupInput{Name: "Acme", AdminEmail: "admin@acme.com", Password: "secret1"})
	require.NoError(t, err)
	tenantID := session.Tenant.ID

	employee := &models.Employee{Email: "bob@acme.com", NameEn: "Bob"}
	require.NoError(t, h.store.Create(ctx, tenantID, employee))
	front := &models.Template{Name: "Front", Side: models.SideFront}
	require.NoError(t, h.store.Create(ctx, tenantID, front))
	require.NoError(t, h.store.ActivateTemplate(ctx, tenantID, front.ID, models.SideFront))

	w, body := h.serve(httptest.NewRequest(http.MethodGet, "/v0/t/acme/employees/lookup?email=BOB@acme.com", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, employee.ID, body["id"])

	w, body = h.serve(httptest.NewRequest(http.MethodGet, "/v0/t/acme/employees/lookup?email=eve@acme.com", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "employee_not_found", body["code"])

	w, body = h.serve(httptest.NewRequest(http.MethodGet, "/v0/t/acme/templates/active", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, front.ID, body["front"].(map[string]any)["id"])
	require.Nil(t, body["back"])

	w, _ = h.serve(jsonRequest(http.MethodPost, "/v0/t/acme/cards", `{"employee_id":"`+employee.ID+`","front_template_id":"`+front.ID+`","front_file":"f.png"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	count, err := h.store.Count(ctx, store.KindGeneratedCard, tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	w, _ = h.serve(jsonRequest(http.MethodPost, "/v0/t/acme/cards", `{"employee_id":"missing"}`))
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.serve(jsonRequest(http.MethodPost, "/v0/t/acme/cards", `{"employee_id":"`+employee.ID+`","back_template_id":"`+front.ID+`"}`))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	other, err := h.tenants.Signup(ctx, tenant.SignupInput{Name: "Globex", AdminEmail: "admin@globex.com", Password: "secret1"})
	require.NoError(t, err)
	foreign := &models.Template{Name: "Foreign", Side: models.SideFront}
	require.NoError(t, h.store.Create(ctx, other.Tenant.ID, foreign))
	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/t/acme/cards", `{"employee_id":"`+employee.ID+`","front_template_id":"`+foreign.ID+`"}`))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "template_not_found", body["code"])
	count, err = h.store.Count(ctx, store.KindGeneratedCard, tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	w, _ = h.serve(httptest.NewRequest(http.MethodGet, "/v0/t/ghost/templates/active", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentCallbackAlwaysAcknowledges(t *testing.T) {
	h := newHarness(t, ratelimit.Settings{})
	ctx := context.Background()
	session, err := h.tenants.Signup(ctx, tenant.SignupInput{Name: "Acme", AdminEmail: "admin@acme.com", Password: "secret1"})
	require.NoError(t, err)
	res, err := h.subscriptions.CreateSubscription(ctx, session.Tenant.ID, models.PlanPro, "monthly")
	require.NoError(t, err)
	orderID := res.Payment.OrderID

	w, body := h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `{"OrderId":"SUB_unknown_1","Status":"Success"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "transaction_not_found", body["code"])

	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `not json`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "invalid_payload", body["code"])

	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `{"OrderId":"`+orderID+`","Status":"Success","Amount":"9.99","Signature":"bad"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "bad_signature", body["code"])

	form := url.Values{}
	form.Set("order_id", orderID)
	form.Set("status", "success")
	form.Set("amount", "9.99")
	form.Set("transaction_id", "ext-1")
	req := httptest.NewRequest(http.MethodPost, "/v0/payments/amwal/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Signature", gateway.Sign("M1", "T1", orderID, "9.99", "USD", "secret"))
	w, body = h.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, billing.OutcomeCompleted, body["code"])

	w, body = h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `{"order_id":"`+orderID+`","status":"success","amount":"9.99"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, billing.OutcomeDuplicate, body["code"])

	active, err := h.subscriptions.HasActiveSubscription(ctx, session.Tenant.ID)
	require.NoError(t, err)
	require.True(t, active)
}

func TestWebhookRateLimited(t *testing.T) {
	h := newHarness(t, ratelimit.Settings{WebhookLimit: 1})
	w, _ := h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `{}`))
	require.Equal(t, http.StatusOK, w.Code)
	w, body := h.serve(jsonRequest(http.MethodPost, "/v0/webhooks/payment", `{}`))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "rate_limited", body["code"])
}
