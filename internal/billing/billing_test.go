package billing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/db"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/pending"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store      store.Storage
	pending    *pending.Manager
	manager    *SubscriptionManager
	reconciler *WebhookReconciler
	tenant     *models.Tenant
}

func paymentConfig() config.PaymentConfig {
	return config.PaymentConfig{MerchantID: "M1", TerminalID: "T1", SecureKey: "secret", Currency: "USD"}
}

func storages(t *testing.T) map[string]store.Storage {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	gs := store.NewGormStore(conn, 0)
	t.Cleanup(func() { _ = gs.Close() })

	return map[string]store.Storage{"file": fs, "sql": gs}
}

func newFixture(t *testing.T, s store.Storage, payment config.PaymentConfig) *fixture {
	t.Helper()
	tenant := &models.Tenant{Slug: "acme", Name: "Acme", AdminEmail: "admin@acme.test"}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	gw := gateway.NewClient(payment)
	pm := pending.NewManager(config.PendingConfig{TTL: time.Hour}, nil, func() time.Time { return fixedNow })
	m := NewSubscriptionManager(s, gw, pm)
	m.now = func() time.Time { return fixedNow }
	r := NewWebhookReconciler(s, gw, pm)
	r.now = func() time.Time { return fixedNow }
	return &fixture{store: s, pending: pm, manager: m, reconciler: r, tenant: tenant}
}

func eachStorage(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, s := range storages(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, s, paymentConfig()))
		})
	}
}

func successCallback(orderID, amount string) gateway.Callback {
	return gateway.Callback{
		OrderID:       orderID,
		Status:        "Success",
		TransactionID: "ext-" + orderID,
		Amount:        amount,
		Raw:           map[string]any{"OrderId": orderID, "Status": "Success"},
	}
}

func TestYearlySubscriptionActivatesTenant(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "yearly")
		require.NoError(t, err)
		require.True(t, res.OK())
		require.Equal(t, models.TransactionPending, res.Transaction.Status)
		require.True(t, res.Transaction.Amount.Equal(decimal.RequireFromString("99.00")))
		require.Equal(t, "99.00", res.Payment.Payload.Amount)

		record, err := f.pending.Get(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.NotNil(t, record)

		outcome, err := f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "99.00"))
		require.NoError(t, err)
		require.Equal(t, OutcomeCompleted, outcome.Code)

		tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.Equal(t, models.PlanPro, tenant.PlanID)
		require.Equal(t, models.SubscriptionActive, tenant.SubscriptionStatus)
		require.NotNil(t, tenant.SubscriptionExpiresAt)
		require.True(t, tenant.SubscriptionExpiresAt.Equal(fixedNow.AddDate(1, 0, 0)))
		require.Equal(t, res.Payment.OrderID, tenant.SubscriptionID)

		txn, err := f.store.FindTransaction(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.Equal(t, models.TransactionCompleted, txn.Status)
		require.Equal(t, "ext-"+res.Payment.OrderID, txn.ExternalID)
		require.NotEmpty(t, txn.GatewayResponse)

		record, err = f.pending.Get(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.Nil(t, record, "pending record must be cleared after completion")

		active, err := f.manager.HasActiveSubscription(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.True(t, active)
	})
}

func TestDuplicateCallbackExtendsOnce(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)

		_, err = f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "9.99"))
		require.NoError(t, err)

		f.reconciler.now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
		outcome, err := f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "9.99"))
		require.NoError(t, err)
		require.Equal(t, OutcomeDuplicate, outcome.Code)

		failedLate, err := f.reconciler.HandleCallback(ctx, gateway.Callback{OrderID: res.Payment.OrderID, Status: "failed"})
		require.NoError(t, err)
		require.Equal(t, OutcomeDuplicate, failedLate.Code)

		tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.True(t, tenant.SubscriptionExpiresAt.Equal(fixedNow.AddDate(0, 1, 0)))

		txn, err := f.store.FindTransaction(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.Equal(t, models.TransactionCompleted, txn.Status)
	})
}

func TestConcurrentDuplicateCallbacksApplyOnce(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)

		const deliveries = 8
		codes := make([]string, deliveries)
		errs := make([]error, deliveries)
		var wg sync.WaitGroup
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcome, errHandle := f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "9.99"))
				codes[i], errs[i] = outcome.Code, errHandle
			}(i)
		}
		wg.Wait()

		completed := 0
		for i := range codes {
			require.NoError(t, errs[i])
			switch codes[i] {
			case OutcomeCompleted:
				completed++
			case OutcomeDuplicate:
			default:
				t.Fatalf("unexpected outcome %q", codes[i])
			}
		}
		require.Equal(t, 1, completed)

		tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.Equal(t, models.SubscriptionActive, tenant.SubscriptionStatus)
		require.True(t, tenant.SubscriptionExpiresAt.Equal(fixedNow.AddDate(0, 1, 0)))
	})
}

func TestUnknownOrderChangesNothing(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)

		_, err = f.reconciler.HandleCallback(ctx, successCallback("SUB_nobody_1", "9.99"))
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

		_, err = f.reconciler.HandleCallback(ctx, gateway.Callback{Status: "Success"})
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

		txn, err := f.store.FindTransaction(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.Equal(t, models.TransactionPending, txn.Status)
	})
}

func TestBadSignatureLeavesTransactionPending(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)

		cb := successCallback(res.Payment.OrderID, "9.99")
		cb.Signature = "forged"
		_, err = f.reconciler.HandleCallback(ctx, cb)
		require.Equal(t, apperr.KindSignature, apperr.KindOf(err))

		txn, err := f.store.FindTransaction(ctx, res.Payment.OrderID)
		require.NoError(t, err)
		require.Equal(t, models.TransactionPending, txn.Status)

		cb.Signature = gateway.Sign("M1", "T1", res.Payment.OrderID, "9.99", "USD", "secret")
		outcome, err := f.reconciler.HandleCallback(ctx, cb)
		require.NoError(t, err)
		require.Equal(t, OutcomeCompleted, outcome.Code)
	})
}

func TestAmountMismatchRejected(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)

		_, err = f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "0.01"))
		require.Equal(t, apperr.CodeAmountMismatch, apperr.CodeOf(err))

		tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.Equal(t, models.SubscriptionInactive, tenant.SubscriptionStatus)
	})
}

func TestFailedCallbackLeavesTenant(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanEnterprise, "monthly")
		require.NoError(t, err)

		outcome, err := f.reconciler.HandleCallback(ctx, gateway.Callback{OrderID: res.Payment.OrderID, Status: "CANCELLED"})
		require.NoError(t, err)
		require.Equal(t, OutcomeFailed, outcome.Code)

		tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.Equal(t, models.PlanFree, tenant.PlanID)
		require.Nil(t, tenant.SubscriptionExpiresAt)
	})
}

func TestCallbackMaterializesPendingPayment(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		orderID := "SUB_" + f.tenant.ID + "_42"
		require.NoError(t, f.pending.Put(ctx, pending.Payment{
			OrderID:      orderID,
			TenantID:     f.tenant.ID,
			PlanID:       models.PlanPro,
			BillingCycle: models.BillingCycleMonthly,
			Amount:       decimal.RequireFromString("9.99"),
			Currency:     "USD",
		}))

		outcome, err := f.reconciler.HandleCallback(ctx, successCallback(orderID, "9.99"))
		require.NoError(t, err)
		require.Equal(t, OutcomeCompleted, outcome.Code)

		txn, err := f.store.FindTransaction(ctx, orderID)
		require.NoError(t, err)
		require.Equal(t, f.tenant.ID, txn.TenantID)
		require.Equal(t, models.TransactionCompleted, txn.Status)
	})
}

func TestMissingCredentialsReturnsFailure(t *testing.T) {
	for name, s := range storages(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, s, config.PaymentConfig{})
			ctx := context.Background()
			res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
			require.NoError(t, err)
			require.False(t, res.OK())
			require.NotNil(t, res.Failure)
			require.Equal(t, apperr.CodeMissingCredentials, res.Failure.Code)

			count, err := s.Count(ctx, store.KindTransaction, f.tenant.ID)
			require.NoError(t, err)
			require.Zero(t, count)
		})
	}
}

func TestCreateSubscriptionValidation(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, err := f.manager.CreateSubscription(ctx, f.tenant.ID, "platinum", "monthly")
		require.Equal(t, apperr.CodePlanNotFound, apperr.CodeOf(err))

		_, err = f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "weekly")
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

		_, err = f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanFree, "monthly")
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

		pro, err := f.store.GetPlan(ctx, models.PlanPro)
		require.NoError(t, err)
		pro.IsActive = false
		require.NoError(t, f.store.SavePlan(ctx, pro))
		_, err = f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestCheckLimit(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		free, err := f.store.GetPlan(ctx, models.PlanFree)
		require.NoError(t, err)

		for i := 0; i < free.MaxEmployees; i++ {
			ok, errCheck := f.manager.CheckLimit(ctx, f.tenant.ID, LimitEmployees)
			require.NoError(t, errCheck)
			require.True(t, ok)
			require.NoError(t, f.store.Create(ctx, f.tenant.ID, &models.Employee{Email: "e" + string(rune('a'+i)) + "@acme.test"}))
		}

		ok, err := f.manager.CheckLimit(ctx, f.tenant.ID, "max_employees")
		require.NoError(t, err)
		require.False(t, ok)

		err = f.manager.EnsureCanCreate(ctx, f.tenant.ID, LimitEmployees)
		require.Equal(t, apperr.CodeLimitExceeded, apperr.CodeOf(err))

		ok, err = f.manager.CheckLimit(ctx, f.tenant.ID, "storage")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = f.manager.CheckLimit(ctx, "ghost", LimitTemplates)
		require.NoError(t, err)
		require.False(t, ok)

		usage, err := f.manager.Usage(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.EqualValues(t, free.MaxEmployees, usage.Employees.Used)
		require.Equal(t, free.MaxTemplates, usage.Templates.Limit)
		require.False(t, usage.Active)
	})
}

func TestExpirySweeper(t *testing.T) {
	eachStorage(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		res, err := f.manager.CreateSubscription(ctx, f.tenant.ID, models.PlanPro, "monthly")
		require.NoError(t, err)
		_, err = f.reconciler.HandleCallback(ctx, successCallback(res.Payment.OrderID, "9.99"))
		require.NoError(t, err)

		sweeper := NewExpirySweeper(f.store, "")
		sweeper.now = func() time.Time { return fixedNow.AddDate(0, 0, 15) }
		expired, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		require.Zero(t, expired)

		sweeper.now = func() time.Time { return fixedNow.AddDate(0, 2, 0) }
		expired, err = sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, expired)

		active, err := f.manager.HasActiveSubscription(ctx, f.tenant.ID)
		require.NoError(t, err)
		require.False(t, active)
	})
}

func TestExpirySweeperRejectsBadSchedule(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Error(t, NewExpirySweeper(fs, "not a schedule").Start(ctx))
	require.NoError(t, NewExpirySweeper(fs, "@every 1h").Start(ctx))
}
