package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/models"
)

const (
	tenantsFile = "tenants.json"
	plansFile   = "plans.json"
	ordersFile  = "orders.json"
	tenantsDir  = "tenants"
)

// FileStore keeps each tenant's collections in JSON documents under
// <dir>/tenants/<tenantID>/. Tenant, plan and order-index documents live at
// the top of dir. Writes to one tenant are serialized by a per-tenant mutex;
// top-level documents by a global mutex, always taken after the tenant one.
type FileStore struct {
	dir       string
	retention int
	now       func() time.Time

	tenantLocks *KeyedMutex
	globalMu    sync.Mutex
}

// NewFileStore prepares dir and returns a FileStore rooted there.
func NewFileStore(dir string, retention int) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, apperr.Configuration(apperr.CodeStorageUnavailable, "file store", "data dir is required")
	}
	if errMkdir := os.MkdirAll(filepath.Join(dir, tenantsDir), 0o700); errMkdir != nil {
		return nil, apperr.Wrap(errMkdir, apperr.KindConfiguration, apperr.CodeStorageUnavailable, "file store: prepare data dir")
	}
	if retention <= 0 {
		retention = models.DefaultCardRetention
	}
	return &FileStore{
		dir:         dir,
		retention:   retention,
		now:         time.Now,
		tenantLocks: NewKeyedMutex(),
	}, nil
}

// Backend reports the backend name.
func (s *FileStore) Backend() string { return BackendFile }

// Close is a no-op; every write is flushed before it returns.
func (s *FileStore) Close() error { return nil }

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *FileStore) collectionPath(tenantID string, kind Kind) string {
	return filepath.Join(s.dir, tenantsDir, tenantID, string(kind)+".json")
}

// checkTenantID rejects empty ids and ids that would escape the tenant directory.
func checkTenantID(op, tenantID string) error {
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	if tenantID == "." || tenantID == ".." || strings.ContainsAny(tenantID, `/\`) {
		return apperr.Validation(op, "invalid tenant id %q", tenantID)
	}
	return nil
}

func checkScope(op string, kind Kind, tenantID string) error {
	if err := validKind(op, kind); err != nil {
		return err
	}
	return checkTenantID(op, tenantID)
}

func loadCollection[T any](path string) ([]T, error) {
	var items []T
	if _, err := readJSON(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func toRecords[T any, PT interface {
	*T
	Record
}](items []T) []Record {
	out := make([]Record, 0, len(items))
	for i := range items {
		out = append(out, PT(&items[i]))
	}
	return out
}

func (s *FileStore) loadRecords(tenantID string, kind Kind) ([]Record, error) {
	path := s.collectionPath(tenantID, kind)
	switch kind {
	case KindEmployee:
		items, err := loadCollection[models.Employee](path)
		return toRecords[models.Employee, *models.Employee](items), err
	case KindTemplate:
		items, err := loadCollection[models.Template](path)
		return toRecords[models.Template, *models.Template](items), err
	case KindGeneratedCard:
		items, err := loadCollection[models.GeneratedCard](path)
		return toRecords[models.GeneratedCard, *models.GeneratedCard](items), err
	case KindTransaction:
		items, err := loadCollection[models.PaymentTransaction](path)
		return toRecords[models.PaymentTransaction, *models.PaymentTransaction](items), err
	default:
		return nil, apperr.Validation("file store", "unknown entity kind %q", kind)
	}
}

func (s *FileStore) saveRecords(tenantID string, kind Kind, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	return writeJSON(s.collectionPath(tenantID, kind), recs)
}

// Get loads one tenant-owned record.
func (s *FileStore) Get(_ context.Context, kind Kind, tenantID, id string) (Record, error) {
	const op = "file store: get"
	if err := checkScope(op, kind, tenantID); err != nil {
		return nil, err
	}
	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	for _, rec := range recs {
		if rec.EntityID() == id {
			return rec, nil
		}
	}
	return nil, notFound(kind, id)
}

// List loads tenant-owned records matching filter.
func (s *FileStore) List(_ context.Context, kind Kind, tenantID string, filter Filter) ([]Record, error) {
	const op = "file store: list"
	if err := checkScope(op, kind, tenantID); err != nil {
		return nil, err
	}
	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if matchFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	sortRecords(kind, out)
	return paginate(out, filter), nil
}

// Count returns the number of records of kind owned by the tenant.
func (s *FileStore) Count(_ context.Context, kind Kind, tenantID string) (int64, error) {
	const op = "file store: count"
	if err := checkScope(op, kind, tenantID); err != nil {
		return 0, err
	}
	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	return int64(len(recs)), nil
}

// Create inserts a tenant-owned record.
func (s *FileStore) Create(ctx context.Context, tenantID string, rec Record) error {
	const op = "file store: create"
	if err := checkTenantID(op, tenantID); err != nil {
		return err
	}
	if entry, ok := rec.(*models.GeneratedCard); ok {
		return s.RecordGeneratedCard(ctx, tenantID, entry)
	}
	kind, err := KindOf(rec)
	if err != nil {
		return err
	}
	if errPrepare := prepareCreate(tenantID, rec, s.clock()); errPrepare != nil {
		return errPrepare
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	if errTenant := s.tenantExists(tenantID); errTenant != nil {
		return errTenant
	}
	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	for _, existing := range recs {
		if existing.EntityID() == rec.EntityID() {
			return apperr.Conflict(apperr.CodeDuplicate, op, "%s %q already exists", kind, rec.EntityID())
		}
	}
	if employee, ok := rec.(*models.Employee); ok {
		if errDup := emailTaken(recs, employee.Email, ""); errDup != nil {
			return errDup
		}
	}
	if txn, ok := rec.(*models.PaymentTransaction); ok {
		if errIndex := s.indexOrder(txn.OrderID, tenantID); errIndex != nil {
			return errIndex
		}
	}
	if errSave := s.saveRecords(tenantID, kind, append(recs, rec)); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// Update replaces a tenant-owned record.
func (s *FileStore) Update(_ context.Context, tenantID string, rec Record) error {
	const op = "file store: update"
	if err := checkTenantID(op, tenantID); err != nil {
		return err
	}
	kind, err := KindOf(rec)
	if err != nil {
		return err
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	idx := -1
	for i, existing := range recs {
		if existing.EntityID() == rec.EntityID() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound(kind, rec.EntityID())
	}
	merged, errMerge := prepareUpdate(tenantID, rec, recs[idx], s.clock())
	if errMerge != nil {
		return errMerge
	}
	if employee, ok := merged.(*models.Employee); ok {
		if errDup := emailTaken(recs, employee.Email, employee.ID); errDup != nil {
			return errDup
		}
	}
	recs[idx] = merged
	if errSave := s.saveRecords(tenantID, kind, recs); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// Delete removes a tenant-owned record.
func (s *FileStore) Delete(_ context.Context, kind Kind, tenantID, id string) error {
	const op = "file store: delete"
	if err := checkScope(op, kind, tenantID); err != nil {
		return err
	}
	switch kind {
	case KindGeneratedCard:
		return apperr.Validation(op, "generated cards are append-only")
	case KindTransaction:
		return apperr.Validation(op, "transactions cannot be deleted")
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	recs, err := s.loadRecords(tenantID, kind)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	kept := recs[:0]
	found := false
	for _, rec := range recs {
		if rec.EntityID() == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return notFound(kind, id)
	}
	if errSave := s.saveRecords(tenantID, kind, kept); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// ActivateTemplate flips the active flags for side in a single document write.
func (s *FileStore) ActivateTemplate(_ context.Context, tenantID, templateID string, side models.TemplateSide) error {
	const op = "file store: activate template"
	if err := checkTenantID(op, tenantID); err != nil {
		return err
	}
	side, ok := models.ParseTemplateSide(string(side))
	if !ok {
		return apperr.Validation(op, "template side must be front or back")
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	recs, err := s.loadRecords(tenantID, KindTemplate)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	found := false
	for _, rec := range recs {
		tpl := rec.(*models.Template)
		if tpl.ID == templateID && tpl.Side == side {
			found = true
		}
	}
	if !found {
		return notFound(KindTemplate, templateID)
	}
	now := s.clock()
	for _, rec := range recs {
		tpl := rec.(*models.Template)
		if tpl.Side != side {
			continue
		}
		active := tpl.ID == templateID
		if tpl.IsActive != active {
			tpl.IsActive = active
			tpl.UpdatedAt = now
		}
	}
	if errSave := s.saveRecords(tenantID, KindTemplate, recs); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// RecordGeneratedCard prepends a log entry and truncates the log to the retention cap.
func (s *FileStore) RecordGeneratedCard(_ context.Context, tenantID string, entry *models.GeneratedCard) error {
	const op = "file store: record generated card"
	if err := checkTenantID(op, tenantID); err != nil {
		return err
	}
	if err := prepareGeneratedCard(tenantID, entry, s.clock()); err != nil {
		return err
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	if errTenant := s.tenantExists(tenantID); errTenant != nil {
		return errTenant
	}
	recs, err := s.loadRecords(tenantID, KindGeneratedCard)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	recs = append(recs, entry)
	sortRecords(KindGeneratedCard, recs)
	if len(recs) > s.retention {
		recs = recs[:s.retention]
	}
	if errSave := s.saveRecords(tenantID, KindGeneratedCard, recs); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

func (s *FileStore) loadTenants() ([]models.Tenant, error) {
	return loadCollection[models.Tenant](filepath.Join(s.dir, tenantsFile))
}

func (s *FileStore) saveTenants(tenants []models.Tenant) error {
	if tenants == nil {
		tenants = []models.Tenant{}
	}
	return writeJSON(filepath.Join(s.dir, tenantsFile), tenants)
}

func (s *FileStore) tenantExists(tenantID string) error {
	tenants, err := s.loadTenants()
	if err != nil {
		return apperr.Persistence("file store: check tenant", err)
	}
	for i := range tenants {
		if tenants[i].ID == tenantID {
			return nil
		}
	}
	return tenantNotFound(tenantID)
}

// CreateTenant inserts a tenant. Duplicate slugs yield a conflict.
func (s *FileStore) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	const op = "file store: create tenant"
	if err := prepareTenant(tenant, s.clock()); err != nil {
		return err
	}
	if err := checkTenantID(op, tenant.ID); err != nil {
		return err
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	tenants, err := s.loadTenants()
	if err != nil {
		return apperr.Persistence(op, err)
	}
	for i := range tenants {
		if tenants[i].Slug == tenant.Slug {
			return slugConflict(tenant.Slug)
		}
		if tenants[i].ID == tenant.ID {
			return apperr.Conflict(apperr.CodeDuplicate, op, "tenant %q already exists", tenant.ID)
		}
	}
	if errSave := s.saveTenants(append(tenants, *tenant)); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// GetTenant loads a tenant by id.
func (s *FileStore) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	return s.findTenant(func(t *models.Tenant) bool { return t.ID == id }, id)
}

// GetTenantBySlug loads a tenant by slug.
func (s *FileStore) GetTenantBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	return s.findTenant(func(t *models.Tenant) bool { return t.Slug == slug }, slug)
}

func (s *FileStore) findTenant(match func(*models.Tenant) bool, key string) (*models.Tenant, error) {
	if strings.TrimSpace(key) == "" {
		return nil, tenantNotFound(key)
	}
	tenants, err := s.loadTenants()
	if err != nil {
		return nil, apperr.Persistence("file store: get tenant", err)
	}
	for i := range tenants {
		if match(&tenants[i]) {
			tenant := tenants[i]
			return &tenant, nil
		}
	}
	return nil, tenantNotFound(key)
}

// ListTenants returns every tenant ordered by creation.
func (s *FileStore) ListTenants(_ context.Context) ([]models.Tenant, error) {
	tenants, err := s.loadTenants()
	if err != nil {
		return nil, apperr.Persistence("file store: list tenants", err)
	}
	sort.SliceStable(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
	})
	return tenants, nil
}

// ExpireSubscriptions flips lapsed active subscriptions to inactive.
func (s *FileStore) ExpireSubscriptions(_ context.Context, now time.Time) (int, error) {
	const op = "file store: expire subscriptions"
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	tenants, err := s.loadTenants()
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	expired := 0
	for i := range tenants {
		t := &tenants[i]
		if t.SubscriptionStatus == models.SubscriptionActive && t.SubscriptionExpiresAt != nil && !t.SubscriptionExpiresAt.After(now) {
			t.SubscriptionStatus = models.SubscriptionInactive
			t.UpdatedAt = now.UTC()
			expired++
		}
	}
	if expired == 0 {
		return 0, nil
	}
	if errSave := s.saveTenants(tenants); errSave != nil {
		return 0, apperr.Persistence(op, errSave)
	}
	return expired, nil
}

func (s *FileStore) loadPlans() ([]models.Plan, error) {
	var plans []models.Plan
	found, err := readJSON(filepath.Join(s.dir, plansFile), &plans)
	if err != nil {
		return nil, err
	}
	if !found {
		plans = models.DefaultPlans()
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].SortOrder != plans[j].SortOrder {
			return plans[i].SortOrder < plans[j].SortOrder
		}
		return plans[i].ID < plans[j].ID
	})
	return plans, nil
}

// ListPlans returns all plans in display order. A missing plans document yields the defaults.
func (s *FileStore) ListPlans(_ context.Context) ([]models.Plan, error) {
	plans, err := s.loadPlans()
	if err != nil {
		return nil, apperr.Persistence("file store: list plans", err)
	}
	return plans, nil
}

// GetPlan loads a plan by id.
func (s *FileStore) GetPlan(_ context.Context, id string) (*models.Plan, error) {
	plans, err := s.loadPlans()
	if err != nil {
		return nil, apperr.Persistence("file store: get plan", err)
	}
	for i := range plans {
		if plans[i].ID == id {
			plan := plans[i]
			return &plan, nil
		}
	}
	return nil, planNotFound(id)
}

// SavePlan upserts a plan.
func (s *FileStore) SavePlan(_ context.Context, plan *models.Plan) error {
	const op = "file store: save plan"
	if plan == nil || strings.TrimSpace(plan.ID) == "" {
		return apperr.Validation(op, "plan id is required")
	}
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	plans, err := s.loadPlans()
	if err != nil {
		return apperr.Persistence(op, err)
	}
	now := s.clock()
	stamp(&plan.CreatedAt, &plan.UpdatedAt, now)
	plan.UpdatedAt = now
	replaced := false
	for i := range plans {
		if plans[i].ID == plan.ID {
			plan.CreatedAt = plans[i].CreatedAt
			plans[i] = *plan
			replaced = true
			break
		}
	}
	if !replaced {
		plans = append(plans, *plan)
	}
	if errSave := writeJSON(filepath.Join(s.dir, plansFile), plans); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

func (s *FileStore) loadOrderIndex() (map[string]string, error) {
	index := map[string]string{}
	if _, err := readJSON(filepath.Join(s.dir, ordersFile), &index); err != nil {
		return nil, err
	}
	if index == nil {
		index = map[string]string{}
	}
	return index, nil
}

// indexOrder records which tenant owns orderID. Caller holds the tenant lock.
func (s *FileStore) indexOrder(orderID, tenantID string) error {
	const op = "file store: index order"
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	index, err := s.loadOrderIndex()
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if owner, ok := index[orderID]; ok {
		if owner != tenantID {
			return apperr.Conflict(apperr.CodeDuplicate, op, "order id %q already exists", orderID)
		}
		// A previous attempt indexed the order but did not persist the transaction.
		recs, errLoad := s.loadRecords(tenantID, KindTransaction)
		if errLoad != nil {
			return apperr.Persistence(op, errLoad)
		}
		for _, rec := range recs {
			if rec.(*models.PaymentTransaction).OrderID == orderID {
				return apperr.Conflict(apperr.CodeDuplicate, op, "order id %q already exists", orderID)
			}
		}
		return nil
	}
	index[orderID] = tenantID
	if errSave := writeJSON(filepath.Join(s.dir, ordersFile), index); errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

func (s *FileStore) orderOwner(orderID string) (string, error) {
	index, err := s.loadOrderIndex()
	if err != nil {
		return "", apperr.Persistence("file store: read order index", err)
	}
	tenantID, ok := index[orderID]
	if !ok {
		return "", notFound(KindTransaction, orderID)
	}
	return tenantID, nil
}

func (s *FileStore) findTransaction(tenantID, orderID string) ([]Record, int, error) {
	recs, err := s.loadRecords(tenantID, KindTransaction)
	if err != nil {
		return nil, -1, apperr.Persistence("file store: load transactions", err)
	}
	for i, rec := range recs {
		if rec.(*models.PaymentTransaction).OrderID == orderID {
			return recs, i, nil
		}
	}
	return recs, -1, notFound(KindTransaction, orderID)
}

// FindTransaction resolves a transaction by order id through the order index.
func (s *FileStore) FindTransaction(_ context.Context, orderID string) (*models.PaymentTransaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, notFound(KindTransaction, orderID)
	}
	tenantID, err := s.orderOwner(orderID)
	if err != nil {
		return nil, err
	}
	recs, idx, err := s.findTransaction(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return recs[idx].(*models.PaymentTransaction), nil
}

// UpdatePayment applies fn under the owning tenant's lock. The tenant document is
// written before the transaction document so that a crash between the two leaves the
// transaction pending and a redelivered callback completes it.
func (s *FileStore) UpdatePayment(_ context.Context, orderID string, fn PaymentMutator) error {
	const op = "file store: update payment"
	if fn == nil {
		return apperr.Validation(op, "nil mutator")
	}
	orderID = strings.TrimSpace(orderID)
	tenantID, err := s.orderOwner(orderID)
	if err != nil {
		return err
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	recs, idx, err := s.findTransaction(tenantID, orderID)
	if err != nil {
		return err
	}
	txn := recs[idx].(*models.PaymentTransaction)
	tenant, err := s.findTenant(func(t *models.Tenant) bool { return t.ID == tenantID }, tenantID)
	if err != nil {
		return err
	}

	change, errApply := fn(txn, tenant)
	if errApply != nil {
		return errApply
	}
	now := s.clock()

	if change.Tenant {
		if errTenant := s.writeSubscription(tenant, now); errTenant != nil {
			return errTenant
		}
	}
	if change.Transaction {
		txn.UpdatedAt = now
		if errSave := s.saveRecords(tenantID, KindTransaction, recs); errSave != nil {
			return apperr.Persistence(op, errSave)
		}
	}
	return nil
}

// writeSubscription copies the subscription fields of updated onto the stored tenant.
func (s *FileStore) writeSubscription(updated *models.Tenant, now time.Time) error {
	const op = "file store: update tenant subscription"
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	tenants, err := s.loadTenants()
	if err != nil {
		return apperr.Persistence(op, err)
	}
	for i := range tenants {
		if tenants[i].ID != updated.ID {
			continue
		}
		tenants[i].PlanID = updated.PlanID
		tenants[i].SubscriptionStatus = updated.SubscriptionStatus
		tenants[i].SubscriptionExpiresAt = updated.SubscriptionExpiresAt
		tenants[i].SubscriptionID = updated.SubscriptionID
		tenants[i].UpdatedAt = now
		if errSave := s.saveTenants(tenants); errSave != nil {
			return apperr.Persistence(op, errSave)
		}
		return nil
	}
	return tenantNotFound(updated.ID)
}

func emailTaken(recs []Record, email, exceptID string) error {
	for _, rec := range recs {
		employee, ok := rec.(*models.Employee)
		if !ok || employee.ID == exceptID {
			continue
		}
		if models.NormalizeEmail(employee.Email) == email {
			return emailConflict(email)
		}
	}
	return nil
}

func matchFilter(rec Record, filter Filter) bool {
	switch r := rec.(type) {
	case *models.Employee:
		if email := models.NormalizeEmail(filter.Email); email != "" && models.NormalizeEmail(r.Email) != email {
			return false
		}
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			return strings.Contains(strings.ToLower(r.NameEn), term) ||
				strings.Contains(strings.ToLower(r.NameAr), term) ||
				strings.Contains(strings.ToLower(r.Email), term)
		}
	case *models.Template:
		if filter.Side != "" && r.Side != filter.Side {
			return false
		}
		if filter.ActiveOnly && !r.IsActive {
			return false
		}
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			return strings.Contains(strings.ToLower(r.Name), term)
		}
	case *models.GeneratedCard:
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			return false
		}
	case *models.PaymentTransaction:
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
	}
	return true
}

// sortRecords orders records the way the SQL backend does.
func sortRecords(kind Kind, recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		switch kind {
		case KindGeneratedCard:
			a, b := recs[i].(*models.GeneratedCard), recs[j].(*models.GeneratedCard)
			if !a.GeneratedAt.Equal(b.GeneratedAt) {
				return a.GeneratedAt.After(b.GeneratedAt)
			}
			return a.ID > b.ID
		case KindTransaction:
			a, b := recs[i].(*models.PaymentTransaction), recs[j].(*models.PaymentTransaction)
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		default:
			ai, aj := createdAt(recs[i]), createdAt(recs[j])
			if !ai.Equal(aj) {
				return ai.Before(aj)
			}
			return recs[i].EntityID() < recs[j].EntityID()
		}
	})
}

func createdAt(rec Record) time.Time {
	switch r := rec.(type) {
	case *models.Employee:
		return r.CreatedAt
	case *models.Template:
		return r.CreatedAt
	default:
		return time.Time{}
	}
}
