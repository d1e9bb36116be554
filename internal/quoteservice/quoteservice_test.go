package quoteservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/approvalstore"
	"cpq-engine-api/internal/constraintengine"
	"cpq-engine-api/internal/cpqruntime"
	"cpq-engine-api/internal/fingerprintstore"
	"cpq-engine-api/internal/flowengine"
	"cpq-engine-api/internal/ledger"
	"cpq-engine-api/internal/model"
	"cpq-engine-api/internal/policyengine"
	"cpq-engine-api/internal/policyevalstore"
	"cpq-engine-api/internal/pricingengine"
	"cpq-engine-api/internal/quotestore"
	"cpq-engine-api/internal/snapshotstore"
)

// --- in-memory test doubles, local to this package's tests ---

type memQuoteStore struct {
	mu       sync.Mutex
	heads    map[model.QuoteId]model.Quote
	versions map[model.QuoteId]map[int]model.Quote
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{heads: map[model.QuoteId]model.Quote{}, versions: map[model.QuoteId]map[int]model.Quote{}}
}

func (s *memQuoteStore) Save(ctx context.Context, quote model.Quote, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := 0
	if head, ok := s.heads[quote.ID]; ok {
		current = head.Version
	}
	if current != expectedVersion {
		return quotestore.ErrVersionConflict
	}
	s.heads[quote.ID] = quote
	if s.versions[quote.ID] == nil {
		s.versions[quote.ID] = map[int]model.Quote{}
	}
	s.versions[quote.ID][quote.Version] = quote
	return nil
}

func (s *memQuoteStore) Head(ctx context.Context, quoteId model.QuoteId) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.heads[quoteId]
	if !ok {
		return model.Quote{}, quotestore.ErrNotFound
	}
	return q, nil
}

func (s *memQuoteStore) AtVersion(ctx context.Context, quoteId model.QuoteId, version int) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.versions[quoteId]
	if !ok {
		return model.Quote{}, quotestore.ErrNotFound
	}
	q, ok := byVersion[version]
	if !ok {
		return model.Quote{}, quotestore.ErrNotFound
	}
	return q, nil
}

type memLedgerStore struct {
	mu      sync.Mutex
	entries map[model.QuoteId][]model.LedgerEntry
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{entries: map[model.QuoteId][]model.LedgerEntry{}}
}

func (m *memLedgerStore) InsertIfVersionAbsent(ctx context.Context, entry model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[entry.QuoteId] {
		if e.Version == entry.Version {
			return ledger.ErrVersionConflict
		}
	}
	m.entries[entry.QuoteId] = append(m.entries[entry.QuoteId], entry)
	return nil
}

func (m *memLedgerStore) FetchByVersion(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[quoteId] {
		if e.Version == version {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLedgerStore) FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[quoteId]
	if len(entries) == 0 {
		return nil, ledger.ErrNoSuchEntry
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Version > latest.Version {
			latest = e
		}
	}
	cp := latest
	return &cp, nil
}

func (m *memLedgerStore) FetchAllOrdered(ctx context.Context, quoteId model.QuoteId) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LedgerEntry, len(m.entries[quoteId]))
	copy(out, m.entries[quoteId])
	return out, nil
}

type memSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[model.QuoteId]map[int]model.PricingSnapshot
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{snapshots: map[model.QuoteId]map[int]model.PricingSnapshot{}}
}

func (s *memSnapshotStore) Insert(ctx context.Context, snapshot model.PricingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots[snapshot.QuoteId] == nil {
		s.snapshots[snapshot.QuoteId] = map[int]model.PricingSnapshot{}
	}
	s.snapshots[snapshot.QuoteId][snapshot.QuoteVersion] = snapshot
	return nil
}

func (s *memSnapshotStore) Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PricingSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.snapshots[quoteId]
	if !ok {
		return nil, nil
	}
	snap, ok := byVersion[version]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *memSnapshotStore) LatestFor(ctx context.Context, quoteId model.QuoteId) (*model.PricingSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.snapshots[quoteId]
	if !ok || len(byVersion) == 0 {
		return nil, nil
	}
	var latest *model.PricingSnapshot
	for v, snap := range byVersion {
		if latest == nil || v > latest.QuoteVersion {
			cp := snap
			latest = &cp
		}
	}
	return latest, nil
}

type memPolicyEvalStore struct {
	mu      sync.Mutex
	records map[model.QuoteId]map[int]model.PolicyEvaluationRecord
}

func newMemPolicyEvalStore() *memPolicyEvalStore {
	return &memPolicyEvalStore{records: map[model.QuoteId]map[int]model.PolicyEvaluationRecord{}}
}

func (s *memPolicyEvalStore) Record(ctx context.Context, record model.PolicyEvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[record.QuoteId] == nil {
		s.records[record.QuoteId] = map[int]model.PolicyEvaluationRecord{}
	}
	s.records[record.QuoteId][record.QuoteVersion] = record
	return nil
}

func (s *memPolicyEvalStore) Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PolicyEvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.records[quoteId]
	if !ok {
		return nil, nil
	}
	rec, ok := byVersion[version]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type memFingerprintStore struct {
	mu      sync.Mutex
	records map[model.QuoteId]model.ConfigurationFingerprint
}

func newMemFingerprintStore() *memFingerprintStore {
	return &memFingerprintStore{records: map[model.QuoteId]model.ConfigurationFingerprint{}}
}

func (s *memFingerprintStore) Upsert(ctx context.Context, record model.ConfigurationFingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.QuoteId] = record
	return nil
}

func (s *memFingerprintStore) Get(ctx context.Context, quoteId model.QuoteId) (*model.ConfigurationFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[quoteId]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memFingerprintStore) All(ctx context.Context) ([]model.ConfigurationFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ConfigurationFingerprint, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

type memApprovalStore struct {
	mu       sync.Mutex
	requests map[model.ApprovalId]model.ApprovalRequest
}

func newMemApprovalStore() *memApprovalStore {
	return &memApprovalStore{requests: map[model.ApprovalId]model.ApprovalRequest{}}
}

func (s *memApprovalStore) Insert(ctx context.Context, req model.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *memApprovalStore) Get(ctx context.Context, id model.ApprovalId) (model.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return model.ApprovalRequest{}, approvalstore.ErrNotFound
	}
	return req, nil
}

func (s *memApprovalStore) Decide(ctx context.Context, id model.ApprovalId, status model.ApprovalStatus, decidedBy, note string, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return approvalstore.ErrNotFound
	}
	if req.Status != model.ApprovalStatusPending {
		return approvalstore.ErrAlreadyDecided
	}
	req.Status = status
	req.DecidedBy = decidedBy
	req.DecisionNote = note
	ts := decidedAt
	req.DecidedAt = &ts
	s.requests[id] = req
	return nil
}

func (s *memApprovalStore) PendingForQuote(ctx context.Context, quoteId model.QuoteId) ([]model.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ApprovalRequest
	for _, req := range s.requests {
		if req.QuoteId == quoteId && req.Status == model.ApprovalStatusPending {
			out = append(out, req)
		}
	}
	return out, nil
}

type fakeRouter struct {
	assignee string
	err      error
}

func (r fakeRouter) RouteApproval(req model.ApprovalRequest) (string, error) {
	return r.assignee, r.err
}

type fakeAuditSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *fakeAuditSink) Emit(ctx context.Context, event model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// --- fixtures ---

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testClock() time.Time { return fixedNow }

func newTestService(t *testing.T) *Service {
	t.Helper()

	signer := ledger.NewLedgerSigner("test-key", []byte("0123456789abcdef0123456789abcdef"))
	ledg := ledger.NewDefaultLedger(newMemLedgerStore(), signer)

	snapStore := snapshotstore.NewSnapshotStore(newMemSnapshotStore(), ledg, nil, model.PolicyVersionPolicyAllowWithWarning)

	return New(&Service{
		Quotes: newMemQuoteStore(),
		Ledger: ledg,
		Flow:   &flowengine.DefaultEngine{},
		Runtime: &cpqruntime.Runtime{
			Constraint: constraintengine.NewDefaultEngine(),
			Pricing:    pricingengine.NewDefaultEngine(),
			Policy:     policyengine.NewDefaultEngine(),
		},
		Snapshots:      snapStore,
		PolicyEvals:    newMemPolicyEvalStore(),
		Fingerprints:   newMemFingerprintStore(),
		Approvals:      newMemApprovalStore(),
		ApprovalRouter: fakeRouter{assignee: "manager@example.com"},
		Audit:          &fakeAuditSink{},
		Clock:          testClock,
	})
}

func testPriceBook() model.PriceBook {
	listPrice, _ := model.MoneyFromString("100.00")
	return model.PriceBook{
		ID:              "book-1",
		CustomerSegment: "enterprise",
		Region:          "us",
		Currency:        "USD",
		Entries:         []model.PriceBookEntry{{ProductId: "prod-1", ListPrice: listPrice}},
	}
}

func testLines() []model.QuoteLine {
	return []model.QuoteLine{
		{ID: "line-1", ProductId: "prod-1", ConfigurationKey: "base", Quantity: 2, Attributes: map[string]string{}},
	}
}

func zeroMoneyPtr() *model.Money {
	m := model.ZeroMoney()
	return &m
}

func managerActor() model.Actor {
	return model.Actor{Email: "manager@example.com", Role: model.RoleManager, Active: true}
}

func testPricing() PricingContext {
	return PricingContext{
		Currency:        "USD",
		CustomerSegment: "enterprise",
		Region:          "us",
		PriceBooks:      []model.PriceBook{testPriceBook()},
	}
}

// --- tests ---

func TestCreateQuote_PersistsDraftAndAppendsLedgerEntry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusDraft, quote.Status)
	assert.Equal(t, 1, quote.Version)

	entry, err := svc.Ledger.FetchLatest(ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.LedgerActionCreated, entry.Action)
}

func TestCreateQuote_RejectsDuplicateLine(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	lines := []model.QuoteLine{
		{ID: "line-1", ProductId: "prod-1", ConfigurationKey: "base", Quantity: 1},
		{ID: "line-2", ProductId: "prod-1", ConfigurationKey: "base", Quantity: 1},
	}

	_, err := svc.CreateQuote(ctx, "cust-1", "USD", lines, "rep@example.com")
	assert.Error(t, err)
}

func TestEvaluate_CleanPolicyFinalizesQuote(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	ruleSet := model.RuleSet{RuleSetVersion: "r1"}
	policySet := model.PolicySet{PolicyVersion: "p1"}

	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", ruleSet, policySet, testPricing())
	require.NoError(t, err)
	require.True(t, outcome.Evaluation.ConstraintResult.Valid)
	assert.Equal(t, model.QuoteStatusFinalized, outcome.Quote.Status)
	assert.Nil(t, outcome.Approval)

	fp, err := svc.Fingerprints.Get(ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Greater(t, fp.FeatureCount, 0)
	assert.False(t, fp.CreatedAt.IsZero())
}

func TestEvaluate_PolicyViolationParksForApprovalAndRoutes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	ruleSet := model.RuleSet{RuleSetVersion: "r1"}
	policySet := model.PolicySet{
		PolicyVersion: "p1",
		Rules: []model.PolicyRule{
			{ID: "pol-1", Kind: model.PolicyKindDealSizeThreshold, ThresholdAmount: zeroMoneyPtr(), RequiredTier: model.ApprovalTierManager},
		},
	}

	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", ruleSet, policySet, testPricing())
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusPendingApproval, outcome.Quote.Status)
	require.NotNil(t, outcome.Approval)
	assert.Equal(t, model.ApprovalTierManager, outcome.Approval.RequiredTier)
}

func TestEvaluate_ConstraintViolationLeavesQuoteInDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	ruleSet := model.RuleSet{
		RuleSetVersion: "r1",
		Rules: []model.ConstraintRule{
			{Kind: model.ConstraintKindRequires, Source: "prod-1", Target: "prod-missing"},
		},
	}
	policySet := model.PolicySet{PolicyVersion: "p1"}

	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", ruleSet, policySet, testPricing())
	require.NoError(t, err)
	assert.False(t, outcome.Evaluation.ConstraintResult.Valid)

	head, err := svc.Quotes.Head(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusDraft, head.Status)
}

func TestDecideApproval_ApproveFinalizesQuote(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	policySet := model.PolicySet{
		PolicyVersion: "p1",
		Rules: []model.PolicyRule{
			{ID: "pol-1", Kind: model.PolicyKindDealSizeThreshold, ThresholdAmount: zeroMoneyPtr(), RequiredTier: model.ApprovalTierManager},
		},
	}
	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	require.NoError(t, err)
	require.NotNil(t, outcome.Approval)

	finalQuote, err := svc.DecideApproval(ctx, outcome.Approval.ID, managerActor(), true, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusFinalized, finalQuote.Status)
}

func TestDecideApproval_RejectLeavesQuoteRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	policySet := model.PolicySet{
		PolicyVersion: "p1",
		Rules: []model.PolicyRule{
			{ID: "pol-1", Kind: model.PolicyKindDealSizeThreshold, ThresholdAmount: zeroMoneyPtr(), RequiredTier: model.ApprovalTierManager},
		},
	}
	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	require.NoError(t, err)
	require.NotNil(t, outcome.Approval)

	rejectedQuote, err := svc.DecideApproval(ctx, outcome.Approval.ID, managerActor(), false, "too aggressive")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusRejected, rejectedQuote.Status)
}

func TestDecideApproval_AlreadyDecidedIsRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	policySet := model.PolicySet{
		PolicyVersion: "p1",
		Rules: []model.PolicyRule{
			{ID: "pol-1", Kind: model.PolicyKindDealSizeThreshold, ThresholdAmount: zeroMoneyPtr(), RequiredTier: model.ApprovalTierManager},
		},
	}
	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	require.NoError(t, err)
	require.NotNil(t, outcome.Approval)

	_, err = svc.DecideApproval(ctx, outcome.Approval.ID, managerActor(), true, "ok")
	require.NoError(t, err)

	_, err = svc.DecideApproval(ctx, outcome.Approval.ID, managerActor(), true, "ok again")
	assert.Error(t, err)
}

func TestDecideApproval_WrongRoleIsForbidden(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	policySet := model.PolicySet{
		PolicyVersion: "p1",
		Rules: []model.PolicyRule{
			{ID: "pol-1", Kind: model.PolicyKindDealSizeThreshold, ThresholdAmount: zeroMoneyPtr(), RequiredTier: model.ApprovalTierVP},
		},
	}
	outcome, err := svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	require.NoError(t, err)
	require.NotNil(t, outcome.Approval)

	_, err = svc.DecideApproval(ctx, outcome.Approval.ID, managerActor(), true, "overreaching")
	require.Error(t, err)
	assert.True(t, apperr.IsDomainCode(err, apperr.CodeForbiddenAction))
}

func TestEvaluate_RejectsQuoteNotInDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	quote, err := svc.CreateQuote(ctx, "cust-1", "USD", testLines(), "rep@example.com")
	require.NoError(t, err)

	policySet := model.PolicySet{PolicyVersion: "p1"}
	_, err = svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	require.NoError(t, err)

	_, err = svc.Evaluate(ctx, quote.ID, "rep@example.com", model.RuleSet{RuleSetVersion: "r1"}, policySet, testPricing())
	assert.Error(t, err)
}
