package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
)

var (
	_ repositories.SnapshotRepository = (*MockSnapshotRepository)(nil)
	_ repositories.PriceRepository    = (*MockPriceRepository)(nil)
	_ repositories.AlertRepository    = (*MockAlertRepository)(nil)
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mu        sync.RWMutex
	users     map[string]*entities.User
	snapshots []entities.SnapshotRecord
	nextID    int64
	clock     func() time.Time

	// Function hooks for custom behavior
	UpsertUserFunc        func(ctx context.Context, email string) (*entities.User, error)
	FindUserByEmailFunc   func(ctx context.Context, email string) (*entities.User, error)
	CreateSnapshotFunc    func(ctx context.Context, record *entities.SnapshotRecord) error
	GetLatestSnapshotFunc func(ctx context.Context, userID int64) (*entities.SnapshotRecord, error)
	ListSnapshotsFunc     func(ctx context.Context, userID int64, limit int) ([]entities.SnapshotSummary, error)

	// Call tracking
	Calls []MockCall
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return &MockSnapshotRepository{
		users:     make(map[string]*entities.User),
		snapshots: make([]entities.SnapshotRecord, 0),
		Calls:     make([]MockCall, 0),
		// strictly increasing so ordering by CreatedAt is deterministic
		clock: func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Minute)
		},
	}
}

func (m *MockSnapshotRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockSnapshotRepository) UpsertUser(ctx context.Context, email string) (*entities.User, error) {
	m.record("UpsertUser", email)

	if m.UpsertUserFunc != nil {
		return m.UpsertUserFunc(ctx, email)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}

	m.nextID++
	u := &entities.User{ID: m.nextID, Email: email, CreatedAt: m.clock()}
	m.users[email] = u
	cp := *u
	return &cp, nil
}

func (m *MockSnapshotRepository) FindUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	m.record("FindUserByEmail", email)

	if m.FindUserByEmailFunc != nil {
		return m.FindUserByEmailFunc(ctx, email)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MockSnapshotRepository) CreateSnapshot(ctx context.Context, rec *entities.SnapshotRecord) error {
	m.record("CreateSnapshot", rec)

	if m.CreateSnapshotFunc != nil {
		return m.CreateSnapshotFunc(ctx, rec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.CreatedAt = m.clock()
	m.snapshots = append(m.snapshots, *rec)
	return nil
}

func (m *MockSnapshotRepository) GetLatestSnapshot(ctx context.Context, userID int64) (*entities.SnapshotRecord, error) {
	m.record("GetLatestSnapshot", userID)

	if m.GetLatestSnapshotFunc != nil {
		return m.GetLatestSnapshotFunc(ctx, userID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].UserID == userID {
			cp := m.snapshots[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockSnapshotRepository) ListSnapshots(ctx context.Context, userID int64, limit int) ([]entities.SnapshotSummary, error) {
	m.record("ListSnapshots", userID, limit)

	if m.ListSnapshotsFunc != nil {
		return m.ListSnapshotsFunc(ctx, userID, limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.SnapshotSummary, 0)
	for i := len(m.snapshots) - 1; i >= 0 && len(result) < limit; i-- {
		if m.snapshots[i].UserID == userID {
			result = append(result, m.snapshots[i].Summary())
		}
	}
	return result, nil
}

// CallCount returns how many times a method was invoked
func (m *MockSnapshotRepository) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countCalls(m.Calls, method)
}

func (m *MockSnapshotRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]*entities.User)
	m.snapshots = make([]entities.SnapshotRecord, 0)
	m.Calls = make([]MockCall, 0)
}

// MockPriceRepository is a mock implementation of PriceRepository
type MockPriceRepository struct {
	mu           sync.RWMutex
	observations []entities.PriceObservation

	InsertObservationFunc func(ctx context.Context, obs *entities.PriceObservation) error
	GetLatestFunc         func(ctx context.Context, asset entities.Asset) (*entities.PriceObservation, error)
	GetAtFunc             func(ctx context.Context, asset entities.Asset, t time.Time) (*entities.PriceObservation, error)
	GetDailyClosesFunc    func(ctx context.Context, asset entities.Asset, from, to time.Time) ([]entities.DailyClose, error)

	Calls []MockCall
}

func NewMockPriceRepository() *MockPriceRepository {
	return &MockPriceRepository{
		observations: make([]entities.PriceObservation, 0),
		Calls:        make([]MockCall, 0),
	}
}

func (m *MockPriceRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockPriceRepository) InsertObservation(ctx context.Context, obs *entities.PriceObservation) error {
	m.record("InsertObservation", obs)

	if m.InsertObservationFunc != nil {
		return m.InsertObservationFunc(ctx, obs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.observations {
		if o.Asset == obs.Asset && o.RoundID == obs.RoundID {
			return nil
		}
	}
	m.observations = append(m.observations, *obs)
	return nil
}

// sorted returns the asset's observations oldest first; caller holds the lock
func (m *MockPriceRepository) sorted(asset entities.Asset) []entities.PriceObservation {
	out := make([]entities.PriceObservation, 0)
	for _, o := range m.observations {
		if o.Asset == asset {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

func (m *MockPriceRepository) GetLatest(ctx context.Context, asset entities.Asset) (*entities.PriceObservation, error) {
	m.record("GetLatest", asset)

	if m.GetLatestFunc != nil {
		return m.GetLatestFunc(ctx, asset)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obs := m.sorted(asset)
	if len(obs) == 0 {
		return nil, nil
	}
	latest := obs[len(obs)-1]
	return &latest, nil
}

func (m *MockPriceRepository) GetAt(ctx context.Context, asset entities.Asset, t time.Time) (*entities.PriceObservation, error) {
	m.record("GetAt", asset, t)

	if m.GetAtFunc != nil {
		return m.GetAtFunc(ctx, asset, t)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *entities.PriceObservation
	for _, o := range m.sorted(asset) {
		if o.ObservedAt.After(t) {
			break
		}
		o := o
		found = &o
	}
	return found, nil
}

func (m *MockPriceRepository) GetDailyCloses(ctx context.Context, asset entities.Asset, from, to time.Time) ([]entities.DailyClose, error) {
	m.record("GetDailyCloses", asset, from, to)

	if m.GetDailyClosesFunc != nil {
		return m.GetDailyClosesFunc(ctx, asset, from, to)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	closes := make([]entities.DailyClose, 0)
	for _, o := range m.sorted(asset) {
		if o.ObservedAt.Before(from) || !o.ObservedAt.Before(to) {
			continue
		}
		day := o.ObservedAt.UTC().Truncate(24 * time.Hour)
		if n := len(closes); n > 0 && closes[n-1].Day.Equal(day) {
			closes[n-1].PriceUSD = o.PriceUSD
			continue
		}
		closes = append(closes, entities.DailyClose{Day: day, PriceUSD: o.PriceUSD})
	}
	return closes, nil
}

// AddObservations seeds price history
func (m *MockPriceRepository) AddObservations(obs ...entities.PriceObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = append(m.observations, obs...)
}

// Observations returns a copy of the stored history
func (m *MockPriceRepository) Observations() []entities.PriceObservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.PriceObservation, len(m.observations))
	copy(out, m.observations)
	return out
}

// MockAlertRepository is a mock implementation of AlertRepository
type MockAlertRepository struct {
	mu    sync.RWMutex
	rules []entities.AlertRule
	clock func() time.Time

	CreateRuleFunc       func(ctx context.Context, rule *entities.AlertRule) error
	ListRulesFunc        func(ctx context.Context, userID int64) ([]entities.AlertRule, error)
	ListEnabledRulesFunc func(ctx context.Context) ([]entities.AlertRule, error)
	DeleteRuleFunc       func(ctx context.Context, userID int64, id uuid.UUID) (bool, error)
	MarkTriggeredFunc    func(ctx context.Context, id uuid.UUID, at time.Time) error

	Calls []MockCall
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{
		rules: make([]entities.AlertRule, 0),
		clock: time.Now,
		Calls: make([]MockCall, 0),
	}
}

func (m *MockAlertRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockAlertRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	m.record("CreateRule", rule)

	if m.CreateRuleFunc != nil {
		return m.CreateRuleFunc(ctx, rule)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rule.CreatedAt = m.clock()
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *MockAlertRepository) ListRules(ctx context.Context, userID int64) ([]entities.AlertRule, error) {
	m.record("ListRules", userID)

	if m.ListRulesFunc != nil {
		return m.ListRulesFunc(ctx, userID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.AlertRule, 0)
	for i := len(m.rules) - 1; i >= 0; i-- {
		if m.rules[i].UserID == userID {
			result = append(result, m.rules[i])
		}
	}
	return result, nil
}

func (m *MockAlertRepository) ListEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	m.record("ListEnabledRules")

	if m.ListEnabledRulesFunc != nil {
		return m.ListEnabledRulesFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.AlertRule, 0)
	for _, r := range m.rules {
		if r.Enabled {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MockAlertRepository) DeleteRule(ctx context.Context, userID int64, id uuid.UUID) (bool, error) {
	m.record("DeleteRule", userID, id)

	if m.DeleteRuleFunc != nil {
		return m.DeleteRuleFunc(ctx, userID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.ID == id && r.UserID == userID {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAlertRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.record("MarkTriggered", id, at)

	if m.MarkTriggeredFunc != nil {
		return m.MarkTriggeredFunc(ctx, id, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.rules {
		if m.rules[i].ID == id {
			t := at
			m.rules[i].LastTriggeredAt = &t
		}
	}
	return nil
}

// AddRules seeds stored rules
func (m *MockAlertRepository) AddRules(rules ...entities.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rules...)
}

// Rule returns a stored rule by ID
func (m *MockAlertRepository) Rule(id uuid.UUID) (entities.AlertRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r, true
		}
	}
	return entities.AlertRule{}, false
}

// CallCount returns how many times a method was invoked
func (m *MockAlertRepository) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countCalls(m.Calls, method)
}

func countCalls(calls []MockCall, method string) int {
	n := 0
	for _, c := range calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})

	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
