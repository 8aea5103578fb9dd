package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stripe/stripe-go/v81"

	"visadesk/internal/domain"
	"visadesk/internal/repository"
)

// NewTestLogger returns a logger that records entries instead of writing them.
func NewTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// HasEntry reports whether hook captured an entry at level with message.
func HasEntry(hook *test.Hook, level logrus.Level, message string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK APPLICATION REPOSITORY
// ──────────────────────────────────────────────

// MockApplicationRepository is a mock implementation of ApplicationRepository.
type MockApplicationRepository struct {
	mu           sync.RWMutex
	applications map[string]*domain.ApplicationPayment

	// Counters for verification
	GetBySessionIDCallCount   int32
	AttachSessionCallCount    int32
	TransitionStatusCallCount int32
	MarkCheckedCallCount      int32

	// Error injection
	GetBySessionIDError   error
	AttachSessionError    error
	TransitionStatusError error
	ListPendingError      error
	MarkCheckedError      error

	// BeforeTransition runs before the conditional update, e.g. to simulate a concurrent writer.
	BeforeTransition func()
}

// NewMockApplicationRepository creates a new mock application repository.
func NewMockApplicationRepository() *MockApplicationRepository {
	return &MockApplicationRepository{
		applications: make(map[string]*domain.ApplicationPayment),
	}
}

// AddApplication adds an application to the mock repository.
func (m *MockApplicationRepository) AddApplication(application *domain.ApplicationPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[application.ApplicationID] = application
}

// SetStatus overwrites an application's status directly.
func (m *MockApplicationRepository) SetStatus(applicationID string, status domain.ApplicationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.applications[applicationID]; ok {
		a.Status = status
	}
}

// GetApplication returns a copy of an application for test assertions.
func (m *MockApplicationRepository) GetApplication(applicationID string) *domain.ApplicationPayment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return nil
	}
	copy := *a
	return &copy
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, applicationID string) (*domain.ApplicationPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (m *MockApplicationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.ApplicationPayment, error) {
	atomic.AddInt32(&m.GetBySessionIDCallCount, 1)
	if m.GetBySessionIDError != nil {
		return nil, m.GetBySessionIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.applications {
		if a.StripeSessionID == sessionID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockApplicationRepository) AttachSession(ctx context.Context, applicationID, sessionID string, amount decimal.Decimal, currency string) error {
	atomic.AddInt32(&m.AttachSessionCallCount, 1)
	if m.AttachSessionError != nil {
		return m.AttachSessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.StripeSessionID != "" {
		return repository.ErrSessionAlreadyAttached
	}
	a.StripeSessionID = sessionID
	a.Amount = amount
	a.Currency = currency
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MockApplicationRepository) TransitionStatus(ctx context.Context, sessionID string, status domain.ApplicationStatus) (bool, error) {
	atomic.AddInt32(&m.TransitionStatusCallCount, 1)
	if m.TransitionStatusError != nil {
		return false, m.TransitionStatusError
	}
	if m.BeforeTransition != nil {
		m.BeforeTransition()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.StripeSessionID == sessionID && !a.Status.IsTerminal() {
			a.Status = status
			a.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockApplicationRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.ApplicationPayment, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ApplicationPayment
	for _, a := range m.applications {
		if a.StripeSessionID != "" && !a.Status.IsTerminal() && a.UpdatedAt.Before(olderThan) {
			copy := *a
			result = append(result, &copy)
		}
	}
	// Never-checked first, then least recently checked, then oldest update.
	sort.Slice(result, func(i, j int) bool {
		ci, cj := result[i].ReconcileCheckedAt, result[j].ReconcileCheckedAt
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockApplicationRepository) MarkChecked(ctx context.Context, applicationID string, checkedAt time.Time) error {
	atomic.AddInt32(&m.MarkCheckedCallCount, 1)
	if m.MarkCheckedError != nil {
		return m.MarkCheckedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return repository.ErrNotFound
	}
	a.ReconcileCheckedAt = checkedAt
	return nil
}

// ──────────────────────────────────────────────
// MOCK WEBHOOK EVENT REPOSITORY
// ──────────────────────────────────────────────

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository.
type MockWebhookEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.WebhookEvent

	CreateCallCount int32
	CreateError     error
}

// NewMockWebhookEventRepository creates a new mock webhook event repository.
func NewMockWebhookEventRepository() *MockWebhookEventRepository {
	return &MockWebhookEventRepository{
		events: make(map[string]*domain.WebhookEvent),
	}
}

func (m *MockWebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ProviderEventID]; ok {
		return repository.ErrDuplicate
	}
	copy := *event
	m.events[event.ProviderEventID] = &copy
	return nil
}

// GetEvent returns the stored event for a provider event id.
func (m *MockWebhookEventRepository) GetEvent(providerEventID string) *domain.WebhookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[providerEventID]
}

// Count returns the number of stored events.
func (m *MockWebhookEventRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockEventStore is a mock implementation of redis.EventStoreInterface.
type MockEventStore struct {
	mu        sync.RWMutex
	processed map[string]bool

	IsProcessedError   error
	MarkProcessedError error
}

// NewMockEventStore creates a new mock event store.
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{processed: make(map[string]bool)}
}

func (m *MockEventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if m.IsProcessedError != nil {
		return false, m.IsProcessedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processed[eventID], nil
}

func (m *MockEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	if m.MarkProcessedError != nil {
		return m.MarkProcessedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

// Processed reports whether eventID was marked.
func (m *MockEventStore) Processed(eventID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processed[eventID]
}

// MockSessionCache is a mock implementation of redis.SessionCacheInterface.
type MockSessionCache struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession

	GetError error
}

// NewMockSessionCache creates a new mock session cache.
func NewMockSessionCache() *MockSessionCache {
	return &MockSessionCache{sessions: make(map[string]*domain.CheckoutSession)}
}

func (m *MockSessionCache) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *s
	return &copy, nil
}

func (m *MockSessionCache) SetSession(ctx context.Context, session *domain.CheckoutSession) error {
	if !session.IsSettled() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

// Cached reports whether a session is in the cache.
func (m *MockSessionCache) Cached(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK STRIPE CLIENTS
// ──────────────────────────────────────────────

// MockIntentAPI is a mock of the Stripe payment intent client.
type MockIntentAPI struct {
	mu         sync.Mutex
	lastParams *stripe.PaymentIntentParams

	NewCallCount int32

	// Intent is returned on success; Error wins when set.
	Intent *stripe.PaymentIntent
	Error  error
}

// NewMockIntentAPI creates a mock that echoes the requested amount and currency.
func NewMockIntentAPI() *MockIntentAPI {
	return &MockIntentAPI{}
}

func (m *MockIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	atomic.AddInt32(&m.NewCallCount, 1)
	m.mu.Lock()
	m.lastParams = params
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if m.Intent != nil {
		return m.Intent, nil
	}
	return &stripe.PaymentIntent{
		ID:           "pi_test_1",
		Status:       stripe.PaymentIntentStatusSucceeded,
		ClientSecret: "pi_test_1_secret",
		Amount:       stripe.Int64Value(params.Amount),
		Currency:     stripe.Currency(stripe.StringValue(params.Currency)),
	}, nil
}

// LastParams returns the params of the most recent call.
func (m *MockIntentAPI) LastParams() *stripe.PaymentIntentParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

// MockSessionAPI is a mock of the Stripe checkout session client.
type MockSessionAPI struct {
	mu         sync.Mutex
	sessions   map[string]*stripe.CheckoutSession
	lastParams *stripe.CheckoutSessionParams

	NewCallCount int32
	GetCallCount int32

	NewError error
	GetError error
}

// NewMockSessionAPI creates a new mock session API.
func NewMockSessionAPI() *MockSessionAPI {
	return &MockSessionAPI{sessions: make(map[string]*stripe.CheckoutSession)}
}

// AddSession makes a session retrievable.
func (m *MockSessionAPI) AddSession(session *stripe.CheckoutSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *MockSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	n := atomic.AddInt32(&m.NewCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastParams = params

	if m.NewError != nil {
		return nil, m.NewError
	}

	id := "cs_test_" + string(rune('a'+n-1))
	session := &stripe.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.com/c/pay/" + id,
		Status:        stripe.CheckoutSessionStatusOpen,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		Currency:      stripe.Currency(stripe.StringValue(params.Currency)),
	}
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionAPI) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Type: stripe.ErrorTypeInvalidRequest, Msg: "No such checkout.session: " + id}
	}
	return session, nil
}

// LastParams returns the params of the most recent create call.
func (m *MockSessionAPI) LastParams() *stripe.CheckoutSessionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published status changes.
type MockPublisher struct {
	mu      sync.Mutex
	changes []domain.PaymentStatusChanged

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, change domain.PaymentStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return m.PublishError
}

// Changes returns a copy of everything published.
func (m *MockPublisher) Changes() []domain.PaymentStatusChanged {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PaymentStatusChanged, len(m.changes))
	copy(out, m.changes)
	return out
}
