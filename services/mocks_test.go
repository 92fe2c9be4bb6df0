package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/recipebook/recipebook-server/domain"
)

// fakeUserRepo is an in-memory UserRepository that records subscription
// updates.

type subscriptionCall struct {
	userID        string
	status        domain.SubscriptionStatus
	expiry        *time.Time
	paymentMethod string
}

type fakeUserRepo struct {
	users map[string]*domain.User

	createErr        error
	updateErr        error
	setSubErr        error
	subscriptionLog  []subscriptionCall
	updatedUsers     []*domain.User
	createdUsers     []*domain.User
	nextGeneratedID  int
	failCreateExists bool
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	if r.failCreateExists {
		return domain.ErrAlreadyExists
	}
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domain.ErrAlreadyExists
		}
	}
	if user.ID == "" {
		r.nextGeneratedID++
		user.ID = fmt.Sprintf("generated-%d", r.nextGeneratedID)
	}
	r.users[user.ID] = user
	r.createdUsers = append(r.createdUsers, user)
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetUserByProvider(_ context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	for _, user := range r.users {
		if user.AuthProvider == provider && user.ProviderID == providerID {
			return user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, user *domain.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.users[user.ID] = user
	r.updatedUsers = append(r.updatedUsers, user)
	return nil
}

func (r *fakeUserRepo) SetSubscription(_ context.Context, userID string, status domain.SubscriptionStatus, expiry *time.Time, paymentMethod string) error {
	if r.setSubErr != nil {
		return r.setSubErr
	}
	r.subscriptionLog = append(r.subscriptionLog, subscriptionCall{
		userID:        userID,
		status:        status,
		expiry:        expiry,
		paymentMethod: paymentMethod,
	})
	if user, ok := r.users[userID]; ok {
		user.SubscriptionStatus = status
		user.SubscriptionExpiry = expiry
	}
	return nil
}

// fakeLedger is an in-memory LedgerRepository.

type fakeLedger struct {
	transactions map[string]*domain.Transaction // keyed by transaction id
	events       map[string]*domain.StripeEvent // keyed by event id

	insertTxErr    error
	insertEventErr error

	insertedTx     []*domain.Transaction
	insertedEvents []*domain.StripeEvent
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		transactions: make(map[string]*domain.Transaction),
		events:       make(map[string]*domain.StripeEvent),
	}
}

func (l *fakeLedger) FindTransaction(_ context.Context, userID, transactionID string) (*domain.Transaction, error) {
	if tx, ok := l.transactions[transactionID]; ok && tx.UserID == userID {
		return tx, nil
	}
	return nil, domain.ErrNotFound
}

func (l *fakeLedger) InsertTransaction(_ context.Context, tx *domain.Transaction) error {
	if l.insertTxErr != nil {
		return l.insertTxErr
	}
	if _, ok := l.transactions[tx.TransactionID]; ok {
		return domain.ErrAlreadyExists
	}
	l.transactions[tx.TransactionID] = tx
	l.insertedTx = append(l.insertedTx, tx)
	return nil
}

func (l *fakeLedger) FindEvent(_ context.Context, eventID string) (*domain.StripeEvent, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return nil, domain.ErrNotFound
}

func (l *fakeLedger) InsertEvent(_ context.Context, event *domain.StripeEvent) error {
	if l.insertEventErr != nil {
		return l.insertEventErr
	}
	if _, ok := l.events[event.EventID]; ok {
		return domain.ErrAlreadyExists
	}
	l.events[event.EventID] = event
	l.insertedEvents = append(l.insertedEvents, event)
	return nil
}

// fakeValidator returns a canned result and counts invocations.

type fakeValidator struct {
	result *domain.ValidationResult
	calls  int
}

func (v *fakeValidator) Validate(context.Context, string, string) *domain.ValidationResult {
	v.calls++
	return v.result
}

// fakeVerifier returns a canned event or error.

type fakeVerifier struct {
	event stripe.Event
	err   error
	calls int
}

func (v *fakeVerifier) VerifySignature([]byte, string) (stripe.Event, error) {
	v.calls++
	if v.err != nil {
		return stripe.Event{}, v.err
	}
	return v.event, nil
}

// passthroughTx runs the callback without a real store transaction.

type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}
