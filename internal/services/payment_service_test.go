package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wajihaissa/fahamni/internal/models"
)

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionStore) Save(ctx context.Context, tx *models.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionStore) ExistsByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (bool, error) {
	args := m.Called(ctx, checkoutSessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionStore) FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, checkoutSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) LatestPendingByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) LatestByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

type MockReservationStore struct {
	mock.Mock
}

func (m *MockReservationStore) Create(ctx context.Context, reservation *models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockReservationStore) Save(ctx context.Context, reservation *models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockReservationStore) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationStore) CountActiveBySeance(ctx context.Context, seanceID uint) (int64, error) {
	args := m.Called(ctx, seanceID)
	return args.Get(0).(int64), args.Error(1)
}

type MockCheckoutGateway struct {
	mock.Mock
}

func (m *MockCheckoutGateway) ProviderName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCheckoutGateway) Currency() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCheckoutGateway) CreateCheckoutSession(ctx context.Context, r *models.Reservation) (*CheckoutSession, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

type MockTutorNotifier struct {
	mock.Mock
}

func (m *MockTutorNotifier) NotifyTutorPaymentReceived(ctx context.Context, r *models.Reservation, tx *models.PaymentTransaction, provider, externalRef string, paidAt time.Time) error {
	args := m.Called(ctx, r, tx, provider, externalRef, paidAt)
	return args.Error(0)
}

func TestPaymentService_Open_DuplicateCheckoutSession(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockResStore := &MockReservationStore{}
	service := NewPaymentService(mockTxStore, mockResStore, nil, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7}

	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "cs_test_123").Return(true, nil).Once()

	tx, err := service.Open(ctx, reservation, "cs_test_123", 3000, "tnd", "student@example.com")

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ErrDuplicateCheckoutSession)

	mockTxStore.AssertExpectations(t)
	mockTxStore.AssertNotCalled(t, "Create")
}

func TestPaymentService_Open_Success(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockResStore := &MockReservationStore{}
	service := NewPaymentService(mockTxStore, mockResStore, nil, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7}

	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "cs_test_123").Return(false, nil).Once()
	mockTxStore.On("Create", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()

	tx, err := service.Open(ctx, reservation, "cs_test_123", 3000, "tnd", "student@example.com")

	assert.NoError(t, err)
	assert.NotNil(t, tx)
	assert.Equal(t, uint(7), tx.ReservationID)
	assert.Equal(t, "cs_test_123", tx.CheckoutSessionID)
	assert.Equal(t, int64(3000), tx.AmountCents)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Nil(t, tx.PaidAt)

	mockTxStore.AssertExpectations(t)
}

func TestPaymentService_MarkPaid_RejectsNonPending(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()
	firstPaidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tx := &models.PaymentTransaction{
		ID:     3,
		Status: models.TransactionStatusPaid,
		PaidAt: &firstPaidAt,
	}

	err := service.MarkPaid(ctx, tx, "pi_second", firstPaidAt.Add(time.Minute))

	assert.ErrorIs(t, err, ErrInvalidTransactionState)
	assert.Equal(t, firstPaidAt, *tx.PaidAt)
	assert.Nil(t, tx.PaymentIntentID)

	mockTxStore.AssertNotCalled(t, "Save")
}

func TestPaymentService_MarkPaid_Success(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tx := &models.PaymentTransaction{ID: 3, Status: models.TransactionStatusPending}

	mockTxStore.On("Save", ctx, tx).Return(nil).Once()

	err := service.MarkPaid(ctx, tx, "pi_test_456", paidAt)

	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, tx.Status)
	assert.Equal(t, "pi_test_456", *tx.PaymentIntentID)
	assert.Equal(t, paidAt, *tx.PaidAt)

	mockTxStore.AssertExpectations(t)
}

func TestPaymentService_MarkFailed_NeverDowngradesPaid(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tx := &models.PaymentTransaction{
		ID:     3,
		Status: models.TransactionStatusPaid,
		PaidAt: &paidAt,
	}

	// A stale failure callback after the payment settled is benign.
	err := service.MarkFailed(ctx, tx, "konnect payment not completed", paidAt.Add(time.Hour))

	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, tx.Status)
	assert.Nil(t, tx.ErrorMessage)
	assert.Equal(t, paidAt, *tx.PaidAt)

	mockTxStore.AssertNotCalled(t, "Save")
}

func TestPaymentService_MarkFailed_Idempotent(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()
	firstReason := "card declined"
	tx := &models.PaymentTransaction{
		ID:           3,
		Status:       models.TransactionStatusFailed,
		ErrorMessage: &firstReason,
	}

	err := service.MarkFailed(ctx, tx, "session expired", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, "card declined", *tx.ErrorMessage)

	mockTxStore.AssertNotCalled(t, "Save")
}

func TestPaymentService_MarkFailed_FromPending(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()
	tx := &models.PaymentTransaction{ID: 3, Status: models.TransactionStatusPending}

	mockTxStore.On("Save", ctx, tx).Return(nil).Once()

	err := service.MarkFailed(ctx, tx, "session expired", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "session expired", *tx.ErrorMessage)

	mockTxStore.AssertExpectations(t)
}

func TestPaymentService_HandleCompletedCheckout_Success(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockResStore := &MockReservationStore{}
	mockNotifier := &MockTutorNotifier{}
	service := NewPaymentService(mockTxStore, mockResStore, nil, mockNotifier)

	ctx := context.Background()
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tx := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_123",
		Status:            models.TransactionStatusPending,
		Metadata:          map[string]any{"provider": "stripe"},
	}
	reservation := &models.Reservation{
		ID:     7,
		Status: models.ReservationStatusAccepted,
		Seance: models.Seance{TuteurID: 4},
	}

	mockTxStore.On("FindByCheckoutSessionID", ctx, "cs_test_123").Return(tx, nil).Once()
	mockTxStore.On("Save", ctx, tx).Return(nil).Once()
	mockResStore.On("FindByID", ctx, uint(7)).Return(reservation, nil).Once()
	mockResStore.On("Save", ctx, reservation).Return(nil).Once()
	mockNotifier.On("NotifyTutorPaymentReceived", ctx, reservation, tx, "stripe", "pi_test_456", paidAt).Return(nil).Once()

	err := service.HandleCompletedCheckout(ctx, "cs_test_123", "pi_test_456", paidAt)

	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, tx.Status)
	assert.Equal(t, models.ReservationStatusPaid, reservation.Status)

	mockTxStore.AssertExpectations(t)
	mockResStore.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
}

func TestPaymentService_HandleCompletedCheckout_DuplicateCallback(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockResStore := &MockReservationStore{}
	mockNotifier := &MockTutorNotifier{}
	service := NewPaymentService(mockTxStore, mockResStore, nil, mockNotifier)

	ctx := context.Background()
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tx := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_123",
		Status:            models.TransactionStatusPaid,
		PaidAt:            &paidAt,
	}

	mockTxStore.On("FindByCheckoutSessionID", ctx, "cs_test_123").Return(tx, nil).Once()

	// The replayed webhook resolves to a no-op, not an error.
	err := service.HandleCompletedCheckout(ctx, "cs_test_123", "pi_test_456", paidAt.Add(time.Minute))

	assert.NoError(t, err)
	assert.Equal(t, paidAt, *tx.PaidAt)

	mockTxStore.AssertNotCalled(t, "Save")
	mockResStore.AssertNotCalled(t, "FindByID")
	mockNotifier.AssertNotCalled(t, "NotifyTutorPaymentReceived")
}

func TestPaymentService_HandleCompletedCheckout_UnknownSession(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, nil, nil)

	ctx := context.Background()

	mockTxStore.On("FindByCheckoutSessionID", ctx, "cs_unknown").Return(nil, nil).Once()

	err := service.HandleCompletedCheckout(ctx, "cs_unknown", "", time.Now())

	assert.ErrorIs(t, err, ErrTransactionNotFound)
	mockTxStore.AssertExpectations(t)
}

func TestPaymentService_HandleCompletedCheckout_NotifierFailureIsNotFatal(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockResStore := &MockReservationStore{}
	mockNotifier := &MockTutorNotifier{}
	service := NewPaymentService(mockTxStore, mockResStore, nil, mockNotifier)

	ctx := context.Background()
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tx := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_123",
		Status:            models.TransactionStatusPending,
	}
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusAccepted}

	mockTxStore.On("FindByCheckoutSessionID", ctx, "cs_test_123").Return(tx, nil).Once()
	mockTxStore.On("Save", ctx, tx).Return(nil).Once()
	mockResStore.On("FindByID", ctx, uint(7)).Return(reservation, nil).Once()
	mockResStore.On("Save", ctx, reservation).Return(nil).Once()
	mockNotifier.On("NotifyTutorPaymentReceived", ctx, reservation, tx, mock.Anything, mock.Anything, paidAt).
		Return(errors.New("push backend down")).Once()

	err := service.HandleCompletedCheckout(ctx, "cs_test_123", "", paidAt)

	assert.NoError(t, err)
	assert.Equal(t, models.ReservationStatusPaid, reservation.Status)

	mockNotifier.AssertExpectations(t)
}

func TestPaymentService_CreateCheckoutForReservation_AlreadyPaid(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusPaid}

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.Empty(t, url)
	assert.ErrorIs(t, err, ErrReservationAlreadyPaid)

	mockGateway.AssertNotCalled(t, "CreateCheckoutSession")
}

func TestPaymentService_CreateCheckoutForReservation_ReusesFreshPending(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusAccepted}

	pending := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_123",
		Status:            models.TransactionStatusPending,
		Currency:          "tnd",
		CreatedAt:         time.Now().Add(-5 * time.Minute),
		Metadata: map[string]any{
			"provider":     "stripe",
			"redirect_url": "https://checkout.stripe.com/c/pay/cs_test_123",
		},
	}

	mockTxStore.On("LatestPendingByReservation", ctx, uint(7)).Return(pending, nil).Once()
	mockGateway.On("ProviderName").Return("stripe")
	mockGateway.On("Currency").Return("tnd")

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", url)

	mockGateway.AssertNotCalled(t, "CreateCheckoutSession")
	mockTxStore.AssertNotCalled(t, "Create")
}

func TestPaymentService_CreateCheckoutForReservation_ProviderChangeOpensNew(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusAccepted}

	// Fresh pending checkout, but opened under a different provider.
	pending := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_old",
		Status:            models.TransactionStatusPending,
		Currency:          "tnd",
		CreatedAt:         time.Now().Add(-5 * time.Minute),
		Metadata: map[string]any{
			"provider":     "stripe",
			"redirect_url": "https://checkout.stripe.com/c/pay/cs_test_old",
		},
	}
	session := &CheckoutSession{
		ExternalRef: "konnect_ref_new",
		RedirectURL: "https://gateway.sandbox.konnect.network/pay?ref=konnect_ref_new",
		AmountCents: 3000,
		Currency:    "tnd",
	}

	mockTxStore.On("LatestPendingByReservation", ctx, uint(7)).Return(pending, nil).Once()
	mockGateway.On("ProviderName").Return("konnect")
	mockGateway.On("CreateCheckoutSession", ctx, reservation).Return(session, nil).Once()
	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "konnect_ref_new").Return(false, nil).Once()
	mockTxStore.On("Create", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()
	mockTxStore.On("Save", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.NoError(t, err)
	assert.Equal(t, session.RedirectURL, url)

	mockTxStore.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestPaymentService_CreateCheckoutForReservation_CurrencyChangeOpensNew(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusAccepted}

	pending := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_old",
		Status:            models.TransactionStatusPending,
		Currency:          "eur",
		CreatedAt:         time.Now().Add(-5 * time.Minute),
		Metadata: map[string]any{
			"provider":     "stripe",
			"redirect_url": "https://checkout.stripe.com/c/pay/cs_test_old",
		},
	}
	session := &CheckoutSession{
		ExternalRef: "cs_test_new",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_new",
		AmountCents: 3000,
		Currency:    "tnd",
	}

	mockTxStore.On("LatestPendingByReservation", ctx, uint(7)).Return(pending, nil).Once()
	mockGateway.On("ProviderName").Return("stripe")
	mockGateway.On("Currency").Return("tnd")
	mockGateway.On("CreateCheckoutSession", ctx, reservation).Return(session, nil).Once()
	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "cs_test_new").Return(false, nil).Once()
	mockTxStore.On("Create", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()
	mockTxStore.On("Save", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.NoError(t, err)
	assert.Equal(t, session.RedirectURL, url)

	mockTxStore.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestPaymentService_CreateCheckoutForReservation_OpensNewSession(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{
		ID:          7,
		Status:      models.ReservationStatusAccepted,
		SeanceID:    2,
		Participant: models.User{Email: "student@example.com"},
	}

	session := &CheckoutSession{
		ExternalRef: "cs_test_new",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_new",
		AmountCents: 4500,
		Currency:    "tnd",
	}

	mockTxStore.On("LatestPendingByReservation", ctx, uint(7)).Return(nil, nil).Once()
	mockGateway.On("CreateCheckoutSession", ctx, reservation).Return(session, nil).Once()
	mockGateway.On("ProviderName").Return("stripe").Once()
	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "cs_test_new").Return(false, nil).Once()
	mockTxStore.On("Create", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()
	mockTxStore.On("Save", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.NoError(t, err)
	assert.Equal(t, session.RedirectURL, url)

	mockTxStore.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestPaymentService_CreateCheckoutForReservation_StalePendingOpensNew(t *testing.T) {
	mockTxStore := &MockTransactionStore{}
	mockGateway := &MockCheckoutGateway{}
	service := NewPaymentService(mockTxStore, &MockReservationStore{}, mockGateway, nil)

	ctx := context.Background()
	reservation := &models.Reservation{ID: 7, Status: models.ReservationStatusAccepted}

	stale := &models.PaymentTransaction{
		ID:                3,
		ReservationID:     7,
		CheckoutSessionID: "cs_test_old",
		Status:            models.TransactionStatusPending,
		CreatedAt:         time.Now().Add(-time.Hour),
		Metadata:          map[string]any{"redirect_url": "https://checkout.stripe.com/c/pay/cs_test_old"},
	}
	session := &CheckoutSession{
		ExternalRef: "cs_test_new",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_new",
		AmountCents: 3000,
		Currency:    "tnd",
	}

	mockTxStore.On("LatestPendingByReservation", ctx, uint(7)).Return(stale, nil).Once()
	mockGateway.On("CreateCheckoutSession", ctx, reservation).Return(session, nil).Once()
	mockGateway.On("ProviderName").Return("stripe").Once()
	mockTxStore.On("ExistsByCheckoutSessionID", ctx, "cs_test_new").Return(false, nil).Once()
	mockTxStore.On("Create", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()
	mockTxStore.On("Save", ctx, mock.AnythingOfType("*models.PaymentTransaction")).Return(nil).Once()

	url, err := service.CreateCheckoutForReservation(ctx, reservation)

	assert.NoError(t, err)
	assert.Equal(t, session.RedirectURL, url)

	mockTxStore.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}
