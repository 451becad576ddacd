package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	"lexportal-backend/internal/repository/memory"
	apperrors "lexportal-backend/pkg/errors"
)

const lawyerID = "lawyer-1"

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, message string) {
	m.Called(ctx, userID, message)
}

// MockConversations is a mock implementation of Conversations
type MockConversations struct {
	mock.Mock
}

func (m *MockConversations) CreateCaseConversation(ctx context.Context, c *domain.Case) (*domain.Conversation, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversations) RefreshClientIdentity(ctx context.Context, client *domain.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

type fixture struct {
	svc           *Service
	store         *memory.Store
	notifier      *MockNotifier
	conversations *MockConversations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notifier := new(MockNotifier)
	conversations := new(MockConversations)

	svc := NewService(store, conversations, notifier, lawyerID)
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
	seq := 0
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id%04d", seq)
	}

	for _, c := range []domain.Client{
		{ID: "c1", Name: "Camille Martin", Email: "camille@example.com"},
		{ID: "c2", Name: "Bruno Petit", Email: "bruno@example.com"},
	} {
		require.NoError(t, store.Create(context.Background(), docstore.CollectionClients, c.ID, c))
	}

	return &fixture{svc: svc, store: store, notifier: notifier, conversations: conversations}
}

func (f *fixture) openCase(t *testing.T, clientID string) *domain.Case {
	t.Helper()
	f.conversations.On("CreateCaseConversation", mock.Anything, mock.Anything).Return(&domain.Conversation{}, nil).Maybe()
	c, err := f.svc.CreateCase(context.Background(), &CreateCaseInput{ClientID: clientID, Title: "Bail commercial"})
	require.NoError(t, err)
	return c
}

func (f *fixture) expectNotify(userID, contains string) {
	f.notifier.On("Notify", mock.Anything, userID, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, contains)
	})).Return().Once()
}

func TestCreateClient(t *testing.T) {
	f := newFixture(t)

	client, err := f.svc.CreateClient(context.Background(), &CreateClientInput{Name: "  Alice Roy ", Email: "alice@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Alice Roy", client.Name)
	stored, err := f.svc.GetClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.Email, stored.Email)
}

func TestCreateClient_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateClient(context.Background(), &CreateClientInput{Email: "x@example.com"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = f.svc.CreateClient(context.Background(), &CreateClientInput{Name: "X", Email: "not-an-email"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestListClients_SortedByName(t *testing.T) {
	f := newFixture(t)

	clients, err := f.svc.ListClients(context.Background())
	require.NoError(t, err)

	require.Len(t, clients, 2)
	assert.Equal(t, "Bruno Petit", clients[0].Name)
	assert.Equal(t, "Camille Martin", clients[1].Name)
}

func TestUpdateClientProfile_RefreshesConversations(t *testing.T) {
	f := newFixture(t)
	name := "Camille Martin-Leroy"
	f.conversations.On("RefreshClientIdentity", mock.Anything, mock.MatchedBy(func(c *domain.Client) bool {
		return c.ID == "c1" && c.Name == name
	})).Return(nil).Once()

	client, err := f.svc.UpdateClientProfile(context.Background(), "c1", &domain.ClientProfileUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, name, client.Name)
	assert.Equal(t, "camille@example.com", client.Email)
	stored, err := f.svc.GetClient(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, name, stored.Name)
	f.conversations.AssertExpectations(t)
}

func TestUpdateClientProfile_PhoneOnlySkipsRefresh(t *testing.T) {
	f := newFixture(t)
	phone := "+33 6 00 00 00 00"

	client, err := f.svc.UpdateClientProfile(context.Background(), "c2", &domain.ClientProfileUpdate{Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, "+33600000000", client.Phone)
	f.conversations.AssertNotCalled(t, "RefreshClientIdentity", mock.Anything, mock.Anything)
}

func TestUpdateClientProfile_RefreshFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	avatar := "https://cdn.example.com/c1.png"
	f.conversations.On("RefreshClientIdentity", mock.Anything, mock.Anything).Return(errors.New("store down")).Once()

	client, err := f.svc.UpdateClientProfile(context.Background(), "c1", &domain.ClientProfileUpdate{Avatar: &avatar})

	require.NoError(t, err)
	assert.Equal(t, avatar, client.Avatar)
}

func TestUpdateClientProfile_UnknownClient(t *testing.T) {
	f := newFixture(t)
	name := "Ghost"

	_, err := f.svc.UpdateClientProfile(context.Background(), "ghost", &domain.ClientProfileUpdate{Name: &name})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestCreateCase_OpensCaseConversation(t *testing.T) {
	f := newFixture(t)
	f.conversations.On("CreateCaseConversation", mock.Anything, mock.MatchedBy(func(c *domain.Case) bool {
		return c.ClientID == "c1" && c.Title == "Bail commercial"
	})).Return(&domain.Conversation{ID: "conv"}, nil).Once()

	c, err := f.svc.CreateCase(context.Background(), &CreateCaseInput{ClientID: "c1", Title: "Bail commercial"})
	require.NoError(t, err)

	assert.Equal(t, domain.CaseStatusOpen, c.Status)
	assert.Equal(t, "2024-ID0001", c.CaseNumber)
	f.conversations.AssertExpectations(t)
}

func TestCreateCase_ConversationFailureKeepsCase(t *testing.T) {
	f := newFixture(t)
	f.conversations.On("CreateCaseConversation", mock.Anything, mock.Anything).Return(nil, errors.New("store down")).Once()

	c, err := f.svc.CreateCase(context.Background(), &CreateCaseInput{ClientID: "c1", Title: "Divorce", CaseNumber: "2024-007"})
	require.NoError(t, err)

	detail, err := f.svc.GetCase(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-007", detail.CaseNumber)
}

func TestCreateCase_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCase(context.Background(), &CreateCaseInput{ClientID: "c1", Title: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = f.svc.CreateCase(context.Background(), &CreateCaseInput{ClientID: "ghost", Title: "Divorce"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	f.conversations.AssertNotCalled(t, "CreateCaseConversation", mock.Anything, mock.Anything)
}

func TestListCases_FilterAndOrder(t *testing.T) {
	f := newFixture(t)
	first := f.openCase(t, "c1")
	f.openCase(t, "c2")
	latest := f.openCase(t, "c1")

	cases, err := f.svc.ListCases(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, latest.ID, cases[0].ID)
	assert.Equal(t, first.ID, cases[1].ID)

	all, err := f.svc.ListCases(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := f.svc.ListCases(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCloseCase_NotifiesOnce(t *testing.T) {
	f := newFixture(t)
	c := f.openCase(t, "c1")
	f.expectNotify("c1", "has been closed")

	closed, err := f.svc.CloseCase(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	again, err := f.svc.CloseCase(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, *closed.ClosedAt, *again.ClosedAt)

	f.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestCloseCase_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CloseCase(context.Background(), "missing")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestRequestAppointment_NotifiesLawyer(t *testing.T) {
	f := newFixture(t)
	c := f.openCase(t, "c1")
	date := time.Date(2024, 4, 2, 14, 30, 0, 0, time.UTC)
	f.expectNotify(lawyerID, "02/04/2024 14:30")

	appointment, err := f.svc.RequestAppointment(context.Background(), &RequestAppointmentInput{
		CaseID: c.ID, Date: date, Purpose: "Signature", ActingUserID: "c1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AppointmentPending, appointment.Status)
	assert.Equal(t, "c1", appointment.ClientID)

	detail, err := f.svc.GetCase(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, detail.Appointments, 1)
	assert.Equal(t, appointment.ID, detail.Appointments[0].ID)
	f.notifier.AssertExpectations(t)
}

func TestRequestAppointment_Rules(t *testing.T) {
	f := newFixture(t)
	c := f.openCase(t, "c1")
	ctx := context.Background()
	date := time.Date(2024, 4, 2, 14, 30, 0, 0, time.UTC)

	_, err := f.svc.RequestAppointment(ctx, &RequestAppointmentInput{CaseID: c.ID, Date: date, Purpose: "x", ActingUserID: "c2"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	_, err = f.svc.RequestAppointment(ctx, &RequestAppointmentInput{CaseID: c.ID, Purpose: "x", ActingUserID: "c1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	f.expectNotify("c1", "has been closed")
	_, err = f.svc.CloseCase(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestAppointment(ctx, &RequestAppointmentInput{CaseID: c.ID, Date: date, Purpose: "x", ActingUserID: "c1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
}

func (f *fixture) bookAppointment(t *testing.T, c *domain.Case) *domain.Appointment {
	t.Helper()
	f.notifier.On("Notify", mock.Anything, lawyerID, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "New appointment request")
	})).Return().Once()
	appointment, err := f.svc.RequestAppointment(context.Background(), &RequestAppointmentInput{
		CaseID: c.ID, Date: time.Date(2024, 4, 2, 14, 30, 0, 0, time.UTC), Purpose: "Signature", ActingUserID: c.ClientID,
	})
	require.NoError(t, err)
	return appointment
}

func TestUpdateAppointmentStatus_LawyerConfirms(t *testing.T) {
	f := newFixture(t)
	appointment := f.bookAppointment(t, f.openCase(t, "c1"))
	f.expectNotify("c1", "has been confirmed")

	updated, err := f.svc.UpdateAppointmentStatus(context.Background(), appointment.ID, domain.AppointmentConfirmed, lawyerID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentConfirmed, updated.Status)

	// Same status again is a no-op
	_, err = f.svc.UpdateAppointmentStatus(context.Background(), appointment.ID, domain.AppointmentConfirmed, lawyerID)
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
	f.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestUpdateAppointmentStatus_Rules(t *testing.T) {
	f := newFixture(t)
	appointment := f.bookAppointment(t, f.openCase(t, "c1"))
	ctx := context.Background()

	_, err := f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentConfirmed, "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	_, err = f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentCancelled, "c2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	_, err = f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentPending, lawyerID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	f.expectNotify(lawyerID, "has been cancelled")
	_, err = f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentCancelled, "c1")
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentConfirmed, lawyerID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))

	_, err = f.svc.RescheduleAppointment(ctx, appointment.ID, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), lawyerID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	f.notifier.AssertExpectations(t)
}

func TestRescheduleAppointment_BackToPending(t *testing.T) {
	f := newFixture(t)
	appointment := f.bookAppointment(t, f.openCase(t, "c1"))
	ctx := context.Background()
	f.expectNotify("c1", "has been confirmed")
	_, err := f.svc.UpdateAppointmentStatus(ctx, appointment.ID, domain.AppointmentConfirmed, lawyerID)
	require.NoError(t, err)

	newDate := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.expectNotify("c1", "rescheduled to 01/05/2024 10:00")

	moved, err := f.svc.RescheduleAppointment(ctx, appointment.ID, newDate, lawyerID)
	require.NoError(t, err)

	assert.Equal(t, domain.AppointmentPending, moved.Status)
	assert.True(t, moved.Date.Equal(newDate))
	f.notifier.AssertExpectations(t)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	f.bookAppointment(t, f.openCase(t, "c1"))
	f.bookAppointment(t, f.openCase(t, "c2"))

	mine, err := f.svc.ListAppointments(context.Background(), "c2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.svc.ListAppointments(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateInvoice_NotifiesClient(t *testing.T) {
	f := newFixture(t)
	c := f.openCase(t, "c1")
	f.expectNotify("c1", "150.00 EUR")

	invoice, err := f.svc.CreateInvoice(context.Background(), &CreateInvoiceInput{
		ClientID: "c1", CaseID: c.ID, Description: "Consultation", Amount: 150,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceUnpaid, invoice.Status)
	assert.Equal(t, DefaultCurrency, invoice.Currency)
	assert.True(t, invoice.DueDate.After(invoice.CreatedAt))
	f.notifier.AssertExpectations(t)
}

func TestCreateInvoice_Validation(t *testing.T) {
	f := newFixture(t)
	c := f.openCase(t, "c2")
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, &CreateInvoiceInput{ClientID: "c1", Description: "x", Amount: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = f.svc.CreateInvoice(ctx, &CreateInvoiceInput{ClientID: "ghost", Description: "x", Amount: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	_, err = f.svc.CreateInvoice(ctx, &CreateInvoiceInput{ClientID: "c1", CaseID: c.ID, Description: "x", Amount: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectNotify("c1", "New invoice")
	invoice, err := f.svc.CreateInvoice(ctx, &CreateInvoiceInput{ClientID: "c1", Description: "Consultation", Amount: 80, Currency: "chf"})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, invoice.ID, "c2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	f.expectNotify(lawyerID, "80.00 CHF")
	paid, err := f.svc.RecordPayment(ctx, invoice.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.RecordPayment(ctx, invoice.ID, "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))

	list, err := f.svc.ListInvoices(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.InvoicePaid, list[0].Status)
	f.notifier.AssertExpectations(t)
}
