package referral

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introhq/introhq/internal/model"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeIntroStore struct {
	intros map[string]*model.Introduction
	saves  int
}

func newFakeIntroStore(intros ...*model.Introduction) *fakeIntroStore {
	s := &fakeIntroStore{intros: map[string]*model.Introduction{}}
	for _, intro := range intros {
		copied := *intro
		s.intros[intro.ID] = &copied
	}
	return s
}

func (s *fakeIntroStore) CreateIntroduction(_ context.Context, intro *model.Introduction) error {
	copied := *intro
	s.intros[intro.ID] = &copied
	return nil
}

func (s *fakeIntroStore) GetIntroduction(_ context.Context, id string) (*model.Introduction, error) {
	intro, ok := s.intros[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := *intro
	return &copied, nil
}

func (s *fakeIntroStore) SaveIntroductionStatus(_ context.Context, intro *model.Introduction) error {
	if _, ok := s.intros[intro.ID]; !ok {
		return model.ErrNotFound
	}
	copied := *intro
	s.intros[intro.ID] = &copied
	s.saves++
	return nil
}

func (s *fakeIntroStore) SetRequestStatus(_ context.Context, id string, status model.RequestStatus) error {
	intro, ok := s.intros[id]
	if !ok {
		return model.ErrNotFound
	}
	intro.RequestStatus = status
	return nil
}

func (s *fakeIntroStore) SetReminder(_ context.Context, id, message string) error {
	intro, ok := s.intros[id]
	if !ok {
		return model.ErrNotFound
	}
	intro.ReminderMessage = message
	return nil
}

func (s *fakeIntroStore) SetRevoked(_ context.Context, id string, revoked bool) error {
	intro, ok := s.intros[id]
	if !ok {
		return model.ErrNotFound
	}
	intro.Revoked = revoked
	return nil
}

type ensureCall struct {
	userID, email, firstName, lastName string
}

type fakeContacts struct {
	calls   []ensureCall
	created map[string]bool // userID|email pairs already present
}

func (f *fakeContacts) EnsureContact(_ context.Context, userID, email, firstName, lastName string) (bool, error) {
	f.calls = append(f.calls, ensureCall{userID, email, firstName, lastName})
	if f.created == nil {
		f.created = map[string]bool{}
	}
	key := fmt.Sprintf("%s|%s", userID, email)
	if f.created[key] {
		return false, nil
	}
	f.created[key] = true
	return true, nil
}

type fakeNotifier struct {
	reminders int
	connected int
}

func (f *fakeNotifier) SendReminder(context.Context, *model.Introduction, string) error {
	f.reminders++
	return nil
}

func (f *fakeNotifier) SendConnected(context.Context, *model.Introduction) error {
	f.connected++
	return nil
}

func testIntro() *model.Introduction {
	return &model.Introduction{
		ID:                  "intro-1",
		From:                model.Party{ID: "u-from", Email: "from@example.com", FirstName: "fay", LastName: "fromm"},
		Introduced:          model.Party{ID: "u-a", Email: "a@example.com", FirstName: "ann", LastName: "able"},
		IntroducedTo:        model.Party{ID: "u-b", Email: "b@example.com", FirstName: "bob", LastName: "baker"},
		IntroducedStatus:    model.PartyPending,
		IntroducedMessage:   MsgNewIntroduction,
		IntroducedToStatus:  model.PartyPending,
		IntroducedToMessage: MsgNewIntroduction,
		OverallStatus:       model.OverallPending,
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_OnePerRecipient(t *testing.T) {
	intros := newFakeIntroStore()
	svc := NewService(intros, &fakeContacts{}, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		From:       model.Party{ID: "u-from", Email: "from@example.com"},
		Introduced: model.Party{ID: "u-a", Email: "a@example.com"},
		Recipients: []model.Party{
			{Email: "b@example.com"},
			{Email: "c@example.com"},
		},
		Message: "you two should talk",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, intro := range created {
		assert.NotEmpty(t, intro.ID)
		assert.Equal(t, model.PartyPending, intro.IntroducedStatus)
		assert.Equal(t, model.PartyPending, intro.IntroducedToStatus)
		assert.Equal(t, MsgNewIntroduction, intro.IntroducedMessage)
		assert.Equal(t, MsgNewIntroduction, intro.IntroducedToMessage)
		assert.False(t, intro.IntroducedIsAttempt)
		assert.False(t, intro.IntroducedToIsAttempt)
		assert.Equal(t, model.OverallPending, intro.OverallStatus)
		assert.Empty(t, intro.RequestStatus)
		assert.Equal(t, "you two should talk", intro.Message)
	}
	assert.NotEqual(t, created[0].ID, created[1].ID)
}

func TestCreate_GroupGatedSetsRequestStatus(t *testing.T) {
	svc := NewService(newFakeIntroStore(), nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		From:       model.Party{Email: "from@example.com"},
		Introduced: model.Party{Email: "a@example.com"},
		Recipients: []model.Party{{Email: "b@example.com"}},
		GroupGated: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, created[0].RequestStatus)
}

func TestCreate_NoRecipients(t *testing.T) {
	svc := NewService(newFakeIntroStore(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		Introduced: model.Party{Email: "a@example.com"},
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

// ---------------------------------------------------------------------------
// UpdateStatus
// ---------------------------------------------------------------------------

func TestUpdateStatus_IntroducedConnects(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	svc := NewService(intros, &fakeContacts{}, nil)

	intro, err := svc.UpdateStatus(context.Background(), "intro-1", "u-a", model.PartyConnected)
	require.NoError(t, err)

	assert.Equal(t, model.PartyConnected, intro.IntroducedStatus)
	assert.True(t, intro.IntroducedIsAttempt)
	assert.Equal(t, MsgAwaitingResponse, intro.IntroducedMessage)
	assert.Equal(t, model.PartyPending, intro.IntroducedToStatus)
	assert.False(t, intro.IntroducedToIsAttempt)
	assert.Equal(t, model.OverallPartial, intro.OverallStatus)
}

func TestUpdateStatus_BothConnectedCreatesReciprocalContacts(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	contacts := &fakeContacts{}
	notifier := &fakeNotifier{}
	svc := NewService(intros, contacts, notifier)

	_, err := svc.UpdateStatus(context.Background(), "intro-1", "u-a", model.PartyConnected)
	require.NoError(t, err)
	assert.Empty(t, contacts.calls, "no contacts until both sides connect")

	intro, err := svc.UpdateStatus(context.Background(), "intro-1", "u-b", model.PartyConnected)
	require.NoError(t, err)

	assert.Equal(t, model.OverallConnected, intro.OverallStatus)
	assert.Equal(t, MsgConnected, intro.IntroducedMessage)
	assert.Equal(t, MsgConnected, intro.IntroducedToMessage)
	require.Len(t, contacts.calls, 2)
	assert.Contains(t, contacts.calls, ensureCall{"u-b", "a@example.com", "ann", "able"})
	assert.Contains(t, contacts.calls, ensureCall{"u-a", "b@example.com", "bob", "baker"})
	assert.Equal(t, 1, notifier.connected)
}

func TestUpdateStatus_RepeatIsIdempotent(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	contacts := &fakeContacts{}
	svc := NewService(intros, contacts, nil)

	_, err := svc.UpdateStatus(context.Background(), "intro-1", "u-a", model.PartyConnected)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), "intro-1", "u-b", model.PartyConnected)
	require.NoError(t, err)

	// Same final status again: allowed, and no duplicate contacts.
	_, err = svc.UpdateStatus(context.Background(), "intro-1", "u-b", model.PartyConnected)
	require.NoError(t, err)

	created := 0
	for _, ok := range contacts.created {
		if ok {
			created++
		}
	}
	assert.Equal(t, 2, created)
}

func TestUpdateStatus_TerminalTransitionRejected(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	svc := NewService(intros, &fakeContacts{}, nil)

	_, err := svc.UpdateStatus(context.Background(), "intro-1", "u-a", model.PartyDecline)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), "intro-1", "u-a", model.PartyConnected)
	assert.ErrorIs(t, err, model.ErrIllegalState)
}

func TestUpdateStatus_NotAParty(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	svc := NewService(intros, &fakeContacts{}, nil)

	_, err := svc.UpdateStatus(context.Background(), "intro-1", "u-stranger", model.PartyConnected)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// The connector cannot set a party status either.
	_, err = svc.UpdateStatus(context.Background(), "intro-1", "u-from", model.PartyConnected)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc := NewService(newFakeIntroStore(testIntro()), nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "intro-1", "u-a", "accepted")
	assert.ErrorIs(t, err, model.ErrValidation)
}

// ---------------------------------------------------------------------------
// Request status, reminder, revoke
// ---------------------------------------------------------------------------

func TestUpdateRequestStatus(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	svc := NewService(intros, nil, nil)

	intro, err := svc.UpdateRequestStatus(context.Background(), "intro-1", model.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, intro.RequestStatus)

	_, err = svc.UpdateRequestStatus(context.Background(), "intro-1", "maybe")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSendReminder(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	notifier := &fakeNotifier{}
	svc := NewService(intros, nil, notifier)

	err := svc.SendReminder(context.Background(), "intro-1", "u-from", "any update?")
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.reminders)

	saved, err := intros.GetIntroduction(context.Background(), "intro-1")
	require.NoError(t, err)
	assert.Equal(t, "any update?", saved.ReminderMessage)

	err = svc.SendReminder(context.Background(), "intro-1", "u-stranger", "hello")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRevoke_OneShot(t *testing.T) {
	intros := newFakeIntroStore(testIntro())
	svc := NewService(intros, nil, nil)

	// Only the connector may revoke.
	err := svc.Revoke(context.Background(), "intro-1", "u-a", true)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, svc.Revoke(context.Background(), "intro-1", "u-from", true))

	err = svc.Revoke(context.Background(), "intro-1", "u-from", true)
	assert.ErrorIs(t, err, model.ErrIllegalState)
}
