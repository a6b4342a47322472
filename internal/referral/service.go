package referral

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
	"github.com/introhq/introhq/internal/store"
)

// Contacts is the contact surface the state machine needs for the
// reciprocal-contact side effect on connect.
type Contacts interface {
	EnsureContact(ctx context.Context, userID, email, firstName, lastName string) (bool, error)
}

// Notifier sends fire-and-forget emails. Failures are logged, never
// propagated into a state transition.
type Notifier interface {
	SendReminder(ctx context.Context, intro *model.Introduction, message string) error
	SendConnected(ctx context.Context, intro *model.Introduction) error
}

// Service drives introduction lifecycle: creation, party status
// transitions, request-status gating, reminders, and revocation.
type Service struct {
	intros   store.IntroductionStore
	contacts Contacts
	notifier Notifier
}

// NewService creates a Service. notifier may be nil to disable emails.
func NewService(intros store.IntroductionStore, contacts Contacts, notifier Notifier) *Service {
	return &Service{intros: intros, contacts: contacts, notifier: notifier}
}

// CreateInput describes one make-an-intro call: the connector
// introduces one party to N recipients.
type CreateInput struct {
	From       model.Party
	Introduced model.Party
	Recipients []model.Party
	Message    string

	// GroupGated marks introductions originating inside a group; they
	// start with request_status pending and need approval.
	GroupGated bool
}

// Create persists one introduction per recipient. Both sub-statuses
// start pending with the "new introduction" message and no attempt
// recorded.
func (s *Service) Create(ctx context.Context, input CreateInput) ([]*model.Introduction, error) {
	if len(input.Recipients) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "referral: no recipients")
	}
	if strings.TrimSpace(input.Introduced.Email) == "" && strings.TrimSpace(input.Introduced.ID) == "" {
		return nil, eris.Wrap(model.ErrValidation, "referral: introduced party needs an id or email")
	}

	requestStatus := model.RequestStatus("")
	if input.GroupGated {
		requestStatus = model.RequestPending
	}

	intros := make([]*model.Introduction, 0, len(input.Recipients))
	for _, recipient := range input.Recipients {
		intro := &model.Introduction{
			ID:           uuid.NewString(),
			From:         input.From,
			Introduced:   input.Introduced,
			IntroducedTo: recipient,

			IntroducedStatus:  model.PartyPending,
			IntroducedMessage: MsgNewIntroduction,

			IntroducedToStatus:  model.PartyPending,
			IntroducedToMessage: MsgNewIntroduction,

			OverallStatus: model.OverallPending,
			RequestStatus: requestStatus,
			Message:       input.Message,
		}
		if err := s.intros.CreateIntroduction(ctx, intro); err != nil {
			return nil, err
		}
		intros = append(intros, intro)
	}

	zap.L().Info("introductions created",
		zap.String("from_email", input.From.Email),
		zap.Int("recipients", len(intros)),
		zap.Bool("group_gated", input.GroupGated),
	)
	return intros, nil
}

// Get returns an introduction the actor is a party to. Non-parties get
// not-found, not forbidden, so the row's existence is not leaked.
func (s *Service) Get(ctx context.Context, introID, actorID string) (*model.Introduction, error) {
	intro, err := s.intros.GetIntroduction(ctx, introID)
	if err != nil {
		return nil, err
	}
	if !isParty(intro, actorID) {
		return nil, eris.Wrap(model.ErrNotFound, "referral: user is not part of this introduction")
	}
	return intro, nil
}

// UpdateStatus applies one party's status choice. The actor must be the
// introduced or introduced_to party; the other slot keeps its current
// value and the pair is re-combined. Transitions away from a terminal
// status are rejected; re-asserting the same status is a no-op-safe
// repeat.
func (s *Service) UpdateStatus(ctx context.Context, introID, actorID string, status model.PartyStatus) (*model.Introduction, error) {
	if !status.Valid() {
		return nil, eris.Wrapf(model.ErrValidation, "referral: invalid status %q", status)
	}

	intro, err := s.intros.GetIntroduction(ctx, introID)
	if err != nil {
		return nil, err
	}

	var outcome Outcome
	switch actorID {
	case intro.Introduced.ID:
		if intro.IntroducedStatus.Terminal() && status != intro.IntroducedStatus {
			return nil, eris.Wrapf(model.ErrIllegalState, "referral: status already %s", intro.IntroducedStatus)
		}
		outcome = Combine(status, intro.IntroducedToStatus)
		intro.IntroducedStatus = status
		intro.IntroducedIsAttempt = true
		intro.IntroducedMessage = outcome.IntroducedMessage
	case intro.IntroducedTo.ID:
		if intro.IntroducedToStatus.Terminal() && status != intro.IntroducedToStatus {
			return nil, eris.Wrapf(model.ErrIllegalState, "referral: status already %s", intro.IntroducedToStatus)
		}
		outcome = Combine(intro.IntroducedStatus, status)
		intro.IntroducedToStatus = status
		intro.IntroducedToIsAttempt = true
		intro.IntroducedToMessage = outcome.IntroducedToMessage
	default:
		return nil, eris.Wrap(model.ErrNotFound, "referral: user is not part of this introduction")
	}
	intro.OverallStatus = outcome.Overall

	if err := s.intros.SaveIntroductionStatus(ctx, intro); err != nil {
		return nil, err
	}

	if intro.OverallStatus == model.OverallConnected {
		s.createReciprocalContacts(ctx, intro)
		s.notifyConnected(ctx, intro)
	}

	zap.L().Info("introduction status updated",
		zap.String("introduction_id", intro.ID),
		zap.String("actor_id", actorID),
		zap.String("status", string(status)),
		zap.String("overall", string(intro.OverallStatus)),
	)
	return intro, nil
}

// UpdateRequestStatus sets the group-approval field. It is independent
// of the party statuses.
func (s *Service) UpdateRequestStatus(ctx context.Context, introID string, status model.RequestStatus) (*model.Introduction, error) {
	if !status.Valid() {
		return nil, eris.Wrapf(model.ErrValidation, "referral: invalid request status %q", status)
	}
	if err := s.intros.SetRequestStatus(ctx, introID, status); err != nil {
		return nil, err
	}
	return s.intros.GetIntroduction(ctx, introID)
}

// SendReminder stores the reminder message and notifies by email. Any
// party to the introduction may send one.
func (s *Service) SendReminder(ctx context.Context, introID, actorID, message string) error {
	intro, err := s.intros.GetIntroduction(ctx, introID)
	if err != nil {
		return err
	}
	if !isParty(intro, actorID) {
		return eris.Wrap(model.ErrNotFound, "referral: user is not part of this introduction")
	}

	if err := s.intros.SetReminder(ctx, introID, message); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.SendReminder(ctx, intro, message); err != nil {
			zap.L().Warn("referral: reminder email failed",
				zap.String("introduction_id", introID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Revoke withdraws an introduction. Only the connector may revoke, and
// only once.
func (s *Service) Revoke(ctx context.Context, introID, actorID string, flag bool) error {
	intro, err := s.intros.GetIntroduction(ctx, introID)
	if err != nil {
		return err
	}
	if intro.From.ID != actorID {
		return eris.Wrap(model.ErrNotFound, "referral: user is not part of this introduction")
	}
	if intro.Revoked {
		return eris.Wrap(model.ErrIllegalState, "referral: already revoked")
	}
	return s.intros.SetRevoked(ctx, introID, flag)
}

// createReciprocalContacts makes each connected party a contact of the
// other. EnsureContact is a first-or-create, so repeats are harmless.
// Failures are logged; the status transition has already committed.
func (s *Service) createReciprocalContacts(ctx context.Context, intro *model.Introduction) {
	if s.contacts == nil {
		return
	}

	if intro.IntroducedTo.ID != "" {
		_, err := s.contacts.EnsureContact(ctx,
			intro.IntroducedTo.ID, intro.Introduced.Email,
			intro.Introduced.FirstName, intro.Introduced.LastName)
		if err != nil {
			zap.L().Warn("referral: reciprocal contact failed",
				zap.String("introduction_id", intro.ID),
				zap.String("owner_id", intro.IntroducedTo.ID),
				zap.Error(err),
			)
		}
	}
	if intro.Introduced.ID != "" {
		_, err := s.contacts.EnsureContact(ctx,
			intro.Introduced.ID, intro.IntroducedTo.Email,
			intro.IntroducedTo.FirstName, intro.IntroducedTo.LastName)
		if err != nil {
			zap.L().Warn("referral: reciprocal contact failed",
				zap.String("introduction_id", intro.ID),
				zap.String("owner_id", intro.Introduced.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) notifyConnected(ctx context.Context, intro *model.Introduction) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendConnected(ctx, intro); err != nil {
		zap.L().Warn("referral: connected email failed",
			zap.String("introduction_id", intro.ID),
			zap.Error(err),
		)
	}
}

func isParty(intro *model.Introduction, userID string) bool {
	if userID == "" {
		return false
	}
	return intro.From.ID == userID || intro.Introduced.ID == userID || intro.IntroducedTo.ID == userID
}
