package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/introhq/introhq/internal/model"
)

const introductionColumns = `id,
	introduced_from_id, introduced_from_email, introduced_from_first_name, introduced_from_last_name,
	introduced_id, introduced_email, introduced_first_name, introduced_last_name,
	introduced_status, introduced_is_attempt, introduced_message,
	introduced_to_id, introduced_to_email, introduced_to_first_name, introduced_to_last_name,
	introduced_to_status, introduced_to_is_attempt, introduced_to_message,
	over_all_status, request_status, message, reminder_message, revoke,
	created_at, updated_at`

// CreateIntroduction implements IntroductionStore.
func (s *PostgresStore) CreateIntroduction(ctx context.Context, intro *model.Introduction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO introductions (`+introductionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, now(), now())`,
		intro.ID,
		nilIfEmpty(intro.From.ID), nilIfEmpty(intro.From.Email), nilIfEmpty(intro.From.FirstName), nilIfEmpty(intro.From.LastName),
		nilIfEmpty(intro.Introduced.ID), nilIfEmpty(intro.Introduced.Email), nilIfEmpty(intro.Introduced.FirstName), nilIfEmpty(intro.Introduced.LastName),
		string(intro.IntroducedStatus), intro.IntroducedIsAttempt, intro.IntroducedMessage,
		nilIfEmpty(intro.IntroducedTo.ID), nilIfEmpty(intro.IntroducedTo.Email), nilIfEmpty(intro.IntroducedTo.FirstName), nilIfEmpty(intro.IntroducedTo.LastName),
		string(intro.IntroducedToStatus), intro.IntroducedToIsAttempt, intro.IntroducedToMessage,
		string(intro.OverallStatus), nilIfEmpty(string(intro.RequestStatus)), intro.Message, nilIfEmpty(intro.ReminderMessage), intro.Revoked,
	)
	if err != nil {
		return eris.Wrap(err, "store: create introduction")
	}
	return nil
}

// GetIntroduction implements IntroductionStore.
func (s *PostgresStore) GetIntroduction(ctx context.Context, id string) (*model.Introduction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+introductionColumns+` FROM introductions WHERE id = $1`, id)

	intro, err := scanIntroduction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get introduction")
	}
	return intro, nil
}

// scanIntroduction maps one introductions row, normalizing SQL NULLs to
// empty strings.
func scanIntroduction(row pgx.Row) (*model.Introduction, error) {
	var intro model.Introduction
	var (
		fromID, fromEmail, fromFirst, fromLast             *string
		introdID, introdEmail, introdFirst, introdLast     *string
		toID, toEmail, toFirst, toLast                     *string
		introducedStatus, introducedToStatus, overall      string
		requestStatus, reminder                            *string
	)

	err := row.Scan(
		&intro.ID,
		&fromID, &fromEmail, &fromFirst, &fromLast,
		&introdID, &introdEmail, &introdFirst, &introdLast,
		&introducedStatus, &intro.IntroducedIsAttempt, &intro.IntroducedMessage,
		&toID, &toEmail, &toFirst, &toLast,
		&introducedToStatus, &intro.IntroducedToIsAttempt, &intro.IntroducedToMessage,
		&overall, &requestStatus, &intro.Message, &reminder, &intro.Revoked,
		&intro.CreatedAt, &intro.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	intro.From = model.Party{ID: deref(fromID), Email: deref(fromEmail), FirstName: deref(fromFirst), LastName: deref(fromLast)}
	intro.Introduced = model.Party{ID: deref(introdID), Email: deref(introdEmail), FirstName: deref(introdFirst), LastName: deref(introdLast)}
	intro.IntroducedTo = model.Party{ID: deref(toID), Email: deref(toEmail), FirstName: deref(toFirst), LastName: deref(toLast)}
	intro.IntroducedStatus = model.PartyStatus(introducedStatus)
	intro.IntroducedToStatus = model.PartyStatus(introducedToStatus)
	intro.OverallStatus = model.OverallStatus(overall)
	intro.RequestStatus = model.RequestStatus(deref(requestStatus))
	intro.ReminderMessage = deref(reminder)
	return &intro, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SaveIntroductionStatus implements IntroductionStore. Persists both
// party sub-states and the derived overall status in one statement.
func (s *PostgresStore) SaveIntroductionStatus(ctx context.Context, intro *model.Introduction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE introductions SET
			introduced_status = $1, introduced_is_attempt = $2, introduced_message = $3,
			introduced_to_status = $4, introduced_to_is_attempt = $5, introduced_to_message = $6,
			over_all_status = $7, updated_at = now()
		WHERE id = $8`,
		string(intro.IntroducedStatus), intro.IntroducedIsAttempt, intro.IntroducedMessage,
		string(intro.IntroducedToStatus), intro.IntroducedToIsAttempt, intro.IntroducedToMessage,
		string(intro.OverallStatus), intro.ID,
	)
	if err != nil {
		return eris.Wrap(err, "store: save introduction status")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetRequestStatus implements IntroductionStore.
func (s *PostgresStore) SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE introductions SET request_status = $1, updated_at = now() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrap(err, "store: set request status")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetReminder implements IntroductionStore.
func (s *PostgresStore) SetReminder(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE introductions SET reminder_message = $1, updated_at = now() WHERE id = $2`,
		message, id,
	)
	if err != nil {
		return eris.Wrap(err, "store: set reminder")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetRevoked implements IntroductionStore.
func (s *PostgresStore) SetRevoked(ctx context.Context, id string, revoked bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE introductions SET revoke = $1, updated_at = now() WHERE id = $2`,
		revoked, id,
	)
	if err != nil {
		return eris.Wrap(err, "store: set revoked")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
