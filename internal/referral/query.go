package referral

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/introhq/introhq/internal/db"
	"github.com/introhq/introhq/internal/model"
)

// ListParams selects and pages introductions for one caller.
type ListParams struct {
	// Email scopes visibility: the caller sees rows where any of the
	// three party emails matches.
	Email string

	// UserID and Status together select the role-aware status filter.
	UserID string
	Status string

	// Search is a free-text filter, used only when no status filter is
	// active.
	Search string

	Page  int
	Limit int
}

// Queries answers listing and counting over introductions. It runs its
// own SQL rather than going through the store's single-row methods
// because the filter shapes are built dynamically.
type Queries struct {
	pool db.Pool
}

// NewQueries creates a Queries on the given pool.
func NewQueries(pool db.Pool) *Queries {
	return &Queries{pool: pool}
}

const listColumns = `id,
	introduced_from_id, introduced_from_email, introduced_from_first_name, introduced_from_last_name,
	introduced_id, introduced_email, introduced_first_name, introduced_last_name,
	introduced_status, introduced_is_attempt, introduced_message,
	introduced_to_id, introduced_to_email, introduced_to_first_name, introduced_to_last_name,
	introduced_to_status, introduced_to_is_attempt, introduced_to_message,
	over_all_status, request_status, message, reminder_message, revoke,
	created_at, updated_at`

// List returns the caller's page of introductions plus the total count
// of the filtered set, newest first.
func (q *Queries) List(ctx context.Context, params ListParams) ([]model.Introduction, int, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	where, args := buildFilter(params)

	var total int
	countQuery := `SELECT COUNT(*) FROM introductions` + where
	if err := q.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "referral: count introductions")
	}

	query := fmt.Sprintf(
		`SELECT `+listColumns+` FROM introductions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "referral: list introductions")
	}
	defer rows.Close()

	var intros []model.Introduction
	for rows.Next() {
		intro, err := scanListRow(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "referral: scan introduction")
		}
		intros = append(intros, *intro)
	}
	return intros, total, rows.Err()
}

// buildFilter assembles the WHERE clause. The status filter takes
// precedence over search, matching the original API behavior.
func buildFilter(params ListParams) (string, []any) {
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if email := strings.TrimSpace(params.Email); email != "" {
		p := arg(email)
		clauses = append(clauses, fmt.Sprintf(
			`(introduced_from_email = %s OR introduced_email = %s OR introduced_to_email = %s)`, p, p, p))
	}

	status := strings.ToLower(strings.TrimSpace(params.Status))
	switch {
	case status != "" && params.UserID != "":
		clauses = append(clauses, statusClause(status, arg(params.UserID)))
	case strings.TrimSpace(params.Search) != "":
		clauses = append(clauses, searchClause(params.Search, arg))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// statusClause encodes the role-aware status semantics: the same filter
// value selects different columns depending on which seat the caller
// occupies in each row.
func statusClause(status, user string) string {
	switch status {
	case string(model.OverallPending):
		return fmt.Sprintf(
			`(over_all_status = 'pending' AND introduced_from_id = %s)`, user)
	case string(model.OverallConnected):
		return fmt.Sprintf(
			`((over_all_status = 'connected' AND introduced_from_id = %s)
				OR (introduced_message = 'connected' AND introduced_id = %s)
				OR (introduced_to_message = 'connected' AND introduced_to_id = %s))`,
			user, user, user)
	case MsgNewIntroduction:
		return fmt.Sprintf(
			`((introduced_message = 'new introduction' AND introduced_id = %s)
				OR (introduced_to_message = 'new introduction' AND introduced_to_id = %s))`,
			user, user)
	case MsgAwaitingResponse, MsgNoMatch:
		return fmt.Sprintf(
			`((introduced_to_message = 'awaiting response' AND introduced_to_id = %s)
				OR (introduced_message = 'awaiting response' AND introduced_id = %s))`,
			user, user)
	default:
		return fmt.Sprintf(
			`((over_all_status = 'pending' AND introduced_from_id = %s)
				OR (introduced_status = 'pending' AND introduced_id = %s)
				OR (introduced_to_status = 'pending' AND introduced_to_id = %s))`,
			user, user, user)
	}
}

// searchColumns are matched per search word, OR across all of them.
var searchColumns = []string{
	"introduced_first_name", "introduced_last_name",
	"introduced_to_first_name", "introduced_to_last_name",
	"introduced_from_first_name", "introduced_from_last_name",
	"over_all_status", "introduced_to_status", "introduced_status",
}

// searchClause matches each lower-cased word as a substring against the
// party names and status columns.
func searchClause(search string, arg func(any) string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(search)))

	var terms []string
	for _, word := range words {
		p := arg("%" + word + "%")
		for _, col := range searchColumns {
			terms = append(terms, fmt.Sprintf(`LOWER(%s) LIKE %s`, col, p))
		}
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// scanListRow maps one introductions row, normalizing SQL NULLs.
func scanListRow(row pgx.Row) (*model.Introduction, error) {
	var intro model.Introduction
	var (
		fromID, fromEmail, fromFirst, fromLast         *string
		introdID, introdEmail, introdFirst, introdLast *string
		toID, toEmail, toFirst, toLast                 *string
		introducedStatus, introducedToStatus, overall  string
		requestStatus, reminder                        *string
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

	intro.From = model.Party{ID: strDeref(fromID), Email: strDeref(fromEmail), FirstName: strDeref(fromFirst), LastName: strDeref(fromLast)}
	intro.Introduced = model.Party{ID: strDeref(introdID), Email: strDeref(introdEmail), FirstName: strDeref(introdFirst), LastName: strDeref(introdLast)}
	intro.IntroducedTo = model.Party{ID: strDeref(toID), Email: strDeref(toEmail), FirstName: strDeref(toFirst), LastName: strDeref(toLast)}
	intro.IntroducedStatus = model.PartyStatus(introducedStatus)
	intro.IntroducedToStatus = model.PartyStatus(introducedToStatus)
	intro.OverallStatus = model.OverallStatus(overall)
	intro.RequestStatus = model.RequestStatus(strDeref(requestStatus))
	intro.ReminderMessage = strDeref(reminder)
	return &intro, nil
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
