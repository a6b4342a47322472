// Package referral implements the three-party introduction state
// machine and the role-aware listing queries over it.
package referral

import "github.com/introhq/introhq/internal/model"

// Per-party messages shown to each side of an introduction.
const (
	MsgNewIntroduction  = "new introduction"
	MsgAwaitingResponse = "awaiting response"
	MsgNoMatch          = "no match"
	MsgYouDeclined      = "declined (You)"
	MsgConnected        = "connected"
	MsgUnexpected       = "Unexpected status"
)

// Outcome is the derived result for one (introduced, introducedTo)
// status pair.
type Outcome struct {
	Overall             model.OverallStatus
	IntroducedMessage   string
	IntroducedToMessage string
}

type statusPair struct {
	introduced   model.PartyStatus
	introducedTo model.PartyStatus
}

// combineTable enumerates all nine defined status pairs. Any pair
// outside it is an error outcome.
var combineTable = map[statusPair]Outcome{
	{model.PartyConnected, model.PartyConnected}: {model.OverallConnected, MsgConnected, MsgConnected},
	{model.PartyDecline, model.PartyDecline}:     {model.OverallDecline, MsgYouDeclined, MsgYouDeclined},

	{model.PartyConnected, model.PartyPending}: {model.OverallPartial, MsgAwaitingResponse, MsgNewIntroduction},
	{model.PartyPending, model.PartyConnected}: {model.OverallPartial, MsgNewIntroduction, MsgAwaitingResponse},
	{model.PartyConnected, model.PartyDecline}: {model.OverallPartial, MsgNoMatch, MsgYouDeclined},
	{model.PartyDecline, model.PartyConnected}: {model.OverallPartial, MsgYouDeclined, MsgNoMatch},
	{model.PartyDecline, model.PartyPending}:   {model.OverallPartial, MsgYouDeclined, MsgNewIntroduction},
	{model.PartyPending, model.PartyDecline}:   {model.OverallPartial, MsgNewIntroduction, MsgYouDeclined},

	{model.PartyPending, model.PartyPending}: {model.OverallPending, MsgNewIntroduction, MsgNewIntroduction},
}

// Combine derives the overall status and the per-party messages from a
// status pair.
func Combine(introduced, introducedTo model.PartyStatus) Outcome {
	if outcome, ok := combineTable[statusPair{introduced, introducedTo}]; ok {
		return outcome
	}
	return Outcome{model.OverallError, MsgUnexpected, MsgUnexpected}
}
