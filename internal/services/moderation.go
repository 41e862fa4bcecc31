package services

import (
	"naftapp/internal/models"
)

type transition struct {
	from   models.ModerationState
	action models.ModerationAction
}

// moderationTransitions is the complete station lifecycle. Anything not listed is rejected.
var moderationTransitions = map[transition]models.ModerationState{
	{models.StatePending, models.ActionApprove}:   models.StateApproved,
	{models.StatePending, models.ActionReject}:    models.StateRejected,
	{models.StateRejected, models.ActionResubmit}: models.StatePending,
}

// NextState returns the state reached by applying action in state from.
func NextState(from models.ModerationState, action models.ModerationAction) (models.ModerationState, error) {
	to, ok := moderationTransitions[transition{from, action}]
	if !ok {
		return "", ErrInvalidState("cannot %s a station that is %s", action, from)
	}
	return to, nil
}
