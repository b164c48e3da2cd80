package debate

import "errors"

var (
	ErrRoomNotFound              = errors.New("room not found")
	ErrRoomFull                  = errors.New("room is full")
	ErrAlreadyInRoom             = errors.New("already in room")
	ErrAlreadyQueued             = errors.New("already queued")
	ErrNotInRoom                 = errors.New("not in room")
	ErrInvalidState              = errors.New("invalid state for action")
	ErrNotYourTurn               = errors.New("not your turn")
	ErrPhaseMessageLimitExceeded = errors.New("phase message limit reached")
	ErrEmptyMessage              = errors.New("message is empty")
	ErrCapacityExceeded          = errors.New("room capacity exceeded")
	ErrJudgeTimeout              = errors.New("judge timed out")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomFull, "room_full"},
	{ErrAlreadyInRoom, "already_in_room"},
	{ErrAlreadyQueued, "already_queued"},
	{ErrNotInRoom, "not_in_room"},
	{ErrInvalidState, "invalid_state"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrPhaseMessageLimitExceeded, "phase_message_limit_exceeded"},
	{ErrEmptyMessage, "empty_message"},
	{ErrCapacityExceeded, "capacity_exceeded"},
	{ErrJudgeTimeout, "judge_timeout"},
}

// Code maps an error to its stable wire code. Unknown errors map to
// "internal".
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
