package battle

import "errors"

var (
	// ErrIllegalTurn marks a move or announce that violates turn
	// ownership. The offending message is dropped without a reply.
	ErrIllegalTurn = errors.New("illegal turn")

	// ErrNoBoostAvailable rejects a boost declaration against a zero
	// counter. Detected locally; nothing is sent.
	ErrNoBoostAvailable = errors.New("no boost available")

	// ErrProtocolDesync terminates the battle after a second calculation
	// disagreement.
	ErrProtocolDesync = errors.New("protocol desync")

	// ErrIllegalState rejects an operation in a state that does not
	// permit it.
	ErrIllegalState = errors.New("illegal state")
)
