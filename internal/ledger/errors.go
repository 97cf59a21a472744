package ledger

import (
	"errors"

	"gitlab.com/flik/groupledger/internal/split"
)

var (
	// ErrInvalidAmount is returned for a non-positive expense amount or a negative budget.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidSplit is returned when shares cannot be computed.
	ErrInvalidSplit = split.ErrInvalidSplit
	// ErrUnknownMember is returned when a referenced member is not part of the group.
	ErrUnknownMember = errors.New("unknown member")
	// ErrGroupClosed is returned when mutating a settled group.
	ErrGroupClosed = errors.New("group is closed")
	// ErrAlreadySettled is returned when settling a group twice.
	ErrAlreadySettled = errors.New("group already settled")
	// ErrInvalidGroup is returned for a group without members, owner or name.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrInvariant is returned when stored balances disagree with the expense list.
	ErrInvariant = errors.New("ledger invariant violated")
)
