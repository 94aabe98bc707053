package staking

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeLock is emitted for every new lock record.
	EventTypeLock = "staking.lock"
	// EventTypeWithdraw is emitted once per withdraw batch.
	EventTypeWithdraw = "staking.withdraw"
	// EventTypeLockExtended is emitted once per extension batch.
	EventTypeLockExtended = "staking.lockExtended"
	// EventTypeLockPeriodUpdated is emitted when the global lock period changes.
	EventTypeLockPeriodUpdated = "staking.lockPeriodUpdated"
)

// LockEvent reports a new lock record.
func LockEvent(lock *Lock, index uint64) *types.Event {
	return &types.Event{
		Type: EventTypeLock,
		Attributes: map[string]string{
			"user":         lock.User.Hex(),
			"subject":      lock.Subject.Hex(),
			"subjectToken": lock.SubjectToken.Hex(),
			"index":        strconv.FormatUint(index, 10),
			"amount":       lock.Amount.String(),
			"unlockTime":   strconv.FormatUint(lock.UnlockTime, 10),
			"lockPeriod":   strconv.FormatUint(lock.LockPeriod, 10),
		},
	}
}

// WithdrawEvent reports an aggregate withdrawal.
func WithdrawEvent(user, subject, subjectToken common.Address, indexes []uint64, total *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"user":         user.Hex(),
			"subject":      subject.Hex(),
			"subjectToken": subjectToken.Hex(),
			"indexes":      joinIndexes(indexes),
			"amount":       total.String(),
		},
	}
}

// LockExtendedEvent reports refreshed unlock times.
func LockExtendedEvent(user common.Address, indexes []uint64, unlockTime uint64) *types.Event {
	return &types.Event{
		Type: EventTypeLockExtended,
		Attributes: map[string]string{
			"user":       user.Hex(),
			"indexes":    joinIndexes(indexes),
			"unlockTime": strconv.FormatUint(unlockTime, 10),
		},
	}
}

// LockPeriodUpdatedEvent reports the new global lock period.
func LockPeriodUpdatedEvent(period uint64) *types.Event {
	return &types.Event{
		Type:       EventTypeLockPeriodUpdated,
		Attributes: map[string]string{"lockPeriod": strconv.FormatUint(period, 10)},
	}
}

func joinIndexes(indexes []uint64) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.FormatUint(idx, 10)
	}
	return strings.Join(parts, ",")
}
