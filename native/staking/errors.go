package staking

import (
	"errors"
	"fmt"
)

var (
	errNilState    = errors.New("staking engine: state not configured")
	errMissingDeps = errors.New("staking engine: dependencies not configured")

	ErrInvalidAmount        = errors.New("staking engine: AmountShouldBeGreaterThanZero")
	ErrInvalidSubjectToken  = errors.New("staking engine: InvalidSubjectToken")
	ErrInvalidLockPeriod    = errors.New("staking engine: InvalidLockPeriod")
	ErrInvalidRequest       = errors.New("staking engine: InvalidRequest")
	ErrEmptyIndexes         = errors.New("staking engine: EmptyIndexes")
	ErrInvalidIndex         = errors.New("staking engine: InvalidIndex")
	ErrNotSameUser          = errors.New("staking engine: NotSameUser")
	ErrLockAlreadyWithdrawn = errors.New("staking engine: LockAlreadyWithdrawn")
	ErrSubjectsDoesntMatch  = errors.New("staking engine: SubjectsDoesntMatch")
	ErrLockNotExpired       = errors.New("staking engine: LockNotExpired")
)

// IndexError attaches the offending lock index to a per-index failure.
type IndexError struct {
	Index uint64
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%v(%d)", e.Err, e.Index)
}

func (e *IndexError) Unwrap() error { return e.Err }

func indexErr(err error, index uint64) error {
	return &IndexError{Index: index, Err: err}
}

// LockNotExpiredError reports a lock whose unlock time is still ahead.
type LockNotExpiredError struct {
	Index      uint64
	Now        uint64
	UnlockTime uint64
}

func (e *LockNotExpiredError) Error() string {
	return fmt.Sprintf("%v(%d, %d, %d)", ErrLockNotExpired, e.Index, e.Now, e.UnlockTime)
}

// Is lets errors.Is(err, ErrLockNotExpired) match.
func (e *LockNotExpiredError) Is(target error) bool { return target == ErrLockNotExpired }
