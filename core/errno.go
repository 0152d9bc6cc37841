package core

import "fmt"

// Errno is the closed error enumeration returned across TxPool and
// BlockChain/CoreProtocol call boundaries. Schedule never surfaces an
// Errno; its operations report success via bool/empty-slice results
// instead.
type Errno int

const (
	ErrOK Errno = iota
	ErrMissingPrev
	ErrBlockTypeInvalid
	ErrTransactionInvalid
	ErrTransactionConflictingInput
	ErrAlreadyHave
	ErrSysDatabaseError
	ErrSysStorageError
	ErrNotFound
)

func (e Errno) String() string {
	switch e {
	case ErrOK:
		return "OK"
	case ErrMissingPrev:
		return "MISSING_PREV"
	case ErrBlockTypeInvalid:
		return "BLOCK_TYPE_INVALID"
	case ErrTransactionInvalid:
		return "TRANSACTION_INVALID"
	case ErrTransactionConflictingInput:
		return "TRANSACTION_CONFLICTING_INPUT"
	case ErrAlreadyHave:
		return "ALREADY_HAVE"
	case ErrSysDatabaseError:
		return "SYS_DATABASE_ERROR"
	case ErrSysStorageError:
		return "SYS_STORAGE_ERROR"
	case ErrNotFound:
		return "NOT_FOUND"
	default:
		return fmt.Sprintf("Errno(%d)", int(e))
	}
}

// Error satisfies the error interface so an Errno can be returned directly
// from functions that otherwise return error, matching utils.Wrap's %w
// convention at collaborator boundaries.
func (e Errno) Error() string { return e.String() }

// IsOK reports whether e signals success.
func (e Errno) IsOK() bool { return e == ErrOK }
