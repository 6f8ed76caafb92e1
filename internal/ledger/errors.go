package ledger

import (
	"errors"
	"fmt"
)

// Host errors. Programs return them unchanged so callers can match on them
// with errors.Is regardless of how deep in the invocation chain they arose.
var (
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrNotEnoughAccountKeys     = errors.New("insufficient account keys for instruction")
	ErrMissingRequiredSignature = errors.New("missing required signature for instruction")
	ErrAccountAlreadyInUse      = errors.New("an account with the same address already exists")
	ErrInsufficientFunds        = errors.New("insufficient funds for instruction")
	ErrInvalidAccountData       = errors.New("invalid account data for instruction")
	ErrUnknownProgram           = errors.New("attempt to load a program that does not exist")
	ErrPrivilegeEscalation      = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrReadonlyDataModified     = errors.New("instruction modified data of an account it does not own")
	ErrUnbalancedInstruction    = errors.New("sum of account balances before and after instruction do not match")
	ErrCallDepth                = errors.New("cross-program invocation call depth too deep")
	ErrInvalidSeeds             = errors.New("provided seeds do not result in a valid address")
	ErrAccountDataTooLarge      = errors.New("requested account data length exceeds the maximum")
)

// CustomError is implemented by program-defined error codes. The host
// renders them the way the runtime reports Custom(n) failures.
type CustomError interface {
	error
	Code() uint32
}

// InstructionError reports which top-level instruction of a transaction
// failed. It unwraps to the program's error.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	var custom CustomError
	if errors.As(e.Err, &custom) {
		return fmt.Sprintf("instruction %d: custom program error: 0x%x (%v)", e.Index, custom.Code(), e.Err)
	}
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }
