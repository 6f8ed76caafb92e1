package gate

import (
	"fmt"

	"zkguard-exclusion/internal/ledger"
)

// ErrorCode is a program error. The numeric values are part of the wire
// contract: clients see them as custom program error codes.
type ErrorCode uint32

const (
	ErrInvalidDataLength    ErrorCode = 0
	ErrInvalidStateAccount  ErrorCode = 1
	ErrSmtRootMismatch      ErrorCode = 2
	ErrPubkeyHashMismatch   ErrorCode = 3
	ErrPoseidonHashFailed   ErrorCode = 4
	ErrUnauthorizedAdmin    ErrorCode = 5 // reserved; admin checks surface as ErrInvalidStatePda
	ErrInvalidStatePda      ErrorCode = 6
	ErrInvalidZkVerifier    ErrorCode = 7
	ErrZkVerificationFailed ErrorCode = 8
)

var errorText = map[ErrorCode]string{
	ErrInvalidDataLength:    "invalid instruction data length",
	ErrInvalidStateAccount:  "invalid state account discriminator",
	ErrSmtRootMismatch:      "SMT root in proof does not match stored root",
	ErrPubkeyHashMismatch:   "pubkey hash in proof does not match signer",
	ErrPoseidonHashFailed:   "poseidon hash computation failed",
	ErrUnauthorizedAdmin:    "only admin can perform this action",
	ErrInvalidStatePda:      "invalid state account PDA",
	ErrInvalidZkVerifier:    "invalid ZK verifier program",
	ErrZkVerificationFailed: "ZK proof verification failed",
}

func (e ErrorCode) Error() string {
	if s, ok := errorText[e]; ok {
		return s
	}
	return fmt.Sprintf("unknown error code %d", uint32(e))
}

func (e ErrorCode) Code() uint32 { return uint32(e) }

var _ ledger.CustomError = ErrInvalidDataLength

// UnknownInstructionError is returned for an opcode outside the instruction
// set. It matches ledger.ErrInvalidInstructionData.
type UnknownInstructionError struct {
	Opcode byte
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unrecognized instruction opcode %d", e.Opcode)
}

func (e *UnknownInstructionError) Unwrap() error { return ledger.ErrInvalidInstructionData }
