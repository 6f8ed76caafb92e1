// processor.go
// Exclusion-gated transfer program
// -----------------------------------------------------------------------------
// Three instructions share one entrypoint:
//
//	0 Initialize     create the caller's state record at PDA("state", admin)
//	1 SetRoot        replace the exclusion root stored in that record
//	2 GatedTransfer  move lamports only after the verifier program accepts a
//	                 proof that the sender is absent from the exclusion list
//
// The program never loops, locks or retries. Every check runs before the
// first mutation; anything that fails after a cross-program call is rolled
// back by the host together with the rest of the transaction.
// -----------------------------------------------------------------------------
package gate

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"zkguard-exclusion/internal/ledger"
)

var (
	// ProgramID is the address the gate is deployed at.
	ProgramID = solana.MustPublicKeyFromBase58("4WvvKAwJ2hYRqaceZyyS3s51V68LbfGsXWut7gsGnqaZ")

	// VerifierProgramID is the only verifier a transfer will call.
	VerifierProgramID = solana.MustPublicKeyFromBase58("548u4SFWZMaRWZQqdyAgm66z7VRYtNHHF2sr7JTBXbwN")
)

type Program struct {
	hash identityHasher
}

var _ ledger.Program = (*Program)(nil)

func NewProgram() *Program {
	return &Program{hash: WitnessIdentityHash}
}

// Process decodes data and runs the selected instruction.
func (p *Program) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	switch ix := ix.(type) {
	case Initialize:
		return p.initialize(ic, accounts)
	case SetRoot:
		return p.setRoot(ic, accounts, ix)
	case GatedTransfer:
		return p.gatedTransfer(ic, accounts, ix)
	default:
		return fmt.Errorf("%w: %T", ledger.ErrInvalidInstructionData, ix)
	}
}

// ----------------------------------------------------------------------------
// Initialize
// ----------------------------------------------------------------------------

func (p *Program) initialize(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	it := ledger.NewAccountIter(accounts)
	admin, err := it.Next()
	if err != nil {
		return err
	}
	state, err := it.Next()
	if err != nil {
		return err
	}
	sys, err := it.Next()
	if err != nil {
		return err
	}
	if !admin.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}

	addr, err := p.stateAddress(ic, admin.Key, state.Key)
	if err != nil {
		return err
	}

	// An existing record makes the address collide inside CreateAccount,
	// which is what keeps Initialize from running twice.
	create := system.NewCreateAccountInstruction(
		ic.Rent().MinimumBalance(StateSize), StateSize, ic.ProgramID(), admin.Key, state.Key,
	).Build()
	if err := ic.InvokeSigned(create, []*ledger.AccountInfo{admin, state, sys}, [][][]byte{addr.SignerSeeds()}); err != nil {
		return err
	}

	StateRecord{Admin: admin.Key}.put(state.Data)
	ic.Logger().Info().Str("admin", admin.Key.String()).Msg("state initialized")
	return nil
}

// ----------------------------------------------------------------------------
// SetRoot
// ----------------------------------------------------------------------------

func (p *Program) setRoot(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix SetRoot) error {
	it := ledger.NewAccountIter(accounts)
	admin, err := it.Next()
	if err != nil {
		return err
	}
	state, err := it.Next()
	if err != nil {
		return err
	}
	if !admin.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}

	// The derivation is the authorization: only the admin whose key yields
	// this address can name it.
	if _, err := p.stateAddress(ic, admin.Key, state.Key); err != nil {
		return err
	}
	if _, err := p.loadRecord(ic, state); err != nil {
		return err
	}

	copy(state.Data[rootOffset:StateSize], ix.Root[:])
	ic.Logger().Info().Msg("SMT root updated")
	return nil
}

// ----------------------------------------------------------------------------
// GatedTransfer
// ----------------------------------------------------------------------------

func (p *Program) gatedTransfer(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix GatedTransfer) error {
	it := ledger.NewAccountIter(accounts)
	sender, err := it.Next()
	if err != nil {
		return err
	}
	recipient, err := it.Next()
	if err != nil {
		return err
	}
	state, err := it.Next()
	if err != nil {
		return err
	}
	verifier, err := it.Next()
	if err != nil {
		return err
	}
	sys, err := it.Next()
	if err != nil {
		return err
	}
	if !sender.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if verifier.Key != VerifierProgramID {
		ic.Logger().Info().Str("verifier", verifier.Key.String()).Msg("unexpected verifier program")
		return ErrInvalidZkVerifier
	}

	record, err := p.loadRecord(ic, state)
	if err != nil {
		return err
	}
	if err := checkBindings(record.Root, ix.Witness, sender.Key, p.hash); err != nil {
		switch err {
		case ErrSmtRootMismatch:
			ic.Logger().Info().Msg("SMT root in proof does not match stored root")
		case ErrPubkeyHashMismatch:
			ic.Logger().Info().Msg("pubkey hash mismatch - proof is for a different pubkey")
		}
		return err
	}

	ic.Logger().Info().Msg("verifying exclusion proof")
	verify := solana.NewInstruction(verifier.Key, solana.AccountMetaSlice{}, ix.VerifierPayload())
	if err := ic.Invoke(verify, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrZkVerificationFailed, err)
	}
	ic.Logger().Info().Msg("exclusion proof verified - sender is not excluded")

	ic.Logger().Info().Uint64("lamports", ix.Amount).Str("recipient", recipient.Key.String()).Msg("transferring")
	pay := system.NewTransferInstruction(ix.Amount, sender.Key, recipient.Key).Build()
	if err := ic.Invoke(pay, []*ledger.AccountInfo{sender, recipient, sys}); err != nil {
		return err
	}
	ic.Logger().Info().Msg("transfer complete")
	return nil
}

// ----------------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------------

// stateAddress re-derives admin's record address and requires it to be got.
func (p *Program) stateAddress(ic *ledger.InvokeContext, admin, got solana.PublicKey) (StateAddress, error) {
	addr, err := DeriveStateAddress(admin, ic.ProgramID())
	if err != nil {
		return StateAddress{}, fmt.Errorf("%w: %v", ErrInvalidStatePda, err)
	}
	if addr.Address != got {
		ic.Logger().Info().Str("expected", addr.Address.String()).Str("got", got.String()).Msg("invalid state account PDA")
		return StateAddress{}, ErrInvalidStatePda
	}
	return addr, nil
}

// loadRecord decodes a record this program owns. A foreign-owned account is
// refused even if its bytes carry the discriminator.
func (p *Program) loadRecord(ic *ledger.InvokeContext, state *ledger.AccountInfo) (StateRecord, error) {
	var rec StateRecord
	if state.Owner != ic.ProgramID() {
		return rec, ErrInvalidStateAccount
	}
	if err := rec.UnmarshalBinary(state.Data); err != nil {
		return rec, err
	}
	return rec, nil
}
