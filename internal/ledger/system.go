package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// systemProgram is the built-in program that creates accounts and moves
// lamports between system-owned accounts.
type systemProgram struct{}

func (systemProgram) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	metas := make([]*solana.AccountMeta, len(accounts))
	for i, a := range accounts {
		metas[i] = solana.NewAccountMeta(a.Key, a.IsWritable, a.IsSigner)
	}
	inst, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	switch impl := inst.Impl.(type) {
	case *system.CreateAccount:
		if impl.Lamports == nil || impl.Space == nil || impl.Owner == nil {
			return ErrInvalidInstructionData
		}
		return createAccount(ic, accounts, *impl.Lamports, *impl.Space, *impl.Owner)
	case *system.Transfer:
		if impl.Lamports == nil {
			return ErrInvalidInstructionData
		}
		return transfer(ic, accounts, *impl.Lamports)
	default:
		return fmt.Errorf("%w: unsupported system instruction %T", ErrInvalidInstructionData, impl)
	}
}

func createAccount(ic *InvokeContext, accounts []*AccountInfo, lamports, space uint64, owner solana.PublicKey) error {
	it := NewAccountIter(accounts)
	from, err := it.Next()
	if err != nil {
		return err
	}
	to, err := it.Next()
	if err != nil {
		return err
	}
	if !from.IsSigner {
		return fmt.Errorf("%w: funding account %s", ErrMissingRequiredSignature, from.Key)
	}
	if !to.IsSigner {
		return fmt.Errorf("%w: new account %s", ErrMissingRequiredSignature, to.Key)
	}
	if to.Lamports > 0 || len(to.Data) > 0 || to.Owner != solana.SystemProgramID {
		ic.Logger().Info().Str("address", to.Key.String()).Msg("create account: address already in use")
		return ErrAccountAlreadyInUse
	}
	if space > MaxPermittedDataLength {
		return ErrAccountDataTooLarge
	}
	if from.Lamports < lamports {
		ic.Logger().Info().Uint64("balance", from.Lamports).Uint64("need", lamports).Msg("create account: insufficient lamports")
		return ErrInsufficientFunds
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	to.Data = make([]byte, space)
	to.Owner = owner
	return nil
}

func transfer(ic *InvokeContext, accounts []*AccountInfo, lamports uint64) error {
	it := NewAccountIter(accounts)
	from, err := it.Next()
	if err != nil {
		return err
	}
	to, err := it.Next()
	if err != nil {
		return err
	}
	if !from.IsSigner {
		return fmt.Errorf("%w: transfer source %s", ErrMissingRequiredSignature, from.Key)
	}
	if len(from.Data) > 0 {
		return fmt.Errorf("%w: transfer source %s must not carry data", ErrInvalidAccountData, from.Key)
	}
	if from.Lamports < lamports {
		ic.Logger().Info().Uint64("balance", from.Lamports).Uint64("need", lamports).Msg("transfer: insufficient lamports")
		return ErrInsufficientFunds
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
