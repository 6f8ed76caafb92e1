package ledger

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/require"
)

// vaultProgram creates a program-derived "vault" account for the payer.
// When sign is false it omits the seeds, which the host must refuse.
func vaultProgram(sign bool) ProgramFunc {
	return func(ic *InvokeContext, accounts []*AccountInfo, _ []byte) error {
		it := NewAccountIter(accounts)
		payer, err := it.Next()
		if err != nil {
			return err
		}
		vault, err := it.Next()
		if err != nil {
			return err
		}
		sys, err := it.Next()
		if err != nil {
			return err
		}
		seeds := [][]byte{[]byte("vault"), payer.Key[:]}
		_, bump, err := solana.FindProgramAddress(seeds, ic.ProgramID())
		if err != nil {
			return err
		}
		ix := system.NewCreateAccountInstruction(ic.Rent().MinimumBalance(8), 8, ic.ProgramID(), payer.Key, vault.Key).Build()
		infos := []*AccountInfo{payer, vault, sys}
		if !sign {
			return ic.Invoke(ix, infos)
		}
		if err := ic.InvokeSigned(ix, infos, [][][]byte{append(seeds, []byte{bump})}); err != nil {
			return err
		}
		copy(vault.Data, "vault!!!")
		return nil
	}
}

func vaultTx(t *testing.T, bank *Bank, programID solana.PublicKey) (*Transaction, solana.PublicKey, solana.PublicKey) {
	t.Helper()
	payer := newKey(t)
	bank.Airdrop(payer, 10_000_000)
	vault, _, err := solana.FindProgramAddress([][]byte{[]byte("vault"), payer[:]}, programID)
	require.NoError(t, err)
	ix := solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, nil)
	return NewTransaction([]solana.PublicKey{payer}, ix), payer, vault
}

func TestInvokeSignedCreatesProgramAddress(t *testing.T) {
	bank := NewBank()
	programID := newKey(t)
	bank.RegisterProgram(programID, vaultProgram(true))

	tx, payer, vault := vaultTx(t, bank, programID)
	_, err := bank.Process(context.Background(), tx)
	require.NoError(t, err)

	acct, ok := bank.Account(vault)
	require.True(t, ok)
	require.Equal(t, programID, acct.Owner)
	require.Equal(t, []byte("vault!!!"), acct.Data)
	require.Equal(t, uint64(10_000_000)-bank.Rent().MinimumBalance(8), bank.Balance(payer))
}

func TestInvokeWithoutSeedsIsPrivilegeEscalation(t *testing.T) {
	bank := NewBank()
	programID := newKey(t)
	bank.RegisterProgram(programID, vaultProgram(false))

	tx, payer, vault := vaultTx(t, bank, programID)
	_, err := bank.Process(context.Background(), tx)
	require.ErrorIs(t, err, ErrPrivilegeEscalation)
	require.Equal(t, uint64(10_000_000), bank.Balance(payer))
	_, ok := bank.Account(vault)
	require.False(t, ok)
}

func TestWritingForeignAccountIsRejected(t *testing.T) {
	bank := NewBank()
	programID, victim := newKey(t), newKey(t)
	bank.StoreAccount(victim, &Account{Lamports: 5, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID})
	bank.RegisterProgram(programID, ProgramFunc(func(_ *InvokeContext, accounts []*AccountInfo, _ []byte) error {
		accounts[0].Data[0] = 9
		return nil
	}))

	ix := solana.NewInstruction(programID, solana.AccountMetaSlice{solana.NewAccountMeta(victim, true, false)}, nil)
	_, err := bank.Process(context.Background(), NewTransaction(nil, ix))
	require.ErrorIs(t, err, ErrReadonlyDataModified)

	acct, _ := bank.Account(victim)
	require.Equal(t, []byte{1, 2, 3}, acct.Data)
}

func TestUnknownProgram(t *testing.T) {
	bank := NewBank()
	ix := solana.NewInstruction(newKey(t), solana.AccountMetaSlice{}, nil)
	_, err := bank.Process(context.Background(), NewTransaction(nil, ix))
	require.ErrorIs(t, err, ErrUnknownProgram)
}

func TestInvokeDepthLimit(t *testing.T) {
	bank := NewBank()
	programID := newKey(t)
	bank.RegisterProgram(programID, ProgramFunc(func(ic *InvokeContext, _ []*AccountInfo, _ []byte) error {
		return ic.Invoke(solana.NewInstruction(ic.ProgramID(), solana.AccountMetaSlice{}, nil), nil)
	}))
	ix := solana.NewInstruction(programID, solana.AccountMetaSlice{}, nil)
	_, err := bank.Process(context.Background(), NewTransaction(nil, ix))
	require.ErrorIs(t, err, ErrCallDepth)
}
