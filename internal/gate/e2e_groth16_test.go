package gate

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"zkguard-exclusion/internal/ledger"
	"zkguard-exclusion/internal/verifier"
)

// Runs the gate against the Groth16 verifier with proofs from the fixture
// circuit, so the witness byte order is checked against gnark itself.
func TestGatedTransferWithGroth16Proof(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	fx, err := verifier.SetupFixture()
	require.NoError(t, err)

	bank := ledger.NewBank()
	bank.RegisterProgram(ProgramID, NewProgram())
	bank.RegisterProgram(VerifierProgramID, fx.Program())
	ctx := context.Background()

	admin, sender, blocked := newKey(t), newKey(t), newKey(t)
	for _, k := range []solana.PublicKey{admin, sender, blocked} {
		bank.Airdrop(k, 10_000_000)
	}
	blockedHash, err := WitnessIdentityHash(blocked)
	require.NoError(t, err)
	list, err := verifier.NewExclusionList(rootOf(1), blockedHash)
	require.NoError(t, err)

	initIx, err := NewInitializeInstruction(ProgramID, admin)
	require.NoError(t, err)
	rootIx, err := NewSetRootInstruction(ProgramID, admin, list.Root())
	require.NoError(t, err)
	_, err = bank.Process(ctx, ledger.NewTransaction([]solana.PublicKey{admin}, initIx, rootIx))
	require.NoError(t, err)

	senderHash, err := WitnessIdentityHash(sender)
	require.NoError(t, err)
	proof, pub, err := fx.Prove(list, senderHash)
	require.NoError(t, err)
	require.Len(t, proof, ProofSize)
	require.Len(t, pub, WitnessSize)

	gt := GatedTransfer{Amount: 2_500_000}
	copy(gt.Proof[:], proof)
	copy(gt.Witness[:], pub)
	require.NoError(t, CheckBindings(list.Root(), gt.Witness, sender))

	// The client-side builder agrees with gnark's encoding.
	built, err := BuildWitness(list.Root(), senderHash)
	require.NoError(t, err)
	require.Equal(t, gt.Witness, built)

	recipient := newKey(t)
	transfer := func(signer solana.PublicKey, gt GatedTransfer) error {
		ix, err := NewGatedTransferInstruction(ProgramID, signer, recipient, admin, gt)
		require.NoError(t, err)
		_, err = bank.Process(ctx, ledger.NewTransaction([]solana.PublicKey{signer}, ix))
		return err
	}

	t.Run("excluded sender cannot prove", func(t *testing.T) {
		_, _, err := fx.Prove(list, blockedHash)
		require.Error(t, err)
	})

	t.Run("tampered proof", func(t *testing.T) {
		bad := gt
		bad.Proof[0] ^= 0x01
		err := transfer(sender, bad)
		require.ErrorIs(t, err, ErrZkVerificationFailed)
		require.Equal(t, uint64(0), bank.Balance(recipient))
	})

	t.Run("valid proof", func(t *testing.T) {
		require.NoError(t, transfer(sender, gt))
		require.Equal(t, uint64(2_500_000), bank.Balance(recipient))
		require.Equal(t, uint64(7_500_000), bank.Balance(sender))
	})

	t.Run("replayed by another signer", func(t *testing.T) {
		require.ErrorIs(t, transfer(blocked, gt), ErrPubkeyHashMismatch)
	})

	t.Run("stale after root rotation", func(t *testing.T) {
		rotated, err := verifier.NewExclusionList(rootOf(1), rootOf(2), blockedHash)
		require.NoError(t, err)
		ix, err := NewSetRootInstruction(ProgramID, admin, rotated.Root())
		require.NoError(t, err)
		_, err = bank.Process(ctx, ledger.NewTransaction([]solana.PublicKey{admin}, ix))
		require.NoError(t, err)

		require.ErrorIs(t, transfer(sender, gt), ErrSmtRootMismatch)
		require.Equal(t, uint64(2_500_000), bank.Balance(recipient))
	})
}
