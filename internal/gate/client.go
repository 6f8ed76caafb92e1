package gate

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/witness"
	"github.com/gagliardetto/solana-go"
)

// Client-side builders. Each returns an instruction with the account list in
// the order the program reads it.

func NewInitializeInstruction(programID, admin solana.PublicKey) (solana.Instruction, error) {
	addr, err := DeriveStateAddress(admin, programID)
	if err != nil {
		return nil, err
	}
	data, _ := Initialize{}.MarshalBinary()
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(addr.Address, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

func NewSetRootInstruction(programID, admin solana.PublicKey, root [RootSize]byte) (solana.Instruction, error) {
	addr, err := DeriveStateAddress(admin, programID)
	if err != nil {
		return nil, err
	}
	data, _ := SetRoot{Root: root}.MarshalBinary()
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(admin, false, true),
		solana.NewAccountMeta(addr.Address, true, false),
	}, data), nil
}

// NewGatedTransferInstruction gates the transfer on the record of admin.
func NewGatedTransferInstruction(programID, sender, recipient, admin solana.PublicKey, t GatedTransfer) (solana.Instruction, error) {
	addr, err := DeriveStateAddress(admin, programID)
	if err != nil {
		return nil, err
	}
	data, _ := t.MarshalBinary()
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(sender, true, true),
		solana.NewAccountMeta(recipient, true, false),
		solana.NewAccountMeta(addr.Address, false, false),
		solana.NewAccountMeta(VerifierProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// BuildWitness serializes the public inputs (root, identity-hash) the way
// gnark does. Both values are big-endian and must be canonical field elements.
func BuildWitness(root, identityHash [32]byte) (PublicWitness, error) {
	var out PublicWitness
	r, err := fr.BigEndian.Element(&root)
	if err != nil {
		return out, fmt.Errorf("root: %w", err)
	}
	h, err := fr.BigEndian.Element(&identityHash)
	if err != nil {
		return out, fmt.Errorf("identity hash: %w", err)
	}

	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return out, err
	}
	values := make(chan any, 2)
	values <- r
	values <- h
	close(values)
	if err := w.Fill(2, 0, values); err != nil {
		return out, err
	}

	b, err := w.MarshalBinary()
	if err != nil {
		return out, err
	}
	if len(b) != WitnessSize {
		return out, fmt.Errorf("witness encodes to %d bytes, want %d", len(b), WitnessSize)
	}
	copy(out[:], b)
	return out, nil
}
