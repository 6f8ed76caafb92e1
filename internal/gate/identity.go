package gate

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/gagliardetto/solana-go"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// identityHasher maps a signer to the identity-hash in witness byte order.
type identityHasher func(solana.PublicKey) ([32]byte, error)

// leElement reads b as a little-endian field element.
func leElement(b []byte) (*big.Int, error) {
	var buf [fr.Bytes]byte
	copy(buf[:], b)
	e, err := fr.LittleEndian.Element(&buf)
	if err != nil {
		return nil, err
	}
	return e.BigInt(new(big.Int)), nil
}

// IdentityHash is the Poseidon (BN254, circom parameters) digest of the two
// 16-byte halves of pk, each read little-endian. The result is little-endian,
// the byte order the on-chain hash syscall produces.
func IdentityHash(pk solana.PublicKey) ([32]byte, error) {
	var out [32]byte
	lo, err := leElement(pk[:16])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrPoseidonHashFailed, err)
	}
	hi, err := leElement(pk[16:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrPoseidonHashFailed, err)
	}
	h, err := poseidon.Hash([]*big.Int{lo, hi})
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrPoseidonHashFailed, err)
	}
	var e fr.Element
	e.SetBigInt(h)
	fr.LittleEndian.PutElement(&out, e)
	return out, nil
}

// WitnessIdentityHash is IdentityHash reversed into the big-endian order
// field elements take in a serialized gnark witness.
func WitnessIdentityHash(pk solana.PublicKey) ([32]byte, error) {
	h, err := IdentityHash(pk)
	if err != nil {
		return h, err
	}
	slices.Reverse(h[:])
	return h, nil
}

// CheckBindings tells whether a witness is bound to the stored root and to
// sender. It is the check a transfer runs before the proof reaches the
// verifier.
func CheckBindings(storedRoot [32]byte, w PublicWitness, sender solana.PublicKey) error {
	return checkBindings(storedRoot, w, sender, WitnessIdentityHash)
}

func checkBindings(storedRoot [32]byte, w PublicWitness, sender solana.PublicKey, hash identityHasher) error {
	if w.Root() != storedRoot {
		return ErrSmtRootMismatch
	}
	want, err := hash(sender)
	if err != nil {
		if errors.Is(err, ErrPoseidonHashFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPoseidonHashFailed, err)
	}
	if w.IdentityHash() != want {
		return ErrPubkeyHashMismatch
	}
	return nil
}
