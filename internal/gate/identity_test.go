package gate

import (
	"errors"
	"slices"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// poseidon(1, 2) with the circom BN254 parameters.
const poseidonOneTwo = "0x115cc0f5e7d690413df64c6b9662e9cf2a3617f2743245519e19607a4417189a"

func TestIdentityHashKnownVector(t *testing.T) {
	var pk solana.PublicKey
	pk[0] = 1  // low half, little-endian 1
	pk[16] = 2 // high half, little-endian 2

	be, err := WitnessIdentityHash(pk)
	require.NoError(t, err)
	require.Equal(t, poseidonOneTwo, hexutil.Encode(be[:]))

	le, err := IdentityHash(pk)
	require.NoError(t, err)
	slices.Reverse(le[:])
	require.Equal(t, be, le)
}

func TestIdentityHashIsCanonicalAndDistinct(t *testing.T) {
	seen := make(map[[32]byte]bool)
	for i := 0; i < 8; i++ {
		h, err := WitnessIdentityHash(newKey(t))
		require.NoError(t, err)
		_, err = fr.BigEndian.Element(&h)
		require.NoError(t, err)
		require.False(t, seen[h])
		seen[h] = true
	}
}

func rootOf(v uint64) [32]byte {
	var e fr.Element
	e.SetUint64(v)
	return e.Bytes()
}

func TestCheckBindings(t *testing.T) {
	sender := newKey(t)
	ih, err := WitnessIdentityHash(sender)
	require.NoError(t, err)
	root := rootOf(7)
	w, err := BuildWitness(root, ih)
	require.NoError(t, err)

	require.NoError(t, CheckBindings(root, w, sender))
	require.ErrorIs(t, CheckBindings(rootOf(8), w, sender), ErrSmtRootMismatch)
	require.ErrorIs(t, CheckBindings(root, w, newKey(t)), ErrPubkeyHashMismatch)

	// The root is checked first.
	require.ErrorIs(t, CheckBindings(rootOf(8), w, newKey(t)), ErrSmtRootMismatch)
}

func TestCheckBindingsHashFailure(t *testing.T) {
	sender := newKey(t)
	root := rootOf(7)
	w, err := BuildWitness(root, rootOf(1))
	require.NoError(t, err)

	broken := func(solana.PublicKey) ([32]byte, error) {
		return [32]byte{}, errors.New("syscall unavailable")
	}
	require.ErrorIs(t, checkBindings(root, w, sender, broken), ErrPoseidonHashFailed)
}

func TestBuildWitnessLayout(t *testing.T) {
	root, ih := rootOf(0x0102), rootOf(0x0304)
	w, err := BuildWitness(root, ih)
	require.NoError(t, err)

	// nbPublic = 2, nbSecret = 0, vector length = 2
	require.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 2}, w[:WitnessHeaderSize])
	require.Equal(t, root, w.Root())
	require.Equal(t, ih, w.IdentityHash())
	require.Equal(t, byte(0x02), w[WitnessHeaderSize+31])

	var notCanonical [32]byte
	for i := range notCanonical {
		notCanonical[i] = 0xff
	}
	_, err = BuildWitness(notCanonical, ih)
	require.Error(t, err)
}
