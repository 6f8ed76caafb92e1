package verifier

import (
	"bytes"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

var fixture = sync.OnceValues(SetupFixture)

func element(t testing.TB, v uint64) [32]byte {
	t.Helper()
	var e fr.Element
	e.SetUint64(v)
	return e.Bytes()
}

func sampleList(t testing.TB) *ExclusionList {
	t.Helper()
	l, err := NewExclusionList(element(t, 11), element(t, 22), element(t, 33))
	require.NoError(t, err)
	return l
}

func TestExclusionCircuitIsSolved(t *testing.T) {
	list := sampleList(t)

	outside, err := list.assignment(element(t, 44))
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(&ExclusionCircuit{}, outside, ecc.BN254.ScalarField()))

	inside, err := list.assignment(element(t, 22))
	require.NoError(t, err)
	require.Error(t, test.IsSolved(&ExclusionCircuit{}, inside, ecc.BN254.ScalarField()))
}

func TestUnusedSlotsAreNotMembers(t *testing.T) {
	// Zero fills the unused slots but is outside the list.
	list := sampleList(t)
	a, err := list.assignment([32]byte{})
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(&ExclusionCircuit{}, a, ecc.BN254.ScalarField()))
}

func TestExclusionListLimits(t *testing.T) {
	entries := make([][32]byte, MaxExcluded+1)
	_, err := NewExclusionList(entries...)
	require.Error(t, err)

	var notCanonical [32]byte
	for i := range notCanonical {
		notCanonical[i] = 0xff
	}
	_, err = NewExclusionList(notCanonical)
	require.Error(t, err)

	list := sampleList(t)
	require.True(t, list.Contains(element(t, 33)))
	require.False(t, list.Contains(element(t, 34)))
}

func TestRootDependsOnContents(t *testing.T) {
	a := sampleList(t)
	b, err := NewExclusionList(element(t, 11), element(t, 22))
	require.NoError(t, err)
	require.NotEqual(t, a.Root(), b.Root())
	require.Equal(t, a.Root(), sampleList(t).Root())
}

func TestProveAndVerify(t *testing.T) {
	f, err := fixture()
	require.NoError(t, err)
	list := sampleList(t)

	proof, pub, err := f.Prove(list, element(t, 44))
	require.NoError(t, err)
	require.Len(t, proof, 388)
	require.Len(t, pub, 76)

	root := list.Root()
	require.Equal(t, root[:], pub[12:44])
	ih := element(t, 44)
	require.Equal(t, ih[:], pub[44:76])

	g := f.Program()
	require.Equal(t, 76, g.WitnessSize())
	require.NoError(t, g.Verify(append(proof, pub...)))
}

func TestProveRefusesExcludedIdentity(t *testing.T) {
	f, err := fixture()
	require.NoError(t, err)
	_, _, err = f.Prove(sampleList(t), element(t, 11))
	require.Error(t, err)
}

func TestVerifyRejectsSwappedIdentity(t *testing.T) {
	f, err := fixture()
	require.NoError(t, err)
	list := sampleList(t)
	proof, pub, err := f.Prove(list, element(t, 44))
	require.NoError(t, err)

	other := element(t, 45)
	tampered := bytes.Clone(pub)
	copy(tampered[44:], other[:])
	err = f.Program().Verify(append(bytes.Clone(proof), tampered...))
	require.ErrorIs(t, err, ErrProofRejected)
}

func TestVerifyRejectsMalformedPayload(t *testing.T) {
	f, err := fixture()
	require.NoError(t, err)
	g := f.Program()

	require.ErrorIs(t, g.Verify(make([]byte, 76)), ErrMalformedPayload)
	require.ErrorIs(t, g.Verify(make([]byte, 10)), ErrMalformedPayload)

	proof, pub, err := f.Prove(sampleList(t), element(t, 44))
	require.NoError(t, err)
	// An extra byte between proof and witness is left unread by the decoder.
	payload := append(append(bytes.Clone(proof), 0), pub...)
	require.ErrorIs(t, g.Verify(payload), ErrMalformedPayload)
}

func TestLoadVerifyingKey(t *testing.T) {
	f, err := fixture()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.WriteVerifyingKey(&buf))

	g, err := LoadVerifyingKey(&buf)
	require.NoError(t, err)
	proof, pub, err := f.Prove(sampleList(t), element(t, 44))
	require.NoError(t, err)
	require.NoError(t, g.Verify(append(proof, pub...)))

	_, err = LoadVerifyingKey(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}

func BenchmarkExclusionFixture(b *testing.B) {
	var circuit ExclusionCircuit
	list := sampleList(b)
	assignment, err := list.assignment(element(b, 44))
	require.NoError(b, err)

	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	require.NoError(b, err)
	b.Logf("constraints: %d", cs.GetNbConstraints())

	var pk groth16.ProvingKey
	var vk groth16.VerifyingKey
	b.Run("Groth16/Setup", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			pk, vk, _ = groth16.Setup(cs)
		}
	})

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	require.NoError(b, err)
	publicWitness, err := fullWitness.Public()
	require.NoError(b, err)

	var proof groth16.Proof
	b.Run("Groth16/Prove", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			proof, err = groth16.Prove(cs, pk, fullWitness)
			if err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Groth16/Verify", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if err := groth16.Verify(proof, vk, publicWitness); err != nil {
				b.Fatal(err)
			}
		}
	})
}
