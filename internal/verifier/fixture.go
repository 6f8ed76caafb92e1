// fixture.go
// Exclusion fixture circuit
// -----------------------------------------------------------------------------
// A small circuit with the public layout the gate expects (Root, then
// IdentityHash) and one commitment, so a BN254 Groth16 proof of it encodes to
// exactly 388 raw bytes. It proves that IdentityHash is not among the first
// Size entries of a secret list whose MiMC digest is Root.
//
// The list is tiny and held in memory; it stands in for a real exclusion
// tree in tests and in the CLI demo.
// -----------------------------------------------------------------------------
package verifier

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdmimc "github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/cmp"
)

// MaxExcluded bounds the fixture list.
const MaxExcluded = 8

// ExclusionCircuit is the fixture statement.
type ExclusionCircuit struct {
	Root         frontend.Variable `gnark:",public"`
	IdentityHash frontend.Variable `gnark:",public"`

	Excluded [MaxExcluded]frontend.Variable
	Size     frontend.Variable
}

// --- Helper Primitives ---
func eq(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Sub(a, b))
}
func orBitwise(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.Sub(api.Add(a, b), api.Mul(a, b))
}
func inSet(api frontend.API, v frontend.Variable, set [MaxExcluded]frontend.Variable, n frontend.Variable) frontend.Variable {
	found := frontend.Variable(0)
	for i := 0; i < MaxExcluded; i++ {
		isActive := cmp.IsLess(api, i, n)
		found = orBitwise(api, found, api.And(eq(api, v, set[i]), isActive))
	}
	return found
}

func (c *ExclusionCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.Size, MaxExcluded)

	h, err := stdmimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Size)
	h.Write(c.Excluded[:]...)
	api.AssertIsEqual(h.Sum(), c.Root)

	api.AssertIsEqual(inSet(api, c.IdentityHash, c.Excluded, c.Size), 0)

	// Bind both public inputs into a commitment; a zero challenge would mean
	// a degenerate transcript.
	committer, ok := api.(frontend.Committer)
	if !ok {
		return errors.New("builder does not support commitments")
	}
	challenge, err := committer.Commit(c.Root, c.IdentityHash)
	if err != nil {
		return err
	}
	api.AssertIsDifferent(challenge, 0)
	return nil
}

// ExclusionList is the fixture's secret list.
type ExclusionList struct {
	entries []fr.Element
}

// NewExclusionList takes big-endian field elements (the witness byte order
// of an identity-hash).
func NewExclusionList(entries ...[32]byte) (*ExclusionList, error) {
	if len(entries) > MaxExcluded {
		return nil, fmt.Errorf("exclusion list holds at most %d entries, got %d", MaxExcluded, len(entries))
	}
	l := &ExclusionList{entries: make([]fr.Element, len(entries))}
	for i := range entries {
		e, err := fr.BigEndian.Element(&entries[i])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		l.entries[i] = e
	}
	return l, nil
}

func (l *ExclusionList) Contains(identityHash [32]byte) bool {
	for _, e := range l.entries {
		if e.Bytes() == identityHash {
			return true
		}
	}
	return false
}

// Root is the MiMC digest of the size followed by every slot, unused
// slots zero. Big-endian.
func (l *ExclusionList) Root() [32]byte {
	h := mimc.NewMiMC()
	var size fr.Element
	size.SetUint64(uint64(len(l.entries)))
	b := size.Bytes()
	h.Write(b[:])
	for i := 0; i < MaxExcluded; i++ {
		var e fr.Element
		if i < len(l.entries) {
			e = l.entries[i]
		}
		b := e.Bytes()
		h.Write(b[:])
	}
	var root [32]byte
	copy(root[:], h.Sum(nil))
	return root
}

func (l *ExclusionList) assignment(identityHash [32]byte) (*ExclusionCircuit, error) {
	ih, err := fr.BigEndian.Element(&identityHash)
	if err != nil {
		return nil, fmt.Errorf("identity hash: %w", err)
	}
	root := l.Root()
	r, err := fr.BigEndian.Element(&root)
	if err != nil {
		return nil, err
	}
	a := &ExclusionCircuit{
		Root:         r,
		IdentityHash: ih,
		Size:         len(l.entries),
	}
	for i := range a.Excluded {
		if i < len(l.entries) {
			a.Excluded[i] = l.entries[i]
		} else {
			a.Excluded[i] = 0
		}
	}
	return a, nil
}

// ----------------------------------------------------------------------------
// Keys and proving
// ----------------------------------------------------------------------------

// Fixture holds a compiled ExclusionCircuit and its Groth16 keys.
type Fixture struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey
}

// SetupFixture compiles the circuit and runs an unsafe local setup. Keys are
// only good for tests and demos.
func SetupFixture() (*Fixture, error) {
	var circuit ExclusionCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("trusted setup failed: %w", err)
	}
	return &Fixture{cs: cs, pk: pk, vk: vk}, nil
}

func (f *Fixture) Program() *Groth16 { return NewGroth16(f.vk) }

func (f *Fixture) WriteVerifyingKey(w io.Writer) error {
	_, err := f.vk.WriteTo(w)
	return err
}

// Prove returns the raw proof and the public witness that the identity is
// absent from list. It fails if the identity is present.
func (f *Fixture) Prove(list *ExclusionList, identityHash [32]byte) (proof, publicWitness []byte, err error) {
	assignment, err := list.assignment(identityHash)
	if err != nil {
		return nil, nil, err
	}
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("witness creation failed: %w", err)
	}
	pub, err := full.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("public witness creation failed: %w", err)
	}

	p, err := groth16.Prove(f.cs, f.pk, full)
	if err != nil {
		return nil, nil, fmt.Errorf("proof generation failed: %w", err)
	}
	raw, ok := p.(interface {
		WriteRawTo(io.Writer) (int64, error)
	})
	if !ok {
		return nil, nil, fmt.Errorf("proof type %T has no raw encoding", p)
	}
	var buf bytes.Buffer
	if _, err := raw.WriteRawTo(&buf); err != nil {
		return nil, nil, err
	}
	pw, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), pw, nil
}
