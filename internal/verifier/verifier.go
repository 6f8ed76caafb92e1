// verifier.go
// Groth16 verifier program
// -----------------------------------------------------------------------------
// Accepts `proof ‖ public witness` as instruction data and succeeds only if
// the proof verifies against the loaded verifying key. The witness is the
// gnark binary encoding (12-byte header then 32 bytes per public input), so
// its length is fixed by the key; everything before it is the proof in
// either raw or compressed point encoding.
// -----------------------------------------------------------------------------
package verifier

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"

	"zkguard-exclusion/internal/ledger"
)

var (
	ErrMalformedPayload = errors.New("malformed verifier payload")
	ErrProofRejected    = errors.New("proof rejected")
)

const witnessHeaderSize = 12

type Groth16 struct {
	vk       groth16.VerifyingKey
	nbPublic int
}

var _ ledger.Program = (*Groth16)(nil)

func NewGroth16(vk groth16.VerifyingKey) *Groth16 {
	return &Groth16{vk: vk, nbPublic: vk.NbPublicWitness()}
}

// LoadVerifyingKey reads a BN254 verifying key as written by WriteTo or
// WriteRawTo.
func LoadVerifyingKey(r io.Reader) (*Groth16, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return NewGroth16(vk), nil
}

func LoadVerifyingKeyFile(path string) (*Groth16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadVerifyingKey(f)
}

// WitnessSize is the encoded length of a public witness for this key.
func (g *Groth16) WitnessSize() int {
	return witnessHeaderSize + g.nbPublic*32
}

// Verify checks payload = proof ‖ witness.
func (g *Groth16) Verify(payload []byte) error {
	ws := g.WitnessSize()
	if len(payload) <= ws {
		return fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}
	proofBytes, witnessBytes := payload[:len(payload)-ws], payload[len(payload)-ws:]

	proof := groth16.NewProof(ecc.BN254)
	n, err := proof.ReadFrom(bytes.NewReader(proofBytes))
	if err != nil {
		return fmt.Errorf("%w: proof: %v", ErrMalformedPayload, err)
	}
	if int(n) != len(proofBytes) {
		return fmt.Errorf("%w: %d trailing proof bytes", ErrMalformedPayload, len(proofBytes)-int(n))
	}

	pub, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return err
	}
	if err := pub.UnmarshalBinary(witnessBytes); err != nil {
		return fmt.Errorf("%w: witness: %v", ErrMalformedPayload, err)
	}

	if err := groth16.Verify(proof, g.vk, pub); err != nil {
		return fmt.Errorf("%w: %w", ErrProofRejected, err)
	}
	return nil
}

// Process runs Verify on the instruction data. The instruction takes no
// accounts.
func (g *Groth16) Process(ic *ledger.InvokeContext, _ []*ledger.AccountInfo, data []byte) error {
	if err := g.Verify(data); err != nil {
		ic.Logger().Info().Err(err).Msg("groth16 verification failed")
		return err
	}
	ic.Logger().Info().Int("public_inputs", g.nbPublic).Msg("groth16 proof verified")
	return nil
}
