package gate

import (
	"encoding/binary"
)

// Opcode is the leading byte of every instruction.
type Opcode uint8

const (
	OpInitialize    Opcode = 0
	OpSetRoot       Opcode = 1
	OpGatedTransfer Opcode = 2
)

// Payload sizes.
const (
	RootSize          = 32
	AmountSize        = 8
	ProofSize         = 388
	WitnessHeaderSize = 12
	WitnessSize       = WitnessHeaderSize + 2*32
	GatedTransferSize = AmountSize + ProofSize + WitnessSize
)

// Instruction is one of Initialize, SetRoot or GatedTransfer.
// MarshalBinary yields the full wire form, opcode included.
type Instruction interface {
	Opcode() Opcode
	MarshalBinary() ([]byte, error)
	instruction()
}

// Initialize creates the caller's record. It carries no payload.
type Initialize struct{}

// SetRoot replaces the exclusion root of the caller's record.
type SetRoot struct {
	Root [RootSize]byte
}

// GatedTransfer moves Amount lamports once Proof verifies against Witness.
type GatedTransfer struct {
	Amount  uint64
	Proof   [ProofSize]byte
	Witness PublicWitness
}

// PublicWitness is the serialized public input vector of the exclusion
// proof: a 12-byte header followed by the root and the identity-hash, each
// a 32-byte big-endian field element.
type PublicWitness [WitnessSize]byte

func (w PublicWitness) Root() (root [32]byte) {
	copy(root[:], w[WitnessHeaderSize:WitnessHeaderSize+32])
	return root
}

func (w PublicWitness) IdentityHash() (h [32]byte) {
	copy(h[:], w[WitnessHeaderSize+32:])
	return h
}

func (Initialize) Opcode() Opcode    { return OpInitialize }
func (SetRoot) Opcode() Opcode       { return OpSetRoot }
func (GatedTransfer) Opcode() Opcode { return OpGatedTransfer }

func (Initialize) instruction()    {}
func (SetRoot) instruction()       {}
func (GatedTransfer) instruction() {}

func (Initialize) MarshalBinary() ([]byte, error) {
	return []byte{byte(OpInitialize)}, nil
}

func (s SetRoot) MarshalBinary() ([]byte, error) {
	return append([]byte{byte(OpSetRoot)}, s.Root[:]...), nil
}

func (t GatedTransfer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 1+GatedTransferSize)
	buf[0] = byte(OpGatedTransfer)
	binary.LittleEndian.PutUint64(buf[1:], t.Amount)
	copy(buf[1+AmountSize:], t.Proof[:])
	copy(buf[1+AmountSize+ProofSize:], t.Witness[:])
	return buf, nil
}

// VerifierPayload is the opaque input handed to the verifier program.
func (t GatedTransfer) VerifierPayload() []byte {
	out := make([]byte, 0, ProofSize+WitnessSize)
	out = append(out, t.Proof[:]...)
	return append(out, t.Witness[:]...)
}

// DecodeInstruction parses the wire form. Payload lengths are checked here,
// before any account is looked at.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidDataLength
	}
	payload := data[1:]
	switch op := Opcode(data[0]); op {
	case OpInitialize:
		if len(payload) != 0 {
			return nil, ErrInvalidDataLength
		}
		return Initialize{}, nil

	case OpSetRoot:
		if len(payload) != RootSize {
			return nil, ErrInvalidDataLength
		}
		var s SetRoot
		copy(s.Root[:], payload)
		return s, nil

	case OpGatedTransfer:
		if len(payload) != GatedTransferSize {
			return nil, ErrInvalidDataLength
		}
		var t GatedTransfer
		t.Amount = binary.LittleEndian.Uint64(payload[:AmountSize])
		copy(t.Proof[:], payload[AmountSize:AmountSize+ProofSize])
		copy(t.Witness[:], payload[AmountSize+ProofSize:])
		return t, nil

	default:
		return nil, &UnknownInstructionError{Opcode: byte(op)}
	}
}
