package gate

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Record layout: discriminator (8) ‖ admin (32) ‖ exclusion root (32).
const (
	StateSize = 8 + 32 + 32

	adminOffset = 8
	rootOffset  = 40
)

// StateSeed labels the admin's record address derivation.
const StateSeed = "state"

// StateDiscriminator tags an initialized record ("smt_root").
var StateDiscriminator = [8]byte{0x73, 0x6d, 0x74, 0x5f, 0x72, 0x6f, 0x6f, 0x74}

// StateRecord is the decoded per-admin record.
type StateRecord struct {
	Admin solana.PublicKey
	Root  [32]byte
}

func (r StateRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, StateSize)
	r.put(buf)
	return buf, nil
}

func (r StateRecord) put(buf []byte) {
	copy(buf[:adminOffset], StateDiscriminator[:])
	copy(buf[adminOffset:rootOffset], r.Admin[:])
	copy(buf[rootOffset:StateSize], r.Root[:])
}

// UnmarshalBinary trusts nothing past the discriminator until it matches.
func (r *StateRecord) UnmarshalBinary(data []byte) error {
	if len(data) < StateSize || !bytes.Equal(data[:adminOffset], StateDiscriminator[:]) {
		return ErrInvalidStateAccount
	}
	copy(r.Admin[:], data[adminOffset:rootOffset])
	copy(r.Root[:], data[rootOffset:StateSize])
	return nil
}

// StateAddress is the derived record address of one admin. The bump is only
// needed to sign for the address while creating it.
type StateAddress struct {
	Admin   solana.PublicKey
	Address solana.PublicKey
	Bump    uint8
}

// DeriveStateAddress is a pure function of admin and programID.
func DeriveStateAddress(admin, programID solana.PublicKey) (StateAddress, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(StateSeed), admin[:]}, programID)
	if err != nil {
		return StateAddress{}, err
	}
	return StateAddress{Admin: admin, Address: addr, Bump: bump}, nil
}

// SignerSeeds authorizes the program to act for the address.
func (a StateAddress) SignerSeeds() [][]byte {
	return [][]byte{[]byte(StateSeed), a.Admin[:], {a.Bump}}
}
