package ledger

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// MaxPermittedDataLength bounds the size of a single account's data.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Account is the stored state behind an address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
}

func (a *Account) clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = bytes.Clone(a.Data)
	}
	return &c
}

// isEmpty reports whether the account is indistinguishable from an address
// that was never written.
func (a *Account) isEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == solana.SystemProgramID && !a.Executable
}

// AccountInfo is a program's view of one account in the current invocation.
// The embedded *Account points at the transaction's working copy, so writes
// made through it are visible to the caller and to later instructions, and
// are discarded if the transaction aborts.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}

// AccountIter walks an instruction's accounts in declaration order.
type AccountIter struct {
	accounts []*AccountInfo
	next     int
}

func NewAccountIter(accounts []*AccountInfo) *AccountIter {
	return &AccountIter{accounts: accounts}
}

// Next returns the next account or ErrNotEnoughAccountKeys.
func (it *AccountIter) Next() (*AccountInfo, error) {
	if it.next >= len(it.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	a := it.accounts[it.next]
	it.next++
	return a, nil
}
