// bank.go
// In-memory execution host
// -----------------------------------------------------------------------------
// The Bank owns every account and every registered program. Transactions run
// against a private working copy of the accounts they declare; the copy is
// written back only when every instruction (including the programs those
// instructions invoke) succeeds. A failed transaction leaves no trace: no
// account change, no lamport movement and no program logs survive it.
//
// Transactions whose account sets do not overlap in a writable position run
// concurrently in ProcessBatch; overlapping ones are serialized by per-account
// locks. Programs themselves never lock anything.
// -----------------------------------------------------------------------------
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Program is an on-ledger program. Process runs synchronously; returning an
// error aborts the enclosing transaction.
type Program interface {
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ic *InvokeContext, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ic, accounts, data)
}

// Transaction is an ordered list of instructions plus the set of keys whose
// signatures the caller has already verified.
type Transaction struct {
	Instructions []solana.Instruction
	Signers      []solana.PublicKey
}

func NewTransaction(signers []solana.PublicKey, instructions ...solana.Instruction) *Transaction {
	return &Transaction{Instructions: instructions, Signers: signers}
}

// Receipt is returned for committed transactions only.
type Receipt struct {
	Logs []string
}

type Bank struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
	programs map[solana.PublicKey]Program

	locks       *accountLocks
	rent        Rent
	log         zerolog.Logger
	maxParallel int
}

type Option func(*Bank)

// WithLogger sets the logger used for host events (commits, rollbacks).
// Program logs are captured per transaction and are not written here.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bank) { b.log = l }
}

func WithRent(r Rent) Option {
	return func(b *Bank) { b.rent = r }
}

// WithMaxParallel bounds the number of transactions ProcessBatch runs at once.
func WithMaxParallel(n int) Option {
	return func(b *Bank) { b.maxParallel = n }
}

func NewBank(opts ...Option) *Bank {
	b := &Bank{
		accounts: make(map[solana.PublicKey]*Account),
		programs: make(map[solana.PublicKey]Program),
		locks:    newAccountLocks(),
		rent:     DefaultRent(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.RegisterProgram(solana.SystemProgramID, systemProgram{})
	return b
}

// RegisterProgram deploys p at id, replacing any previous program there.
func (b *Bank) RegisterProgram(id solana.PublicKey, p Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[id] = p
	b.accounts[id] = &Account{Lamports: 1, Owner: solana.SystemProgramID, Executable: true}
}

func (b *Bank) Rent() Rent { return b.rent }

// Airdrop credits lamports to key, creating the account if needed.
func (b *Bank) Airdrop(key solana.PublicKey, lamports uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[key]
	if !ok {
		acct = &Account{Owner: solana.SystemProgramID}
		b.accounts[key] = acct
	}
	acct.Lamports += lamports
}

// StoreAccount overwrites the account at key. Intended for genesis setup.
func (b *Bank) StoreAccount(key solana.PublicKey, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[key] = acct.clone()
}

// Account returns a copy of the committed account at key.
func (b *Bank) Account(key solana.PublicKey) (*Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acct, ok := b.accounts[key]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

func (b *Bank) Balance(key solana.PublicKey) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if acct, ok := b.accounts[key]; ok {
		return acct.Lamports
	}
	return 0
}

func (b *Bank) program(id solana.PublicKey) (Program, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.programs[id]
	return p, ok
}

// Process executes tx atomically.
func (b *Bank) Process(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signers := make(map[solana.PublicKey]bool, len(tx.Signers))
	for _, s := range tx.Signers {
		signers[s] = true
	}
	lockSet, err := tx.lockSet(signers)
	if err != nil {
		return nil, err
	}

	release := b.locks.acquire(lockSet)
	defer release()

	ws := b.load(lockSet)
	var logs bytes.Buffer
	txLog := zerolog.New(&logs)

	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.execute(ctx, ws, ix, signers, &txLog, 0); err != nil {
			b.log.Debug().Err(err).Int("instruction", i).Msg("transaction rolled back")
			return nil, &InstructionError{Index: i, Err: err}
		}
	}

	b.commit(ws, lockSet)
	b.log.Debug().Int("instructions", len(tx.Instructions)).Int("accounts", len(lockSet)).Msg("transaction committed")
	return &Receipt{Logs: splitLines(logs.Bytes())}, nil
}

// ProcessBatch executes txs concurrently. Transactions that write a common
// account are serialized in an unspecified order; the rest run in parallel.
// The i-th receipt and error belong to txs[i].
func (b *Bank) ProcessBatch(ctx context.Context, txs []*Transaction) ([]*Receipt, []error) {
	receipts := make([]*Receipt, len(txs))
	errs := make([]error, len(txs))

	var g errgroup.Group
	if b.maxParallel > 0 {
		g.SetLimit(b.maxParallel)
	}
	for i, tx := range txs {
		g.Go(func() error {
			receipts[i], errs[i] = b.Process(ctx, tx)
			return nil
		})
	}
	_ = g.Wait()
	return receipts, errs
}

// lockSet collects every key the transaction touches, marking the writable
// ones, and rejects declared signers the caller did not vouch for.
func (tx *Transaction) lockSet(signers map[solana.PublicKey]bool) (map[solana.PublicKey]bool, error) {
	set := make(map[solana.PublicKey]bool)
	for _, ix := range tx.Instructions {
		pid := ix.ProgramID()
		if _, ok := set[pid]; !ok {
			set[pid] = false
		}
		for _, m := range ix.Accounts() {
			if m.IsSigner && !signers[m.PublicKey] {
				return nil, fmt.Errorf("%w: %s", ErrMissingRequiredSignature, m.PublicKey)
			}
			set[m.PublicKey] = set[m.PublicKey] || m.IsWritable
		}
	}
	return set, nil
}

func (b *Bank) load(keys map[solana.PublicKey]bool) map[solana.PublicKey]*Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ws := make(map[solana.PublicKey]*Account, len(keys))
	for k := range keys {
		if acct, ok := b.accounts[k]; ok {
			ws[k] = acct.clone()
		} else {
			ws[k] = &Account{Owner: solana.SystemProgramID}
		}
	}
	return ws
}

func (b *Bank) commit(ws map[solana.PublicKey]*Account, keys map[solana.PublicKey]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, writable := range keys {
		if !writable {
			continue
		}
		if acct := ws[k]; acct.isEmpty() {
			delete(b.accounts, k)
		} else {
			b.accounts[k] = acct
		}
	}
}

func splitLines(p []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(p))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}
