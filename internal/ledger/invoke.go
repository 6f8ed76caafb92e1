package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// MaxInvokeDepth is the deepest instruction stack allowed, counting the
// top-level instruction.
const MaxInvokeDepth = 4

type accountSnapshot struct {
	lamports uint64
	data     []byte
	owner    solana.PublicKey
}

// InvokeContext is handed to a program for the duration of one invocation.
type InvokeContext struct {
	ctx       context.Context
	bank      *Bank
	ws        map[solana.PublicKey]*Account
	txLog     *zerolog.Logger
	log       zerolog.Logger
	programID solana.PublicKey
	depth     int

	accounts []*AccountInfo
	pre      map[solana.PublicKey]accountSnapshot
}

func (ic *InvokeContext) Context() context.Context { return ic.ctx }

// ProgramID is the address of the executing program.
func (ic *InvokeContext) ProgramID() solana.PublicKey { return ic.programID }

func (ic *InvokeContext) Rent() Rent { return ic.bank.rent }

// Logger writes to the transaction's log, which is kept only on commit.
func (ic *InvokeContext) Logger() *zerolog.Logger { return &ic.log }

// Invoke calls another program with the caller's privileges.
func (ic *InvokeContext) Invoke(ix solana.Instruction, accounts []*AccountInfo) error {
	return ic.InvokeSigned(ix, accounts, nil)
}

// InvokeSigned calls another program. Each entry of signerSeeds derives a
// program address of the caller that is treated as a signer of ix.
func (ic *InvokeContext) InvokeSigned(ix solana.Instruction, accounts []*AccountInfo, signerSeeds [][][]byte) error {
	if ic.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}

	pdas := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		pdas[addr] = true
	}

	byKey := make(map[solana.PublicKey]*AccountInfo, len(accounts))
	for _, a := range accounts {
		byKey[a.Key] = a
	}
	signers := make(map[solana.PublicKey]bool)
	for _, m := range ix.Accounts() {
		info, ok := byKey[m.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s not passed to invoke", ErrNotEnoughAccountKeys, m.PublicKey)
		}
		if m.IsSigner {
			if !info.IsSigner && !pdas[m.PublicKey] {
				return fmt.Errorf("%w: %s is not a signer", ErrPrivilegeEscalation, m.PublicKey)
			}
			signers[m.PublicKey] = true
		}
		if m.IsWritable && !info.IsWritable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, m.PublicKey)
		}
	}

	// Changes made so far are the caller's; attribute them before the
	// callee runs, then take the callee's result as the new baseline.
	if err := ic.verify(); err != nil {
		return err
	}
	if err := ic.bank.execute(ic.ctx, ic.ws, ix, signers, ic.txLog, ic.depth+1); err != nil {
		return err
	}
	ic.snapshot()
	return nil
}

func (ic *InvokeContext) snapshot() {
	ic.pre = make(map[solana.PublicKey]accountSnapshot, len(ic.accounts))
	for _, a := range ic.accounts {
		ic.pre[a.Key] = accountSnapshot{lamports: a.Lamports, data: bytes.Clone(a.Data), owner: a.Owner}
	}
}

// verify enforces the ownership rules on the changes this program made
// since the last snapshot.
func (ic *InvokeContext) verify() error {
	var before, after uint64
	seen := make(map[solana.PublicKey]bool, len(ic.accounts))
	for _, a := range ic.accounts {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		pre := ic.pre[a.Key]
		before += pre.lamports
		after += a.Lamports

		owned := a.IsWritable && pre.owner == ic.programID
		if (!bytes.Equal(pre.data, a.Data) || pre.owner != a.Owner) && !owned {
			return fmt.Errorf("%w: %s", ErrReadonlyDataModified, a.Key)
		}
		if a.Lamports < pre.lamports && !owned {
			return fmt.Errorf("%w: %s debited by non-owner", ErrReadonlyDataModified, a.Key)
		}
		if a.Lamports > pre.lamports && !a.IsWritable {
			return fmt.Errorf("%w: %s credited but not writable", ErrReadonlyDataModified, a.Key)
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func (b *Bank) execute(ctx context.Context, ws map[solana.PublicKey]*Account, ix solana.Instruction, signers map[solana.PublicKey]bool, txLog *zerolog.Logger, depth int) error {
	programID := ix.ProgramID()
	prog, ok := b.program(programID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	metas := ix.Accounts()
	infos := make([]*AccountInfo, len(metas))
	for i, m := range metas {
		acct, ok := ws[m.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s not loaded by transaction", ErrNotEnoughAccountKeys, m.PublicKey)
		}
		infos[i] = &AccountInfo{
			Key:        m.PublicKey,
			IsSigner:   m.IsSigner && signers[m.PublicKey],
			IsWritable: m.IsWritable,
			Account:    acct,
		}
	}

	ic := &InvokeContext{
		ctx:       ctx,
		bank:      b,
		ws:        ws,
		txLog:     txLog,
		log:       txLog.With().Str("program", programID.String()).Logger(),
		programID: programID,
		depth:     depth,
		accounts:  infos,
	}
	ic.snapshot()

	ic.log.Info().Int("depth", depth+1).Msg("invoke")
	if err := prog.Process(ic, infos, data); err != nil {
		ic.log.Info().Err(err).Msg("failed")
		return err
	}
	if err := ic.verify(); err != nil {
		return err
	}
	ic.log.Info().Msg("success")
	return nil
}
