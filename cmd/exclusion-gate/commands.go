package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"zkguard-exclusion/internal/gate"
	"zkguard-exclusion/internal/verifier"
)

func pubkeyFlag(v *viper.Viper, name string) (solana.PublicKey, error) {
	s := v.GetString(name)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return pk, fmt.Errorf("--%s: %w", name, err)
	}
	return pk, nil
}

func bytes32Flag(v *viper.Viper, name string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(v.GetString(name))
	if err != nil {
		return out, fmt.Errorf("--%s: %w", name, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("--%s: want 32 bytes, got %d", name, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// readBlob reads a binary file, or a hex one if it starts with 0x.
func readBlob(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("missing file argument")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if t := bytes.TrimSpace(b); bytes.HasPrefix(t, []byte("0x")) {
		return hexutil.Decode(string(t))
	}
	return b, nil
}

func readWitness(path string) (gate.PublicWitness, error) {
	var w gate.PublicWitness
	b, err := readBlob(path)
	if err != nil {
		return w, err
	}
	if len(b) != gate.WitnessSize {
		return w, fmt.Errorf("witness: want %d bytes, got %d", gate.WitnessSize, len(b))
	}
	copy(w[:], b)
	return w, nil
}

// ----------------------------------------------------------------------------
// state-address
// ----------------------------------------------------------------------------

func newStateAddressCmd(v *viper.Viper, cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state-address",
		Short: "Derive an admin's state record address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			admin, err := pubkeyFlag(v, "admin")
			if err != nil {
				return err
			}
			addr, err := gate.DeriveStateAddress(admin, cfg.ProgramID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nbump:    %d\n", addr.Address, addr.Bump)
			return nil
		},
	}
	cmd.Flags().String("admin", "", "admin public key (base58)")
	return cmd
}

// ----------------------------------------------------------------------------
// identity-hash
// ----------------------------------------------------------------------------

func newIdentityHashCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity-hash",
		Short: "Compute the identity-hash a proof must carry for a signer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, err := pubkeyFlag(v, "pubkey")
			if err != nil {
				return err
			}
			le, err := gate.IdentityHash(pk)
			if err != nil {
				return err
			}
			be, err := gate.WitnessIdentityHash(pk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "native (LE):  %s\nwitness (BE): %s\n", hexutil.Encode(le[:]), hexutil.Encode(be[:]))
			return nil
		},
	}
	cmd.Flags().String("pubkey", "", "signer public key (base58)")
	return cmd
}

// ----------------------------------------------------------------------------
// encode
// ----------------------------------------------------------------------------

func newEncodeCmd(v *viper.Viper, cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode instruction data as hex",
	}

	initialize := &cobra.Command{
		Use:   "initialize",
		Short: "Encode Initialize",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printInstruction(cmd, gate.Initialize{})
		},
	}

	setRoot := &cobra.Command{
		Use:   "set-root",
		Short: "Encode SetRoot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := bytes32Flag(v, "root")
			if err != nil {
				return err
			}
			return printInstruction(cmd, gate.SetRoot{Root: root})
		},
	}
	setRoot.Flags().String("root", "", "exclusion root (0x-prefixed hex, 32 bytes)")

	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Encode GatedTransfer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			proof, err := readBlob(v.GetString("proof"))
			if err != nil {
				return fmt.Errorf("proof: %w", err)
			}
			if len(proof) != gate.ProofSize {
				return fmt.Errorf("proof: want %d bytes, got %d", gate.ProofSize, len(proof))
			}
			w, err := readWitness(v.GetString("witness"))
			if err != nil {
				return err
			}
			t := gate.GatedTransfer{Amount: v.GetUint64("amount"), Witness: w}
			copy(t.Proof[:], proof)
			cfg.Log.Debug().Uint64("amount", t.Amount).Msg("encoding gated transfer")
			return printInstruction(cmd, t)
		},
	}
	transfer.Flags().Uint64("amount", 0, "lamports to transfer")
	transfer.Flags().String("proof", "", "raw Groth16 proof file (388 bytes)")
	transfer.Flags().String("witness", "", "public witness file (76 bytes)")

	cmd.AddCommand(initialize, setRoot, transfer)
	return cmd
}

func printInstruction(cmd *cobra.Command, ix gate.Instruction) error {
	b, err := ix.MarshalBinary()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(b))
	return nil
}

// ----------------------------------------------------------------------------
// check-witness
// ----------------------------------------------------------------------------

func newCheckWitnessCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-witness",
		Short: "Check that a witness is bound to a root and a signer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, err := pubkeyFlag(v, "pubkey")
			if err != nil {
				return err
			}
			root, err := bytes32Flag(v, "root")
			if err != nil {
				return err
			}
			w, err := readWitness(v.GetString("witness"))
			if err != nil {
				return err
			}
			if err := gate.CheckBindings(root, w, pk); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "witness is bound to root and signer")
			return nil
		},
	}
	cmd.Flags().String("pubkey", "", "signer public key (base58)")
	cmd.Flags().String("root", "", "stored exclusion root (0x-prefixed hex)")
	cmd.Flags().String("witness", "", "public witness file")
	return cmd
}

// ----------------------------------------------------------------------------
// verify
// ----------------------------------------------------------------------------

func newVerifyCmd(v *viper.Viper, cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the Groth16 verifier on a proof and witness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := verifier.LoadVerifyingKeyFile(v.GetString("vk"))
			if err != nil {
				return err
			}
			proof, err := readBlob(v.GetString("proof"))
			if err != nil {
				return fmt.Errorf("proof: %w", err)
			}
			w, err := readBlob(v.GetString("witness"))
			if err != nil {
				return fmt.Errorf("witness: %w", err)
			}
			if err := g.Verify(append(proof, w...)); err != nil {
				return err
			}
			cfg.Log.Info().Int("proof_bytes", len(proof)).Int("witness_bytes", len(w)).Msg("proof verified")
			fmt.Fprintln(cmd.OutOrStdout(), "✅ proof verified")
			return nil
		},
	}
	cmd.Flags().String("vk", "", "verifying key file")
	cmd.Flags().String("proof", "", "proof file")
	cmd.Flags().String("witness", "", "public witness file")
	return cmd
}
