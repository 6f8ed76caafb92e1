// main.go
// exclusion-gate operator CLI
// -----------------------------------------------------------------------------
// Offline tooling around the exclusion-gated transfer program: derive state
// record addresses, compute identity-hashes, encode instructions, cross-check
// proof witnesses and run the Groth16 verifier locally. `demo` runs the whole
// flow on an in-memory bank.
//
// Every flag can also be set as EXCLUSION_GATE_<FLAG> (dashes become
// underscores) or in a YAML file passed with --config.
// -----------------------------------------------------------------------------
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"zkguard-exclusion/internal/gate"
)

const envPrefix = "EXCLUSION_GATE"

// config is the resolved global configuration.
type config struct {
	ProgramID solana.PublicKey
	Log       zerolog.Logger
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cfg := &config{}

	root := &cobra.Command{
		Use:           "exclusion-gate",
		Short:         "Tooling for the exclusion-gated transfer program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.load(v, cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("program-id", gate.ProgramID.String(), "address the gate program is deployed at")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newStateAddressCmd(v, cfg),
		newIdentityHashCmd(v),
		newEncodeCmd(v, cfg),
		newCheckWitnessCmd(v),
		newVerifyCmd(v, cfg),
		newDemoCmd(v, cfg),
	)
	return root
}

func (c *config) load(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	c.Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	c.ProgramID, err = solana.PublicKeyFromBase58(v.GetString("program-id"))
	if err != nil {
		return fmt.Errorf("program-id: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
