// Command corevm is the operator-facing front door onto the execution
// engine: it opens a substate store, wires up a System, and exposes
// manifest execution and schema inspection as cobra subcommands,
// following the teacher's cmd/synnergy CLI layout.
package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-network/corevm/core"
	"github.com/synnergy-network/corevm/manifest"
	"github.com/synnergy-network/corevm/pkg/config"
	"github.com/synnergy-network/corevm/schema"
	"github.com/synnergy-network/corevm/store"
)

func main() {
	rootCmd := &cobra.Command{Use: "corevm"}
	rootCmd.AddCommand(runManifestCmd())
	rootCmd.AddCommand(inspectSchemaCmd())
	rootCmd.AddCommand(addressCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Entry {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return logrus.NewEntry(log)
}

func openStore(path string) (store.SubstateStore, func(), error) {
	if path == "" || path == ":memory:" {
		return store.NewMemStore(), func() {}, nil
	}
	bs, err := store.OpenBoltStore(path)
	if err != nil {
		return nil, nil, err
	}
	return bs, func() { _ = bs.Close() }, nil
}

func newSystem(cfg *config.Config, txSeed string) (*core.System, error) {
	backing, _, err := openStore(cfg.Store.BoltPath)
	if err != nil {
		return nil, err
	}
	txHash := sha256.Sum256([]byte(txSeed))
	price, ok := core.ParseDecimal(cfg.Fee.DefaultCostUnitPrice)
	if !ok {
		price = core.NewDecimalFromInt64(0)
	}
	costing := core.NewCostingModule(price, cfg.Fee.SystemLoanUnits)
	txLimit := core.NewTransactionLimitModule(cfg.Kernel.MaxSubstateReadBytes, cfg.Kernel.MaxSubstateWriteBytes, cfg.Kernel.MaxWasmMemoryPages)
	logger := core.NewLoggerModule(newLogger(cfg.Logging.Level))
	return core.NewSystem(backing, txHash, cfg.Kernel.MaxCallDepth, costing, txLimit, logger), nil
}

func runManifestCmd() *cobra.Command {
	var configEnv string
	cmd := &cobra.Command{
		Use:   "run-manifest [file]",
		Short: "parse and execute a transaction manifest against a fresh transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configEnv)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := manifest.NewParser(string(src), cfg.Manifest.MaxSborDepth)
			if err != nil {
				return err
			}
			m, err := p.Parse()
			if err != nil {
				return err
			}
			sys, err := newSystem(cfg, args[0])
			if err != nil {
				return err
			}
			proc := manifest.NewProcessor(sys)
			runErr := proc.Run(m)
			if err := sys.Finish(runErr == nil); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			for _, ev := range sys.Events() {
				fmt.Printf("event %s from %s (%d bytes)\n", ev.Name, ev.Emitter.Hex(), len(ev.Payload))
			}
			for _, entry := range sys.Logs() {
				fmt.Printf("log[%s] %s\n", entry.Level, entry.Message)
			}
			fmt.Println("manifest committed")
			return nil
		},
	}
	cmd.Flags().StringVar(&configEnv, "env", "", "configuration environment overlay (config/<env>.yaml)")
	return cmd
}

// schemaDoc is the on-disk shape a blueprint author hands to
// inspect-schema: two named-type maps plus which comparison preset to
// run, letting the command double as both a CI gate and a manual
// compatibility check.
type schemaDoc struct {
	Preset string                 `json:"preset"`
	Base   map[string]schema.Node `json:"base"`
	Next   map[string]schema.Node `json:"next"`
}

func inspectSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-schema [file]",
		Short: "compare two blueprint schema versions for compatibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc schemaDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode schema document: %w", err)
			}
			settings := schema.AllowExtension()
			if doc.Preset == "require-equality" {
				settings = schema.RequireEquality()
			}
			res := schema.Compare(doc.Base, doc.Next, settings)
			if res.IsCompatible() {
				fmt.Println("compatible")
				return nil
			}
			for _, d := range res.Diagnostics {
				fmt.Println(d.String())
			}
			return fmt.Errorf("%d incompatibilities found", len(res.Diagnostics))
		},
	}
	return cmd
}

func addressCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "address"}
	decode := &cobra.Command{
		Use:   "decode [bech32m]",
		Short: "decode a node address into its entity type and hex id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hrp, id, err := core.DecodeBech32m(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("hrp=%s entity=%d id=%s\n", hrp, id.EntityType(), id.Hex())
			return nil
		},
	}
	cmd.AddCommand(decode)
	return cmd
}
