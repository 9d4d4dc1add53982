package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/config"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/sim"
	"github.com/rustyeddy/tradecore/stream"
)

var replayCmd = &cobra.Command{
	Use:   "replay [instruments...]",
	Short: "Replay tick files through the simulated matching engine",
	Long: `Replay tick files from a source directory on the virtual clock.

Each file under the source directory is one instrument; arguments pick which
instruments to subscribe (the configured simulation instruments when
omitted; the command fails when neither is given).

Examples:
  terminal replay --source ./ticks ES NQ
  terminal replay --config terminal.yaml`,
	RunE: runReplay,
}

var (
	replayConfigPath string
	replaySource     string
	replayBalance    float64
	replaySpeed      int
	replayDBPath     string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "f", "", "path to config file")
	replayCmd.Flags().StringVarP(&replaySource, "source", "s", "", "directory of tick files")
	replayCmd.Flags().Float64Var(&replayBalance, "balance", 50_000, "initial account balance")
	replayCmd.Flags().IntVar(&replaySpeed, "speed", 100, "virtual-clock tick interval in ms")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path (optional)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if replayConfigPath != "" {
		loaded, err := config.LoadFromFile(replayConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if replaySource != "" {
		cfg.Simulation.Source = replaySource
	}
	if cmd.Flags().Changed("balance") {
		cfg.Account.InitialBalance = replayBalance
	}
	if cmd.Flags().Changed("speed") {
		cfg.Simulation.Speed = replaySpeed
	}
	if replayDBPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: replayDBPath}
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	names := args
	if len(names) == 0 {
		names = cfg.Simulation.Instruments
	}
	if len(names) == 0 {
		return fmt.Errorf("no instruments given and none configured")
	}

	acct := broker.NewAccount(cfg.Account.Descriptor, cfg.Account.InitialBalance)
	engine := sim.New(acct, sim.Options{
		Speed:   cfg.Simulation.SpeedDuration(),
		Source:  cfg.Simulation.Source,
		Journal: j,
	})

	errSub := engine.ErrorStream().Subscribe(func(msg stream.Message[*broker.Error]) {
		log.Printf("engine: %v", msg.Next)
	})
	defer errSub.Close()

	for _, name := range names {
		if resp := engine.Subscribe(market.NewInstrument(name)); !resp.Ok() {
			return fmt.Errorf("subscribe %s: %w", name, resp.Err())
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Replaying %v from %s at %v/tick\n", names, cfg.Simulation.Source, cfg.Simulation.SpeedDuration())
	if resp := engine.Connect(ctx); !resp.Ok() {
		return fmt.Errorf("connect: %w", resp.Err())
	}
	defer engine.Disconnect()

	if err := engine.Wait(ctx); err != nil {
		return err
	}

	resp := engine.GetAccount(broker.AccountCriteria{})
	if !resp.Ok() {
		return fmt.Errorf("get account: %w", resp.Err())
	}
	acct = resp.Data

	fmt.Printf("\nReplay complete!\n")
	fmt.Printf("  Balance:   $%.2f\n", acct.Balance)
	fmt.Printf("  Estimated: $%.2f\n", acct.EstimatedGainLoss())
	fmt.Printf("  Deals:     %d\n", len(acct.Deals))
	fmt.Printf("  Positions: %d closed, %d active\n", len(acct.Positions), len(acct.ActivePositions))
	return nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.DealsFile, cfg.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	}
	return journal.Nop{}, nil
}
