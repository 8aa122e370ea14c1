package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrissnell/deltah/internal/app"
	"github.com/chrissnell/deltah/internal/log"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute, write and schedule every configured lookup table",
	Args:  cobra.NoArgs,
	RunE:  runCompute,
}

func runCompute(cmd *cobra.Command, args []string) error {
	provider, err := loadProvider(cfgFile, cfgBackend)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := app.New(provider, log.GetSugaredLogger()).Run(ctx)
	if err != nil {
		log.Errorf("compute failed: %v", err)
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s: %d units, %d increments", r.Run.Name, len(r.Table.UnitIDs), r.Table.Increments())
		if r.RunID != "" {
			fmt.Fprintf(out, ", stored as %s", r.RunID)
		}
		fmt.Fprintln(out)
		for _, f := range r.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	return nil
}
