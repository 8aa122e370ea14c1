package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chrissnell/deltah/internal/app"
	"github.com/chrissnell/deltah/internal/log"
	"github.com/chrissnell/deltah/pkg/lookup"
)

var (
	inspectArea    string
	inspectVolume  string
	inspectMsgpack string
	inspectStored  string
	inspectEvery   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Reload a lookup table and print a summary",
	Long: `Reloads a lookup table from an area/volume CSV pair (--area and --volume),
a msgpack file (--msgpack) or the configured table store (--stored NAME) and
prints catchment totals for every --every-th increment.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectArea, "area", "", "Area CSV table")
	inspectCmd.Flags().StringVar(&inspectVolume, "volume", "", "Volume CSV table")
	inspectCmd.Flags().StringVar(&inspectMsgpack, "msgpack", "", "msgpack table")
	inspectCmd.Flags().StringVar(&inspectStored, "stored", "", "Name of a table in the configured store")
	inspectCmd.Flags().IntVar(&inspectEvery, "every", 10, "Print every n-th increment")
}

func runInspect(cmd *cobra.Command, args []string) error {
	t, err := loadInspectTable(cmd.Context())
	if err != nil {
		return err
	}
	return summarize(cmd.OutOrStdout(), t, inspectEvery)
}

func loadInspectTable(ctx context.Context) (*lookup.Table, error) {
	switch {
	case inspectArea != "" || inspectVolume != "":
		if inspectArea == "" || inspectVolume == "" {
			return nil, errors.New("--area and --volume must be given together")
		}
		areaF, err := os.Open(inspectArea)
		if err != nil {
			return nil, err
		}
		defer areaF.Close()
		volumeF, err := os.Open(inspectVolume)
		if err != nil {
			return nil, err
		}
		defer volumeF.Close()
		return lookup.ReadCSV(areaF, volumeF)

	case inspectMsgpack != "":
		f, err := os.Open(inspectMsgpack)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return lookup.DecodeMsgpack(f)

	case inspectStored != "":
		provider, err := loadProvider(cfgFile, cfgBackend)
		if err != nil {
			return nil, err
		}
		defer provider.Close()
		storageCfg, err := provider.GetStorageConfig()
		if err != nil {
			return nil, err
		}
		store, err := app.OpenStore(*storageCfg, log.GetSugaredLogger())
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, errors.New("no table store is configured")
		}
		defer store.Close()
		if ctx == nil {
			ctx = context.Background()
		}
		return store.LoadTable(ctx, inspectStored)
	}
	return nil, errors.New("one of --area/--volume, --msgpack or --stored is required")
}

// summarize prints the unit ids and the catchment totals of every n-th increment. The last
// increment is always printed.
func summarize(w io.Writer, t *lookup.Table, every int) error {
	if every < 1 {
		every = 1
	}
	n := t.Increments()

	fmt.Fprintf(w, "units: %v\nincrements: %d\n\n", t.UnitIDs, n)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "increment\tmelted\tarea m²\tvolume m³\t")
	fractions := t.Fractions()
	for i := 0; i <= n; i++ {
		if i%every != 0 && i != n {
			continue
		}
		fmt.Fprintf(tw, "%d\t%.0f%%\t%s\t%s\t\n", i, 100*fractions[i],
			humanize.Commaf(math.Round(t.TotalArea(i))), humanize.Commaf(math.Round(t.TotalVolume(i))))
	}
	return tw.Flush()
}
