// Package geocode implements the commune lookup and reference-data loading
// commands.
package geocode

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/geocoder"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the geocode cobra command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Resolve communes and manage the reference store",
	}
	cmd.AddCommand(lookupCommand(settings))
	cmd.AddCommand(batchCommand(settings))
	cmd.AddCommand(loadCommunesCommand(settings))
	cmd.AddCommand(loadFormerCommand(settings))
	return cmd
}

func lookupCommand(settings *conf.Settings) *cobra.Command {
	var department string

	cmd := &cobra.Command{
		Use:   "lookup [commune]",
		Short: "Resolve one commune name through the tier chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.Geocoder().Geocode(cmd.Context(), geocoder.Query{
				Commune:    args[0],
				Department: department,
			})
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Printf("%s: not found\n", args[0])
				return nil
			}

			fmt.Printf("%s\n  coordinates: %s\n  source: %s\n  precision: %s (%d m)\n",
				result.DisplayName, result.Coordinates, result.Source, result.Precision, result.PrecisionM)
			if result.INSEECode != "" {
				fmt.Printf("  insee: %s\n", result.INSEECode)
			}
			if result.Merged {
				fmt.Printf("  merged into: %s\n", result.MergedInto)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&department, "department", "D", "", "Department name or code to scope the lookup")
	return cmd
}

func batchCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [csv-file]",
		Short: "Resolve a CSV of commune;department pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readBatchFile(args[0])
			if err != nil {
				return err
			}

			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			results := svc.Geocoder().GeocodeBatch(cmd.Context(), items)
			resolved := 0
			for _, r := range results {
				if !r.Success {
					fmt.Printf("%s (%s): not found\n", r.Commune, r.Department)
					continue
				}
				resolved++
				fmt.Printf("%s (%s): %s [%s]\n", r.Commune, r.Department, r.Result.Coordinates, r.Result.Source)
			}
			fmt.Printf("%d/%d resolved\n", resolved, len(results))
			return nil
		},
	}
	return cmd
}

// readBatchFile parses a semicolon-separated file of commune;department
// lines. The department column is optional.
func readBatchFile(path string) ([]geocoder.BatchItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	items := make([]geocoder.BatchItem, 0, len(records))
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		item := geocoder.BatchItem{Commune: strings.TrimSpace(record[0])}
		if len(record) > 1 {
			item.Department = strings.TrimSpace(record[1])
		}
		items = append(items, item)
	}
	return items, nil
}

func loadCommunesCommand(settings *conf.Settings) *cobra.Command {
	var (
		apiURL string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "load-communes",
		Short: "Load the national commune reference from the open-data API",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := geocoder.LoadCommunes(cmd.Context(), svc.Store(), apiURL, force)
			if err != nil {
				return err
			}
			fmt.Printf("%d communes loaded, %d errors\n", stats.Loaded, stats.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", "", "Override the communes API URL")
	cmd.Flags().BoolVar(&force, "force", false, "Reload even when communes are already present")
	return cmd
}

func loadFormerCommand(settings *conf.Settings) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "load-former [csv-file]",
		Short: "Import the official merged-communes CSV into the historical store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := geocoder.LoadFormerCommunes(svc.Store(), args[0], clear)
			if err != nil {
				return err
			}
			fmt.Printf("%d former communes loaded, %d skipped, %d errors\n",
				stats.Loaded, stats.Skipped, stats.Errors)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Empty the historical store before importing")
	return cmd
}
