package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
)

var (
	reconcileFix       bool
	reconcilePrefix    string
	reconcileMinAge    time.Duration
	reconcileBatchSize int
	reconcileJSON      bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find blobs without image rows and image rows without blobs",
	Long: `reconcile lists the blob store and pages through the image rows, reporting
orphaned blobs and dangling rows. With --fix it deletes both.

Blobs younger than --min-age are never reported, so uploads in flight are left
alone.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(config.WithEventLogging(true))
		if err != nil {
			fatal("Error loading configuration", err)
		}

		ctx := context.Background()
		comps, err := cfg.Build(ctx, slog.Default())
		if err != nil {
			fatal("Error building service", err)
		}
		defer comps.Close()

		result, err := comps.Service.Reconcile(ctx, simplenotes.ReconcileOptions{
			Prefix:    reconcilePrefix,
			BatchSize: reconcileBatchSize,
			MinAge:    reconcileMinAge,
			Fix:       reconcileFix,
			OnProgress: func(processed, total int64) {
				slog.Debug("Reconcile progress", "images", processed, "objects", total)
			},
		})
		if err != nil {
			fatal("Error reconciling", err)
		}

		if reconcileJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				fatal("Error encoding result", err)
			}
			return
		}
		printReconcileResult(result)
	},
}

func printReconcileResult(result *simplenotes.ReconcileResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Objects scanned:\t%d\n", result.ObjectsScanned)
	fmt.Fprintf(w, "Images scanned:\t%d\n", result.ImagesScanned)
	fmt.Fprintf(w, "Orphaned blobs:\t%d\n", len(result.OrphanedBlobs))
	fmt.Fprintf(w, "Dangling images:\t%d\n", len(result.DanglingImages))
	if reconcileFix {
		fmt.Fprintf(w, "Blobs deleted:\t%d\n", result.BlobsDeleted)
		fmt.Fprintf(w, "Images deleted:\t%d\n", result.ImagesDeleted)
		fmt.Fprintf(w, "Failed repairs:\t%d\n", len(result.FailedIDs))
	}
	w.Flush()

	for _, name := range result.OrphanedBlobs {
		fmt.Printf("orphaned blob  %s\n", name)
	}
	for _, id := range result.DanglingImages {
		fmt.Printf("dangling image %s\n", id)
	}
	for _, id := range result.FailedIDs {
		fmt.Printf("failed         %s\n", id)
	}
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFix, "fix", false, "Delete orphaned blobs and dangling image rows")
	reconcileCmd.Flags().StringVar(&reconcilePrefix, "prefix", "", "Only scan blobs under this prefix, e.g. a note id")
	reconcileCmd.Flags().DurationVar(&reconcileMinAge, "min-age", 15*time.Minute, "Ignore blobs newer than this")
	reconcileCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", simplenotes.DefaultListLimit, "Image rows read per batch")
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(reconcileCmd)
}
