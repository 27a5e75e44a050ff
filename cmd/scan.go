package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Detect and group faces in a photo folder",
	Long: `Scan a folder with the face detection service and cluster the
detected faces into per-person groups.

Scans are incremental: unchanged files are skipped and existing groups
are extended, keeping their names. Use --force to discard previous
results and scan from scratch.

Examples:
  # Incremental scan
  facegroups scan ./photos

  # Full rescan, discarding previous groups
  facegroups scan ./photos --force

  # Use a different worker count
  facegroups scan ./photos --concurrency 2`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("force", false, "Discard previous results and rescan everything")
	scanCmd.Flags().Int("concurrency", 0, "Number of parallel detection workers (0 = default)")
}

func runScan(cmd *cobra.Command, args []string) error {
	folder := args[0]
	force := mustGetBool(cmd, "force")
	concurrency := mustGetInt(cmd, "concurrency")

	ctx := context.Background()
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	images, err := scan.ListImages(folder)
	if err != nil {
		return fmt.Errorf("listing folder: %w", err)
	}
	fmt.Printf("Images in folder: %d\n", len(images))

	reg, cleanup, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := scan.New(st, newDetector(cfg), cfg.RecognitionConfig())
	if concurrency > 0 {
		orch.Workers = concurrency
	}

	var bar *progressbar.ProgressBar
	orch.OnProgress = func(p scan.Progress) {
		if p.Warning != "" {
			fmt.Printf("\nWarning: %s\n", p.Warning)
		}
		switch p.Phase {
		case "detecting":
			if bar == nil {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Detecting faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(p.Completed)
		case "matching":
			fmt.Println("\nMatching groups against known people...")
		}
	}
	if reg != nil && cfg.Recognition.AutoMatchPeople {
		matcher := registry.NewMatcher(reg, cfg.Registry.MatchConfidence)
		orch.AfterScan = func(ctx context.Context, m *faces.Mutator) error {
			return matcher.MatchFolder(ctx, m)
		}
	}

	data, err := orch.Scan(ctx, folder, images, force)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}
	if data == nil {
		return fmt.Errorf("a scan is already running for %s", folder)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Printf("\nDone: %d faces in %d groups\n", len(data.Faces), len(data.Groups))
	return nil
}
