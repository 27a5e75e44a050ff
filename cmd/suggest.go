package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/constants"
	"github.com/jvanek/facegroups/internal/suggest"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [folder]",
	Short: "Suggest groups that may belong to the same person",
	Long: `Compare group representatives and list pairs similar enough to be
the same person. With --refine, only pairs of one named and one unnamed
group are reported, at a lower threshold, to help attach leftovers to
already identified people.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().Float64("threshold", 0, "Minimum representative similarity (0 = default)")
	suggestCmd.Flags().Bool("refine", false, "Only suggest named-to-unnamed pairs")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	refine := mustGetBool(cmd, "refine")

	cfg := config.Load()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	data, err := loadFolder(st, args[0])
	if err != nil {
		return err
	}

	rc := cfg.RecognitionConfig()

	var suggestions []suggest.MergeSuggestion
	if refine {
		if threshold <= 0 {
			threshold = constants.DefaultRefinementThreshold
		}
		base := suggest.ComputeMergeSuggestions(data, rc, constants.DefaultMergeSuggestionThreshold)
		suggestions = suggest.ComputeRefinementSuggestions(data, rc, threshold, base)
	} else {
		if threshold <= 0 {
			threshold = constants.DefaultMergeSuggestionThreshold
		}
		suggestions = suggest.ComputeMergeSuggestions(data, rc, threshold)
	}

	if len(suggestions) == 0 {
		fmt.Println("No suggestions.")
		return nil
	}

	describe := func(id string) string {
		g := data.GroupByID(id)
		if g == nil {
			return id
		}
		if g.Named() {
			return fmt.Sprintf("%s (%s, %d faces)", g.ID, g.Name, g.Size())
		}
		return fmt.Sprintf("%s (%d faces)", g.ID, g.Size())
	}

	for _, s := range suggestions {
		fmt.Printf("%.3f  %s <-> %s\n", s.Similarity, describe(s.GroupA), describe(s.GroupB))
	}
	fmt.Printf("\n%d suggestions. Apply with: facegroups groups merge %s <group-id> <group-id>\n",
		len(suggestions), args[0])
	return nil
}
