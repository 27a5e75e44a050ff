package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/registry"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage the known-person registry",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known people",
	RunE:  runPeopleList,
}

var peopleAddCmd = &cobra.Command{
	Use:   "add [name] [image...]",
	Short: "Add reference photos of a person to the registry",
	Long: `Detect the face in each reference image and store its embedding under
the given person. A new person is created on first use; adding more
images to an existing name appends reference embeddings.

Reference images should contain exactly one clearly visible face. When
several faces are detected, the highest-quality one is used.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPeopleAdd,
}

var peopleMatchCmd = &cobra.Command{
	Use:   "match [folder]",
	Short: "Name groups in a scanned folder after known people",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleMatch,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleAddCmd)
	peopleCmd.AddCommand(peopleMatchCmd)
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	storage, cleanup, err := openRegistryStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	people, err := storage.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("listing people: %w", err)
	}
	if len(people) == 0 {
		fmt.Println("No people in the registry.")
		return nil
	}

	for _, p := range people {
		fmt.Printf("%s  %-25s %d reference embeddings\n", p.ID, p.Name, len(p.Embeddings))
	}
	return nil
}

func runPeopleAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	images := args[1:]

	ctx := context.Background()
	cfg := config.Load()

	storage, cleanup, err := openRegistryStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	person, err := findPersonByName(ctx, storage, name)
	if err != nil {
		return err
	}
	if person == nil {
		person = &registry.Person{
			ID:        uuid.New().String(),
			Name:      name,
			CreatedAt: time.Now(),
		}
		if err := storage.AddPerson(ctx, person); err != nil {
			return fmt.Errorf("creating person: %w", err)
		}
		fmt.Printf("Created person %s (%s)\n", name, person.ID)
	}

	detector := newDetector(cfg)
	added := 0
	for _, image := range images {
		detections, err := detector.Detect(ctx, image)
		if err != nil {
			fmt.Printf("Warning: %s: %v\n", image, err)
			continue
		}
		best := bestDetection(detections)
		if best == nil {
			fmt.Printf("Warning: no face found in %s\n", image)
			continue
		}
		if err := storage.AddEmbedding(ctx, person.ID, best.Embedding); err != nil {
			fmt.Printf("Warning: %s: %v\n", image, err)
			continue
		}
		added++
	}

	fmt.Printf("Added %d reference embeddings for %s\n", added, name)
	return nil
}

// findPersonByName looks a person up by normalized name.
func findPersonByName(ctx context.Context, storage registry.Storage, name string) (*registry.Person, error) {
	people, err := storage.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	want := registry.NormalizeName(name)
	for i := range people {
		if registry.NormalizeName(people[i].Name) == want {
			return &people[i], nil
		}
	}
	return nil, nil
}

// bestDetection picks the highest-quality detection with an embedding.
func bestDetection(detections []detect.Detection) *detect.Detection {
	var best *detect.Detection
	for i := range detections {
		d := &detections[i]
		if len(d.Embedding) == 0 {
			continue
		}
		if best == nil || d.Quality > best.Quality {
			best = d
		}
	}
	return best
}

func runPeopleMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	reg, cleanup, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if reg == nil {
		return fmt.Errorf("FACEGROUPS_REGISTRY_BACKEND is not configured")
	}

	m, err := openMutator(args[0])
	if err != nil {
		return err
	}

	matcher := registry.NewMatcher(reg, cfg.Registry.MatchConfidence)
	if err := matcher.MatchFolder(ctx, m); err != nil {
		return fmt.Errorf("matching people: %w", err)
	}

	if len(m.Data.Matches) == 0 {
		fmt.Println("No groups matched known people.")
		return nil
	}
	for groupID, match := range m.Data.Matches {
		g := m.Data.GroupByID(groupID)
		if g == nil {
			continue
		}
		fmt.Printf("%s -> %s (%.2f, %d faces)\n", groupID, g.Name, match.Confidence, g.Size())
	}
	return nil
}
