package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/meta"
	"github.com/jvanek/facegroups/internal/store"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect and edit face groups of a scanned folder",
}

var groupsListCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List face groups in display order",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsList,
}

var groupsMergeCmd = &cobra.Command{
	Use:   "merge [folder] [group-id...]",
	Short: "Merge groups into the first one in display order",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runGroupsMerge,
}

var groupsUngroupCmd = &cobra.Command{
	Use:   "ungroup [folder] [group-id...]",
	Short: "Split groups back into single faces",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupsUngroup,
}

var groupsNameCmd = &cobra.Command{
	Use:   "name [folder] [group-id] [name]",
	Short: "Assign a person name to a group",
	Long: `Assign a person name to a group. The name is also written into the
PersonInImage metadata field of every member photo. An empty name makes
the group unnamed again.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runGroupsName,
}

var groupsDeleteCmd = &cobra.Command{
	Use:   "delete [folder] [group-id]",
	Short: "Delete a group and its faces",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupsDelete,
}

var groupsMoveCmd = &cobra.Command{
	Use:   "move [folder] [target-group-id] [face-id...]",
	Short: "Move faces into another group",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runGroupsMove,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsMergeCmd)
	groupsCmd.AddCommand(groupsUngroupCmd)
	groupsCmd.AddCommand(groupsNameCmd)
	groupsCmd.AddCommand(groupsDeleteCmd)
	groupsCmd.AddCommand(groupsMoveCmd)

	groupsDeleteCmd.Flags().Bool("photos", false, "Also move the member photo files to the trash")
}

// loadFolder loads the stored aggregate for a folder, failing when the
// folder has never been scanned.
func loadFolder(st *store.Store, folder string) (*faces.FolderFaceData, error) {
	data, err := st.LoadAggregate(folder)
	if err != nil {
		return nil, fmt.Errorf("loading face data: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("folder %s has not been scanned yet", folder)
	}
	return data, nil
}

func openMutator(folder string) (*faces.Mutator, error) {
	cfg := config.Load()
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	data, err := loadFolder(st, folder)
	if err != nil {
		return nil, err
	}
	m := faces.NewMutator(data, st)
	m.Trasher = st.Trasher()
	if tool := meta.NewExifTool(""); tool.Available() {
		m.Metadata = tool
	}
	return m, nil
}

// reportMutation prints the outcome of a group mutation. Persistence
// failures leave the in-memory change applied, so they are warnings.
func reportMutation(changed bool, err error) {
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if changed {
		fmt.Println("Done.")
	} else {
		fmt.Println("Nothing to do.")
	}
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	data, err := loadFolder(st, args[0])
	if err != nil {
		return err
	}

	ordered := faces.DisplayOrder(data.Groups)
	fmt.Printf("%d groups, %d faces (%d ungrouped)\n\n",
		len(ordered), len(data.Faces), len(data.UngroupedFaces()))

	for _, g := range ordered {
		name := g.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-25s %3d faces", g.ID, name, g.Size())
		if match, ok := data.Matches[g.ID]; ok {
			fmt.Printf("  matched %s (%.2f)", match.PersonID, match.Confidence)
		}
		fmt.Println()
	}
	return nil
}

func runGroupsMerge(cmd *cobra.Command, args []string) error {
	m, err := openMutator(args[0])
	if err != nil {
		return err
	}
	targetID, changed, err := m.MergeMultiple(args[1:])
	if changed {
		fmt.Printf("Merged into %s\n", targetID)
	}
	reportMutation(changed, err)
	return nil
}

func runGroupsUngroup(cmd *cobra.Command, args []string) error {
	m, err := openMutator(args[0])
	if err != nil {
		return err
	}
	changed, err := m.UngroupMultiple(args[1:])
	reportMutation(changed, err)
	return nil
}

func runGroupsName(cmd *cobra.Command, args []string) error {
	m, err := openMutator(args[0])
	if err != nil {
		return err
	}
	name := ""
	if len(args) == 3 {
		name = args[2]
	}
	changed, err := m.NameGroup(args[1], name)
	reportMutation(changed, err)
	return nil
}

func runGroupsDelete(cmd *cobra.Command, args []string) error {
	includePhotos := mustGetBool(cmd, "photos")

	m, err := openMutator(args[0])
	if err != nil {
		return err
	}
	trashed, err := m.DeleteGroup(args[1], includePhotos)
	for _, path := range trashed {
		fmt.Printf("Trashed %s\n", path)
	}
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	fmt.Println("Done.")
	return nil
}

func runGroupsMove(cmd *cobra.Command, args []string) error {
	m, err := openMutator(args[0])
	if err != nil {
		return err
	}
	changed, err := m.MoveFaces(args[2:], args[1])
	reportMutation(changed, err)
	return nil
}
