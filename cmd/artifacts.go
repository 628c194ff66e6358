package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var artifactsPrefix string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List exported artifacts",
	RunE:  runArtifacts,
}

func init() {
	artifactsCmd.Flags().StringVarP(&artifactsPrefix, "prefix", "p", "", "Only list keys with this prefix (e.g. scripts/)")
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	objects, err := result.Service.Artifacts(cmd.Context(), artifactsPrefix)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(objects)
	}
	if len(objects) == 0 {
		fmt.Println(warnStyle.Render("No artifacts found"))
		return nil
	}
	for _, o := range objects {
		fmt.Printf("%-50s %8d  %s\n", o.Key, o.Size, infoStyle.Render(o.Updated.Format("2006-01-02 15:04")))
	}
	return nil
}
