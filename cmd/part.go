package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/emrgen/plm"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var partCmd = &cobra.Command{
	Use:   "part",
	Short: "part commands",
}

func init() {
	partCmd.AddCommand(createPartCmd())
	partCmd.AddCommand(listPartsCmd())
	partCmd.AddCommand(releaseRevisionCmd())
}

func createPartCmd() *cobra.Command {
	var req plm.CreatePartRequest

	var required = []string{"type"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a part with the next code of a type",
		Example: `plm part create -t 03 -d "staffa" -q 10 -l A1 --release`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			part, err := newClient().CreatePart(context.Background(), req)
			if err != nil {
				return err
			}

			color.Green("part created: %s", part.Code)
			return nil
		},
	}

	command.Flags().StringVarP(&req.Type, "type", "t", "", "two digit type (required)")
	command.Flags().StringVarP(&req.Description, "description", "d", "", "description")
	command.Flags().Float64VarP(&req.Quantity, "quantity", "q", 0, "quantity on hand")
	command.Flags().StringVarP(&req.Location, "location", "l", "", "storage location")
	command.Flags().StringVarP(&req.State, "state", "s", "", "initial revision state")
	command.Flags().BoolVar(&req.ReleaseNow, "release", false, "release revision 0 immediately")
	command.Flags().SortFlags = false

	return command
}

func listPartsCmd() *cobra.Command {
	var all bool

	command := &cobra.Command{
		Use:   "list",
		Short: "list parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := newClient().ListParts(context.Background(), all)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Code", "Description", "Quantity", "Location"})
			for _, part := range parts {
				table.Append([]string{part.Code, part.Description, strconv.FormatFloat(part.Quantity, 'f', -1, 64), part.Location})
			}
			table.Render()

			return nil
		},
	}

	command.Flags().BoolVarP(&all, "all", "a", false, "include parts without a released revision")

	return command
}

func releaseRevisionCmd() *cobra.Command {
	var code string
	var index int

	var required = []string{"code", "index"}

	command := &cobra.Command{
		Use:   "release",
		Short: "release a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			rev, err := newClient().ReleaseRevision(context.Background(), code, index)
			if err != nil {
				return err
			}

			color.Green("%s rev%d released (%s)", code, rev.Index, rev.State)
			return nil
		},
	}

	command.Flags().StringVarP(&code, "code", "c", "", "part code (required)")
	command.Flags().IntVarP(&index, "index", "i", 0, "revision index (required)")

	return command
}
