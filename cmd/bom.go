package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emrgen/plm"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var bomCmd = &cobra.Command{
	Use:   "bom",
	Short: "bill of materials commands",
}

func init() {
	bomCmd.AddCommand(addComponentCmd())
	bomCmd.AddCommand(listComponentsCmd())
	bomCmd.AddCommand(bomTreeCmd())
}

func addComponentCmd() *cobra.Command {
	var parent string
	var child string
	var quantity float64

	var required = []string{"parent", "child"}

	command := &cobra.Command{
		Use:     "add",
		Short:   "add, increment or decrement a component",
		Example: "plm bom add -p 03000001Y -c 10000002A -q -1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			result, err := newClient().MergeComponent(context.Background(), parent, child, quantity)
			if err != nil {
				return err
			}

			color.Green(result.Message)
			return nil
		},
	}

	command.Flags().StringVarP(&parent, "parent", "p", "", "parent code (required)")
	command.Flags().StringVarP(&child, "child", "c", "", "child code (required)")
	command.Flags().Float64VarP(&quantity, "quantity", "q", 1, "quantity to add, negative to remove")

	return command
}

func listComponentsCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "list <code>",
		Short: "list the direct components of a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := newClient().Components(context.Background(), args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Child", "Description", "Quantity"})
			for _, component := range components {
				table.Append([]string{component.Code, component.Description, formatQuantity(component.Quantity)})
			}
			table.Render()

			return nil
		},
	}

	return command
}

func bomTreeCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "tree <code>",
		Short: "print the expanded bill of materials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := newClient().ExpandBOM(context.Background(), args[0])
			if err != nil {
				return err
			}

			printNode(root, 0)
			return nil
		},
	}

	return command
}

func printNode(node *plm.BomNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if node.Cycle {
		color.Red("%s%s x%s (cycle)", indent, node.Code, formatQuantity(node.Quantity))
		return
	}

	fmt.Printf("%s%s x%s %s\n", indent, node.Code, formatQuantity(node.Quantity), node.Description)
	for _, child := range node.Children {
		printNode(child, depth+1)
	}
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
