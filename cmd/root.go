package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plm",
	Short: "product lifecycle management server and tools",
	Example: `plm serve
plm db migrate
plm account create -a mrossi -p <password>
plm context set --server http://localhost:8000 --account "Milano|Ufficio Tecnico|mrossi"
plm part create -t 03 -d "staffa" -q 10 -l A1
plm part list --all
plm bom add -p <parent> -c <child> -q 2
plm bom tree <code>`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.AddCommand(partCmd)
	rootCmd.AddCommand(bomCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
