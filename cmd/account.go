package cmd

import (
	"context"
	"path/filepath"

	"github.com/emrgen/plm/internal/config"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/service"
	"github.com/emrgen/plm/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "account commands",
}

func init() {
	accountCmd.AddCommand(createAccountCmd())
}

// createAccountCmd registers an account directly against the configured
// database and account directory, without a running server.
func createAccountCmd() *cobra.Command {
	var name string
	var password string

	var required = []string{"account", "password"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create an account",
		Example: "plm account create -a mrossi -p <password>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			db, err := config.GetDb(cfg)
			if err != nil {
				return err
			}
			plmStore := store.NewGormStore(db)
			if err := plmStore.Migrate(); err != nil {
				return err
			}

			reg, err := registry.New(cfg.Registry.Dir)
			if err != nil {
				return err
			}
			directory, err := registry.NewDirectory(filepath.Join(cfg.Registry.Dir, registry.AccountsFile))
			if err != nil {
				return err
			}

			acc, err := service.NewAccountService(plmStore, directory, reg).CreateAccount(context.Background(), name, password)
			if err != nil {
				return err
			}

			color.Green("account created: %s", acc.Header())
			return nil
		},
	}

	command.Flags().StringVarP(&name, "account", "a", "", "account name (required)")
	command.Flags().StringVarP(&password, "password", "p", "", "password (required)")

	return command
}
