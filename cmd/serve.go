package cmd

import (
	"github.com/emrgen/plm/internal/config"
	"github.com/emrgen/plm/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port int

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the plm http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flag("port").Changed {
				cfg.HTTP.Port = port
			}

			return server.Start(cfg)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8000, "http port, overrides PLM_HTTP_PORT")

	return command
}
