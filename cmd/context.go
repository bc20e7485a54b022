package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	plm "github.com/emrgen/plm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "plm"
	contextDir     = "./.tmp"
	defaultServer  = "http://localhost:8000"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the server and account the client commands act as.
type Context struct {
	Server  string `mapstructure:"server" json:"server"`
	Account string `mapstructure:"account" json:"account"`
}

// saves the context info to the config file in ./.tmp
func setContextCommand() *cobra.Command {
	var server string
	var account string
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if account == "" {
				color.Red(`missing: --account "<facility>|<group>|<account>"`)
				return
			}
			if len(strings.Split(account, "|")) != 3 {
				color.Red(`invalid account, expected "<facility>|<group>|<account>"`)
				return
			}

			if err := writeContext(Context{Server: server, Account: account}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&server, "server", "s", defaultServer, "server url")
	command.Flags().StringVarP(&account, "account", "a", "", "account header value")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			printField("Server", ctx.Server)
			printField("Account", ctx.Account)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeContext(Context{Server: defaultServer}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context reset")
		},
	}

	return command
}

func contextConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.AddConfigPath(contextDir)
	v.SetConfigType("yml")

	return v
}

func writeContext(context Context) error {
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return err
	}

	v := contextConfig()
	v.Set("context.server", context.Server)
	v.Set("context.account", context.Account)

	return v.WriteConfigAs(filepath.Join(contextDir, configFileName+".yml"))
}

func readContext() Context {
	ctx := Context{Server: defaultServer}

	v := contextConfig()
	if err := v.ReadInConfig(); err != nil {
		return ctx
	}

	if err := v.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}
	if ctx.Server == "" {
		ctx.Server = defaultServer
	}

	return ctx
}

// newClient builds an HTTP client from the saved context.
func newClient() *plm.Client {
	ctx := readContext()

	var opts []plm.Option
	if parts := strings.Split(ctx.Account, "|"); len(parts) == 3 {
		opts = append(opts, plm.WithAccount(parts[0], parts[1], parts[2]))
	}

	return plm.NewClient(ctx.Server, opts...)
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags reports whether any required flag is unset, printing the missing ones.
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, "--"+required)
		}
	}

	if len(missingFlags) > 0 {
		color.Red("missing: %s", strings.Join(missingFlags, " "))
		return true
	}

	return false
}
