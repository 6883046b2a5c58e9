package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "weaver",
	Short: "weaver - post-compile weaving of assembly containers",
	Long: `weaver rewrites compiled assemblies: it applies the weaves selected by
attributes on types, mixes interface implementations into their targets and
wraps configured methods with advice.

Commands:
  weave       Weave the configured input container
  verify      Check the structure of every method body
  graph       Print the element graph of a container as JSON
  disasm      Print a text listing of a container
  init        Create .weaver/config.yaml and a weaver config interactively

Use "weaver [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "Project config file (default: .weaver/config.yaml)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	RootCmd.AddCommand(weaveCmd)
	RootCmd.AddCommand(verifyCmd)
	RootCmd.AddCommand(graphCmd)
	RootCmd.AddCommand(disasmCmd)
	RootCmd.AddCommand(initCmd)
}
