package cmd

import (
	"github.com/encodeous/weave/core"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run weave",
	Long:  `This will run a weave node on the current host against the mesh described by the config's sim section.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		err := core.Bootstrap(configPath, logPath, verbose)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "wv",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("log", "l", "", "Also write logs to this file")
}
