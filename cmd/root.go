package cmd

import (
	"os"

	"github.com/encodeous/weave/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weave",
	Short: "Weave Mesh Connectivity CLI",
	Long: `Weave is the connectivity layer of a peer-to-peer mesh messenger.
It tracks which conversation peers currently have a live link, estimates each
link's throughput, and recommends a media compression preset to match, from
kilobit radio links up to megabit WiFi.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var configPath string

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize Weave",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "wv",
		Title: "Weave Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", state.DefaultConfigPath, "node config")
}
