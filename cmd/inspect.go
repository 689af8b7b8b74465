package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/encodeous/weave/core"
	"github.com/encodeous/weave/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the link table of a running weave node",
	Run: func(cmd *cobra.Command, args []string) {
		bind := state.DefaultDebugBind
		if cfg, err := core.ReadLocalConfig(configPath); err == nil && cfg.DebugBind != "" {
			bind = cfg.DebugBind
		}
		if len(args) == 1 {
			bind = args[0]
		}
		path := "/debug/links"
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			path = "/debug/links/watch"
		}
		resp, err := http.Get(fmt.Sprintf("http://%s%s", bind, path))
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(os.Stdout, resp.Body)
	},
	GroupID: "wv",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolP("watch", "w", false, "stream link table updates")
}
