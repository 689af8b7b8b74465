package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/encodeous/weave/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a node configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		name := args[0]
		err := state.NameValidator(name)
		if err != nil {
			fmt.Printf("Invalid name: %s\n", name)
			os.Exit(-1)
		}

		nodeCfg := state.LocalCfg{
			Id:        state.NodeId(name),
			DebugBind: state.DefaultDebugBind,
			Sim: &state.SimCfg{
				Seed: 1,
				Peers: []state.SimPeerCfg{
					{
						Name:              "wifi-peer",
						Hops:              1,
						EstablishmentRate: 1_200_000,
						ExpectedRate:      900_000,
						NextHopBitrate:    54_000_000,
						RTT:               0.04,
						MTU:               1196,
						LinkExpiry:        2 * time.Minute,
					},
					{
						Name:              "lora-peer",
						Hops:              4,
						EstablishmentRate: 2_400,
						NextHopBitrate:    9_600,
						RTT:               1.8,
						MTU:               500,
						EstablishDelay:    2 * time.Second,
						LinkExpiry:        5 * time.Minute,
					},
					{
						Name:           "roaming-peer",
						Hops:           2,
						NextHopBitrate: 10_000_000,
						RTT:            0.2,
						MTU:            1196,
						FailRate:       0.3,
						Opens:          true,
						LinkExpiry:     time.Minute,
					},
				},
			},
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			panic(err)
		}

		outPath := cmd.Flag("output").Value.String()
		err = os.WriteFile(outPath, ncfg, 0700)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", state.DefaultConfigPath, "node config output file path")
}
