package commands

import (
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/normcache/internal/util"
)

func (c *CLI) newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <namespace> <record-key>...",
		Short: "Print the provider keys records are stored under",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range args[1:] {
				cmd.Println(util.StorageKey(args[0], k))
			}
			return nil
		},
	}
}
