package commands

import (
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/normcache/config"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and open the store it describes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			s, err := config.Build(cmd.Context(), cfg, nil, nil)
			if err != nil {
				return err
			}
			if err := s.Close(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("ok: store=%s codec=%s namespace=%s reader=%s\n",
				cfg.Store.Kind, cfg.Codec, cfg.Namespace, cfg.Reader)
			return nil
		},
	}
}
