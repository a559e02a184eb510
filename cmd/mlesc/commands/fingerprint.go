package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mlesc/internal/crypto"
	"mlesc/internal/domain"
	"mlesc/internal/util/memzero"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the session key fingerprint for --channel",
		Long: "Derives the session key from the shared secret and prints a short digest of it.\n" +
			"Peers that print the same fingerprint share the same key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Channel == "" {
				return fmt.Errorf("%w: --channel is required", domain.ErrConfig)
			}
			secret, err := sharedSecret(cfg.Channel)
			if err != nil {
				return err
			}
			defer memzero.Zero(secret)

			key, err := crypto.DeriveSessionKey(secret, cfg.Channel, cfg.KDF)
			if err != nil {
				return err
			}
			defer key.Wipe()
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", key.Fingerprint())
			return nil
		},
	}
}
