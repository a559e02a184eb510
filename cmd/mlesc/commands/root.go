package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mlesc/internal/app"
)

var (
	configPath string
	flags      app.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:           "mlesc",
		Short:         "End-to-end encrypted Mles channel client and bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := app.NewLogger(os.Stderr, cfg.LogLevel)

			secrets := app.SecretsFromEnv(os.Getenv)
			defer secrets.Wipe()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(secrets.Shared) == 0 {
				if secrets.Shared, err = sharedSecret(cfg.Channel); err != nil {
					return err
				}
			}

			w, err := app.NewWire(cfg, secrets, log)
			if err != nil {
				return err
			}
			defer w.Close()
			log.Info().Str("mode", string(w.Mode)).Str("uid", cfg.UID).Str("channel", cfg.Channel).Msg("starting")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.New(w, os.Stdin, os.Stdout).Run(ctx)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&flags.Server, "server", app.DefaultServer, "Mles server URL")
	pf.StringVar(&flags.Channel, "channel", "", "channel name")
	pf.StringVar(&flags.UID, "uid", "", "user id")
	pf.StringVar(&flags.LogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&flags.Insecure, "insecure", false, "allow unencrypted ws:// servers")

	f := root.Flags()
	f.StringVar(&flags.ProxyServer, "proxy-server", "", "bridge the channel to this second Mles server")
	f.StringVar(&flags.ProxyChannel, "proxy-channel", "", "channel on the proxy server (default: --channel)")
	f.StringVar(&flags.MQTTBroker, "mqtt-broker", "", "bridge the channel to this MQTT broker (mqtt://host[:port])")
	f.StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address in bridge modes")

	root.AddCommand(fingerprintCmd(), versionCmd())

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "mlesc:", err)
	}
	return err
}

// loadConfig reads --config and lays every explicitly set flag over it.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	cfg := app.Default()
	if configPath != "" {
		var err error
		if cfg, err = app.LoadFile(configPath); err != nil {
			return cfg, err
		}
	}

	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("server", &cfg.Server, flags.Server)
	set("channel", &cfg.Channel, flags.Channel)
	set("uid", &cfg.UID, flags.UID)
	set("log-level", &cfg.LogLevel, flags.LogLevel)
	set("proxy-server", &cfg.ProxyServer, flags.ProxyServer)
	set("proxy-channel", &cfg.ProxyChannel, flags.ProxyChannel)
	set("mqtt-broker", &cfg.MQTTBroker, flags.MQTTBroker)
	set("metrics-addr", &cfg.MetricsAddr, flags.MetricsAddr)
	if cmd.Flags().Changed("insecure") {
		cfg.Insecure = flags.Insecure
	}
	return cfg, nil
}
