package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mlesc/internal/app"
	"mlesc/internal/crypto"
	"mlesc/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlesc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	path := writeFile(t, `
channel: room
uid: alice
mqtt_broker: mqtt://localhost
kdf:
  log_n: 12
  r: 8
  p: 2
reconnect:
  base_delay: 250ms
  max_retries: 7
bridge:
  stats_interval: 1m
broker:
  format: json
`)
	cfg, err := app.LoadFile(path)
	require.NoError(err)

	require.Equal("room", cfg.Channel)
	require.Equal(app.DefaultServer, cfg.Server)
	require.Equal(crypto.KDFParams{LogN: 12, R: 8, P: 2}, cfg.KDF)
	require.Equal(app.Duration(250*time.Millisecond), cfg.Reconnect.BaseDelay)
	require.Equal(app.Default().Reconnect.MaxDelay, cfg.Reconnect.MaxDelay)
	require.Equal(7, cfg.Reconnect.MaxRetries)
	require.Equal(app.Duration(time.Minute), cfg.Bridge.StatsInterval)
	require.Equal("json", cfg.Broker.Format)
	require.Equal(app.ModeMQTT, cfg.Mode())
	require.NoError(cfg.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown key":  "chanel: room\n",
		"bad duration": "reconnect:\n  base_delay: soon\n",
		"not yaml":     "channel: [room\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := app.LoadFile(writeFile(t, body))
			require.ErrorIs(t, err, domain.ErrConfig)
		})
	}

	_, err := app.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := app.LoadFile(writeFile(t, ""))
	require.NoError(t, err)
	require.Equal(t, app.Default(), cfg)
}

func valid() app.Config {
	cfg := app.Default()
	cfg.Channel = "room"
	cfg.UID = "alice"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		mut  func(*app.Config)
		want error
		mode app.Mode
	}{
		{"direct", func(*app.Config) {}, nil, app.ModeDirect},
		{"proxy", func(c *app.Config) { c.ProxyServer = "wss://other.example" }, nil, app.ModeProxy},
		{"mqtt", func(c *app.Config) { c.MQTTBroker = "mqtt://localhost" }, nil, app.ModeMQTT},
		{"proxy and mqtt", func(c *app.Config) {
			c.ProxyServer = "wss://other.example"
			c.MQTTBroker = "mqtt://localhost"
		}, domain.ErrConfig, app.ModeProxy},
		{"no channel", func(c *app.Config) { c.Channel = "" }, domain.ErrConfig, app.ModeDirect},
		{"no uid", func(c *app.Config) { c.UID = " " }, domain.ErrConfig, app.ModeDirect},
		{"plain ws", func(c *app.Config) { c.Server = "ws://localhost:8080" }, domain.ErrConfig, app.ModeDirect},
		{"plain ws allowed", func(c *app.Config) {
			c.Server = "ws://localhost:8080"
			c.Insecure = true
		}, nil, app.ModeDirect},
		{"bad proxy url", func(c *app.Config) { c.ProxyServer = "http://x" }, domain.ErrConfig, app.ModeProxy},
		{"bad broker url", func(c *app.Config) { c.MQTTBroker = "amqp://x" }, domain.ErrConfig, app.ModeMQTT},
		{"bad broker format", func(c *app.Config) {
			c.MQTTBroker = "mqtt://localhost"
			c.Broker.Format = "xml"
		}, domain.ErrConfig, app.ModeMQTT},
		{"bad kdf", func(c *app.Config) { c.KDF.LogN = 40 }, domain.ErrKeyDerivation, app.ModeDirect},
		{"bad log level", func(c *app.Config) { c.LogLevel = "loud" }, domain.ErrConfig, app.ModeDirect},
		{"negative retries", func(c *app.Config) { c.Reconnect.MaxRetries = -1 }, domain.ErrConfig, app.ModeDirect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mut(&cfg)
			require.Equal(t, tc.mode, cfg.Mode())
			err := cfg.Validate()
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestSecretsFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		app.EnvSharedKey: "s1",
		app.EnvServerKey: "k",
	}
	s := app.SecretsFromEnv(func(k string) string { return env[k] })
	require.Equal(t, []byte("s1"), s.Shared)
	require.Nil(t, s.ProxyShared)
	require.Equal(t, []byte("k"), s.ServerKey)

	s.Wipe()
	require.Equal(t, []byte{0, 0}, s.Shared)
}
