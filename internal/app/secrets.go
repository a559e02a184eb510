package app

import "mlesc/internal/util/memzero"

// Environment variables holding secrets.
const (
	EnvSharedKey      = "MLES_SHARED_KEY"
	EnvProxySharedKey = "MLES_PROXY_SHARED_KEY"
	EnvServerKey      = "MLES_KEY"
	EnvMQTTPassword   = "MLES_MQTT_PASSWORD"
)

// Secrets are kept apart from Config so that config can be logged and
// printed.
type Secrets struct {
	// Shared is the channel secret for the primary side.
	Shared []byte
	// ProxyShared is the secret for the second Mles server; empty means Shared.
	ProxyShared []byte
	// ServerKey feeds the join token.
	ServerKey []byte

	MQTTPassword string
}

// SecretsFromEnv reads the secret variables through getenv.
func SecretsFromEnv(getenv func(string) string) Secrets {
	s := Secrets{
		ServerKey:    []byte(getenv(EnvServerKey)),
		MQTTPassword: getenv(EnvMQTTPassword),
	}
	if v := getenv(EnvSharedKey); v != "" {
		s.Shared = []byte(v)
	}
	if v := getenv(EnvProxySharedKey); v != "" {
		s.ProxyShared = []byte(v)
	}
	return s
}

func (s Secrets) proxy() []byte {
	if len(s.ProxyShared) > 0 {
		return s.ProxyShared
	}
	return s.Shared
}

// Wipe zeroes the secret byte slices.
func (s *Secrets) Wipe() {
	memzero.Zero(s.Shared)
	memzero.Zero(s.ProxyShared)
	memzero.Zero(s.ServerKey)
}
