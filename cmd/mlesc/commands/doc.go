// Package commands defines the mlesc CLI.
//
// Commands
//
//   - mlesc              Join a channel; with --proxy-server or --mqtt-broker,
//     bridge it instead
//   - fingerprint        Print the session key fingerprint for a channel
//   - version            Print the build version
//
// # Configuration
//
// Settings come from an optional YAML file (--config) overlaid by flags.
// Secrets never come from flags: the channel secret is read from
// MLES_SHARED_KEY (MLES_PROXY_SHARED_KEY for the second server in proxy mode)
// or prompted for on the terminal, and the server join key from MLES_KEY.
//
// SIGINT and SIGTERM cancel the run; links flush what they have queued and
// close with a normal close frame.
package commands
