// Package app turns configuration into a running client.
//
// Config is loaded from YAML and overlaid with command-line flags by the CLI.
// NewWire validates it, derives the session keys and builds the dependency
// graph for the selected mode: one channel session plus the terminal chat in
// direct mode, or two sessions joined by a bridge controller in proxy and mqtt
// mode. App.Run drives that graph until the context ends.
package app
