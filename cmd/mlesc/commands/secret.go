package commands

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"mlesc/internal/app"
	"mlesc/internal/domain"
)

// sharedSecret returns the channel secret from the environment, or asks for
// it on the terminal.
func sharedSecret(channel string) ([]byte, error) {
	if v := os.Getenv(app.EnvSharedKey); v != "" {
		return []byte(v), nil
	}
	return promptSecret(fmt.Sprintf("Shared key for channel %q: ", channel))
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: $%s is not set and stdin is not a terminal", domain.ErrConfig, app.EnvSharedKey)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return b, nil
}
