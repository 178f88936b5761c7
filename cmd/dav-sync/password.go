package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/alexjbarnes/dav-sync/internal/config"
	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"golang.org/x/term"
)

// resolvePassword returns DAVSYNC_PASSWORD if set, else the output of
// the password command, else whatever prompt reads.
func resolvePassword(ctx context.Context, cfg *config.Config, prompt func() (string, error)) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	if cfg.PasswordCommand != "" {
		return passwordFromCommand(ctx, cfg.PasswordCommand)
	}

	return prompt()
}

func passwordFromCommand(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // G204: user-configured command
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("running password command: %w", err)
	}

	password := strings.TrimRight(string(out), "\r\n")
	if password == "" {
		return "", fmt.Errorf("password command printed nothing")
	}

	return password, nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // G115: file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", apperrors.ErrNoPasswordTerm
	}

	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}
