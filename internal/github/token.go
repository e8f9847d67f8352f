package github

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TokenFromCLI asks the gh CLI for its stored credential. Used when no token
// is configured explicitly.
func TokenFromCLI(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "gh", "auth", "token")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("gh auth token: %s", msg)
		}
		return "", fmt.Errorf("gh auth token: %w", err)
	}
	token := strings.TrimSpace(stdout.String())
	if token == "" {
		return "", fmt.Errorf("gh auth token: empty output")
	}
	return token, nil
}
