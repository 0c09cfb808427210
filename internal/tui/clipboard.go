package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/appmenu/internal/config"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// copyText copies text to the system clipboard.
func copyText(text string, cfg *config.Config) error {
	cmd := detectClipboardCommand(cfg)
	if cmd == "" {
		return fmt.Errorf("no clipboard command available")
	}

	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return fmt.Errorf("invalid clipboard command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)

	return c.Run()
}

// detectClipboardCommand returns the clipboard command to use.
func detectClipboardCommand(cfg *config.Config) string {
	if cfg != nil && cfg.Clipboard.Command != "" {
		return cfg.Clipboard.Command
	}

	// Wayland first, then X11
	if _, err := lookPath("wl-copy"); err == nil {
		return "wl-copy"
	}
	if _, err := lookPath("xclip"); err == nil {
		return "xclip -selection clipboard"
	}
	if _, err := lookPath("xsel"); err == nil {
		return "xsel --clipboard --input"
	}

	return ""
}
