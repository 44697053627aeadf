package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quernstone/portcullis/internal/config"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")
)

func printKV(key string, val any) {
	fmt.Printf("  %-14s %v\n", faint(key)+":", val)
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleRounded)
}

// signingSecret resolves the shared secret from the --secret flag, a gate
// config file, or the environment, in that order.
func signingSecret(flagValue, configFile string) ([]byte, error) {
	if flagValue != "" {
		return []byte(flagValue), nil
	}
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		return []byte(cfg.Auth.Secret), nil
	}
	if env := os.Getenv(config.EnvAuthSecret); env != "" {
		return []byte(env), nil
	}
	return nil, fmt.Errorf("no signing secret: pass --secret, --config, or set %s", config.EnvAuthSecret)
}
