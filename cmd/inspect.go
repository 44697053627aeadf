package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quernstone/portcullis/internal/token"
)

var (
	inspectConfigFile string
	inspectSecret     string
	inspectRaw        bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Verify a session token and show how the gate classifies it",
	Long: `Inspect verifies a session token against the shared secret and reports
the gate's classification: valid, expired_token, or malformed_token.
Pass '-' to read the token from stdin.`,
	Example: `  portcullis inspect --secret hunter2 eyJhbGciOi...
  cat token.txt | portcullis inspect -f portcullis.yaml -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string

		if args[0] != "-" {
			raw = args[0]
		} else {
			// read from stdin
			log.Debug().Msg("Reading token from stdin")

			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			raw = strings.TrimSpace(string(data))
		}
		if raw == "" {
			return fmt.Errorf("token cannot be empty")
		}

		if inspectRaw {
			// dump the undecoded claims, skipping verification entirely
			parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
			if err != nil {
				return fmt.Errorf("parsing token: %w", err)
			}
			fmt.Print(spew.Sdump(parsed.Claims))
			return nil
		}

		secret, err := signingSecret(inspectSecret, inspectConfigFile)
		if err != nil {
			return err
		}
		verifier, err := token.NewVerifier(secret)
		if err != nil {
			return err
		}
		claims, verr := verifier.Verify(raw)

		classification := greenCheck + " valid"
		switch {
		case errors.Is(verr, token.ErrExpired):
			classification = redCross + " expired_token"
		case errors.Is(verr, token.ErrMalformed):
			classification = redCross + " malformed_token"
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"Classification", classification})
		t.AppendRow(table.Row{"Fingerprint", token.Fingerprint(raw)})
		if verr == nil {
			t.AppendRow(table.Row{"Subject", claims.Subject})
			t.AppendRow(table.Row{"Token ID", claims.TokenID})
			if !claims.IssuedAt.IsZero() {
				t.AppendRow(table.Row{"Issued", claims.IssuedAt.Local().Format(time.RFC1123)})
			}
			t.AppendRow(table.Row{"Expires", fmt.Sprintf("%s (in %s)",
				claims.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(claims.ExpiresAt).Round(time.Second))})
		} else {
			t.AppendRow(table.Row{"Detail", verr.Error()})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectSecret, "secret", "", "Signing secret (overrides config and environment)")
	inspectCmd.Flags().StringVarP(&inspectConfigFile, "config", "f", "", "Gate configuration file to read the secret from")
	inspectCmd.Flags().BoolVarP(&inspectRaw, "raw", "r", false, "Dump the decoded claims without verification")
}
