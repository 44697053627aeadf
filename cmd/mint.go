package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quernstone/portcullis/internal/token"
)

var (
	mintConfigFile string
	mintSecret     string
	mintSubject    string
	mintTTL        time.Duration
)

// mintCmd represents the mint command
var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a signed session token for a principal",
	Long: `Mint signs a session token the gate will accept. Intended for testing
and for handing out tokens in setups without a separate issuer.`,
	Example: `  # mint with an explicit secret
  portcullis mint --subject u1 --ttl 1h --secret hunter2

  # mint with the secret from a gate config file
  portcullis mint --subject u1 -f portcullis.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := signingSecret(mintSecret, mintConfigFile)
		if err != nil {
			return err
		}

		minted, err := token.Mint(secret, mintSubject, mintTTL)
		if err != nil {
			return fmt.Errorf("minting session token: %w", err)
		}

		fmt.Println(bold("\n── Session Token ──"))
		printKV("Subject", minted.Subject)
		printKV("Token ID", minted.TokenID)
		printKV("Expires", color.GreenString(minted.ExpiresAt.Local().Format(time.RFC1123)))
		printKV("Fingerprint", token.Fingerprint(minted.Value))
		fmt.Println()
		fmt.Println(minted.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mintCmd)

	mintCmd.Flags().StringVarP(&mintSubject, "subject", "s", "", "Subject (principal ID) to mint for")
	mintCmd.Flags().DurationVar(&mintTTL, "ttl", time.Hour, "Token lifetime")
	mintCmd.Flags().StringVar(&mintSecret, "secret", "", "Signing secret (overrides config and environment)")
	mintCmd.Flags().StringVarP(&mintConfigFile, "config", "f", "", "Gate configuration file to read the secret from")

	_ = mintCmd.MarkFlagRequired("subject")
}
