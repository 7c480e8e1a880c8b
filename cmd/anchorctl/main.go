package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xanchor-io/xanchor/internal/anchor/handler"
	"github.com/xanchor-io/xanchor/pkg/client"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serviceURL  string
	bearerToken string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anchorctl",
	Short: "Content anchoring CLI",
	Long: `anchorctl anchors file fingerprints on the ledger through a running
anchord service and verifies whether a file was anchored before.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.anchorctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serviceURL == "" {
			serviceURL = viper.GetString("service_url")
		}
		if serviceURL == "" {
			serviceURL = "http://localhost:3000"
		}
		if bearerToken == "" {
			bearerToken = viper.GetString("token")
		}
	},
}

func newClient() (*client.Client, error) {
	var opts []client.Option
	if bearerToken != "" {
		opts = append(opts, client.WithBearerToken(bearerToken))
	}
	return client.New(serviceURL, opts...)
}

var anchorCmd = &cobra.Command{
	Use:   "anchor <file>",
	Short: "Anchor a file's fingerprint on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		res, err := c.AnchorPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("fingerprint:  %s\n", res.Hash)
		fmt.Printf("result:       %s\n", res.TransactionResult)
		fmt.Printf("message:      %s\n", res.ResultMessage)
		if res.TxHash != "" {
			fmt.Printf("transaction:  %s\n", res.TxHash)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check whether a file was previously anchored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		res, err := c.VerifyPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		switch res.Status {
		case "success":
			fmt.Printf("anchored at %s\n", res.Timestamp)
		case "not_found":
			fmt.Println("not anchored (no match in the scanned ledger state)")
		default:
			fmt.Printf("%s: %s\n", res.Status, res.Message)
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the anchor audit log overview",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		overview, err := c.Log(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("entries: %d\nroot:    %s\n", overview.Entries, overview.Root)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a bearer token for the anchoring API",
	Long: `Mints an HS256 token signed with the service auth secret. The secret is
read from the AUTH_SECRET environment variable; run this where the
secret is available, not on client machines.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("AUTH_SECRET")
		if secret == "" {
			return fmt.Errorf("AUTH_SECRET is not set")
		}

		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			return err
		}

		token, err := handler.IssueToken(secret, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the anchorctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "", "anchord base URL (default http://localhost:3000)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "bearer token for the anchoring API")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.anchorctl/config.yaml)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(anchorCmd, verifyCmd, logCmd, tokenCmd, versionCmd)
}
