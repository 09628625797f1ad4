package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tarlanskakov/patenr-ali-sh/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL  string
	cfgFile    string
	adminToken string
	outputJSON bool
	timeout    time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pchain",
	Short: "PatentChain CLI",
	Long: `pchain is the command-line interface for a PatentChain server.

It submits patents for notarization, browses the block explorer, verifies
the ledger, exports records and manages ledger snapshots.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.pchain")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("pchain")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if adminToken == "" {
			adminToken = viper.GetString("admin_token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.pchain/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "PatentChain server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "admin Bearer token (or PCHAIN_ADMIN_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON instead of tables")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall request timeout")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(patentCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client from the global flags.
func newClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(timeout)}
	if adminToken != "" {
		opts = append(opts, client.WithBearerToken(adminToken))
	}
	return client.New(serverURL, opts...)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func renderTable(rows [][]string) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// short trims a hash for table display.
func short(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "…"
}

// ── login ────────────────────────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange the admin secret for a token",
	Long: `login exchanges the admin secret for a Bearer token and prints it.

The secret is read from PCHAIN_ADMIN_SECRET. Store the token as admin_token in
~/.pchain/config.yaml or pass it with --token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("PCHAIN_ADMIN_SECRET")
		if secret == "" {
			return fmt.Errorf("PCHAIN_ADMIN_SECRET is not set")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		tok, err := c.Login(ctx, secret)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(tok)
		}
		pterm.Success.Printfln("Token expires %s", tok.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Println(tok.Token)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pchain %s\n", version)
	},
}
