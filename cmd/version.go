package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		printVersion(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "ragchat %s\n", AppVersion)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  OpenAI endpoint: %s\n", orUnset(cfg.OpenAIEndpoint))
	fmt.Fprintf(w, "  Chat deployment: %s\n", orUnset(cfg.ChatDeployment))
	fmt.Fprintf(w, "  OpenAI API key:  %s\n", maskKey(cfg.OpenAIAPIKey))
	fmt.Fprintf(w, "  Search endpoint: %s\n", orUnset(cfg.SearchEndpoint))
	fmt.Fprintf(w, "  Search index:    %s\n", orUnset(cfg.SearchIndex))
	fmt.Fprintf(w, "  Search API key:  %s\n", maskKey(cfg.SearchAPIKey))

	if cfg.OpenAIEndpoint == "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Hint: set AZURE_OPENAI_ENDPOINT to enable chat")
		fmt.Fprintln(w, "  export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com")
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskKey shows just enough of a secret to recognize it.
func maskKey(key string) string {
	if key == "" {
		return "(not set, using Azure credential)"
	}
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
