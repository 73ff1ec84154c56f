package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/foundry"
)

var agentName string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage Azure AI Foundry agents",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a Foundry agent wired to the search index",
	Long: `Create provisions an agent in the Azure AI Foundry project with the
Azure AI Search tool attached to the configured index. Requires
AZURE_AI_PROJECT_ENDPOINT and AZURE_AI_SEARCH_CONNECTION_ID, and signs
requests with the ambient Azure credential (az login, managed identity
or service principal).`,
	Args: cobra.NoArgs,
	RunE: runAgentCreate,
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentName, "name", "", "agent name (default: service default)")
	agentCmd.AddCommand(agentCreateCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	client, err := a.Foundry()
	if err != nil {
		return err
	}

	agent, err := client.CreateAgent(ctx, foundry.AgentParams{
		Name:               agentName,
		Model:              a.Config.ChatDeployment,
		SearchConnectionID: a.Config.SearchConnectionID,
		SearchIndex:        a.Config.SearchIndex,
		TopK:               a.Config.SearchTopK,
	})
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	fmt.Fprintln(os.Stdout, "Agent created:")
	fmt.Fprintf(os.Stdout, "  ID:    %s\n", agent.ID)
	fmt.Fprintf(os.Stdout, "  Name:  %s\n", agent.Name)
	fmt.Fprintf(os.Stdout, "  Model: %s\n", agent.Model)
	return nil
}
