package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/gmail-send-mcp/internal/logging"
	"github.com/teemow/gmail-send-mcp/internal/mail"
	"github.com/teemow/gmail-send-mcp/internal/server"
	"github.com/teemow/gmail-send-mcp/internal/tools/mail_tools"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print documentation for the MCP tools as markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := registeredTools(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), generateToolsMarkdown(list))
			return nil
		},
	}
}

// registeredTools builds a server context with inert collaborators and
// returns what it advertises on tools/list.
func registeredTools(ctx context.Context) ([]mcp.Tool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	sc, err := server.NewServerContext(ctx, server.Config{
		Version:     version,
		Credentials: &mail.StaticPasswordProvider{},
		Sender: mail.SenderFunc(func(context.Context, *mail.Message, mail.Credential) (string, error) {
			return "", fmt.Errorf("delivery is not available while documenting tools")
		}),
		Logger: logging.NewLogger(io.Discard, false),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = sc.Shutdown() }()

	if err := mail_tools.RegisterTools(sc); err != nil {
		return nil, err
	}
	return sc.Registry().List(), nil
}

func generateToolsMarkdown(list []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools\n\n")
	sb.WriteString(fmt.Sprintf("gmail-send-mcp exposes %d tool(s).\n\n", len(list)))

	for _, tool := range list {
		sb.WriteString(generateToolMarkdown(tool))
	}
	return sb.String()
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## `%s`\n\n", tool.Name))
	if tool.Description != "" {
		sb.WriteString(tool.Description + "\n\n")
	}

	if len(tool.InputSchema.Properties) == 0 {
		sb.WriteString("This tool takes no arguments.\n\n")
		return sb.String()
	}

	names := make([]string, 0, len(tool.InputSchema.Properties))
	for name := range tool.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("| Argument | Type | Required | Description |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, name := range names {
		prop, _ := tool.InputSchema.Properties[name].(map[string]any)
		required := "no"
		if contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		description, _ := prop["description"].(string)
		sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n", name, getPropertyType(prop), required, description))
	}
	sb.WriteString("\n")
	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
