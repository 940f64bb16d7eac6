package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apiclient "github.com/splax/composedeck/pkg/api/client"
	"github.com/splax/composedeck/pkg/naming"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the compose registry for templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := anonymousClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			items, err := client.Search(ctx, args[0])
			if err != nil {
				return fmt.Errorf("search error: %w", err)
			}
			printTemplates(items)
			return nil
		},
	}
}

func newTemplateCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "template <id>",
		Short: "Fetch a compose document from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := anonymousClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			content, err := client.Template(ctx, args[0])
			if err != nil {
				return err
			}
			if outFile == "" {
				fmt.Print(content)
				return nil
			}
			return os.WriteFile(outFile, []byte(content), 0o644)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the document to a file instead of stdout")
	return cmd
}

func newPortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "port <hostname>",
		Short: "Print the port allocated to a hostname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(naming.AllocatePort(args[0]))
			return nil
		},
	}
}

func newWorkspaceCmd() *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "workspace <owner>",
		Short: "Print the workspace hostname and port of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := naming.WorkspaceHost(args[0], site)
			port := naming.AllocatePort(host)
			fmt.Printf("%s\n%s=%d\n", host, naming.PortVariable, port)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "rhlab.io", "Site the workspace is published under")
	return cmd
}

func printTemplates(items []apiclient.TemplateItem) {
	if len(items) == 0 {
		fmt.Println("No templates found")
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, item := range items {
		fmt.Printf("%s  %s\n", cyan(item.ID), item.Name)
	}
}
