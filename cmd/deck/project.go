package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apiclient "github.com/splax/composedeck/pkg/api/client"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, update, list and remove projects",
	}
	cmd.AddCommand(newProvisionCmd("create"))
	cmd.AddCommand(newProvisionCmd("update"))
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectRemoveCmd())
	return cmd
}

func newProvisionCmd(use string) *cobra.Command {
	var (
		name     string
		repo     string
		webhook  string
		envFile  string
		ymlFile  string
		envValue string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: "Submit a project " + use,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := apiclient.ProvisionInput{Name: name, RepoName: repo, WebhookURL: webhook, Env: envValue}
			if envFile != "" {
				data, err := os.ReadFile(envFile)
				if err != nil {
					return fmt.Errorf("read env file: %w", err)
				}
				input.Env = string(data)
			}
			if ymlFile != "" {
				data, err := os.ReadFile(ymlFile)
				if err != nil {
					return fmt.Errorf("read compose file: %w", err)
				}
				content := string(data)
				input.YML = &content
			}

			client, token, err := authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var result apiclient.ProvisionResult
			if use == "update" {
				result, err = client.UpdateProject(ctx, token, input)
			} else {
				result, err = client.CreateProject(ctx, token, input)
			}
			if err != nil {
				// the submitted files are untouched so the command can be rerun as is
				return err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %s, path: %s\n", green(use+"d project"), result.Name, result.Path)
			fmt.Printf("  Hostname: %s\n", result.Hostname)
			fmt.Printf("  Port:     %d\n", result.Port)
			if result.WebhookEndpoint != "" {
				fmt.Printf("  Webhook:  %s\n", result.WebhookEndpoint)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (your username is appended)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository reference")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Webhook URL")
	cmd.Flags().StringVar(&envValue, "env", "", "Extra environment lines")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Read extra environment lines from a file")
	cmd.Flags().StringVar(&ymlFile, "compose-file", "", "Compose document to store with the project")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, token, err := authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			projects, err := client.ListProjects(ctx, token)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("No projects found")
				return nil
			}
			cyan := color.New(color.FgCyan).SprintFunc()
			for _, p := range projects {
				fmt.Printf("%s\n", cyan(p.Name))
				fmt.Printf("  Repo:     %s\n", p.RepoName)
				fmt.Printf("  Hostname: %s\n", p.Hostname)
				fmt.Printf("  Port:     %d\n", p.Port)
				fmt.Printf("  Path:     %s\n", p.Path)
				fmt.Printf("  Updated:  %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Println()
			}
			return nil
		},
	}
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a project and its DNS record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, token, err := authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := client.RemoveProject(ctx, token, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Printf("removed project %s\n", args[0])
			return nil
		},
	}
}
