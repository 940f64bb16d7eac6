package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// defaultSessionQuery is searched once when an edit session starts.
const defaultSessionQuery = "yml"

func newEditCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "edit <project-key>",
		Short: "Load a project's stored compose document and environment for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, token, err := authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			yellow := color.New(color.FgYellow).SprintFunc()
			if _, ok, err := client.ComposeRegistry(ctx); err == nil && ok {
				items, err := client.Search(ctx, defaultSessionQuery)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s %v\n", yellow("search error:"), err)
				} else {
					printTemplates(items)
				}
			}

			cfg, err := client.LoadProject(ctx, token, args[0])
			if err != nil {
				return err
			}
			var files []stagedFile
			if cfg.YML != nil {
				files = append(files, stagedFile{name: "docker-compose.yml", data: []byte(*cfg.YML), perm: 0o644})
			}
			if cfg.Env != nil {
				files = append(files, stagedFile{name: ".env", data: []byte(*cfg.Env), perm: 0o600})
			}
			if err := writeSession(outDir, files); err != nil {
				return err
			}

			if cfg.YML != nil {
				fmt.Printf("compose document written to %s\n", filepath.Join(outDir, "docker-compose.yml"))
				if len(cfg.Services) > 0 {
					fmt.Printf("  Services: %v\n", cfg.Services)
				}
			} else {
				fmt.Println(yellow("no compose document stored"))
			}
			if cfg.Env != nil {
				fmt.Printf("environment written to %s\n", filepath.Join(outDir, ".env"))
			} else {
				fmt.Println(yellow("no environment stored"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the loaded files to")
	return cmd
}
