package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/splax/composedeck/pkg/api/client"
)

// newLoginCmd builds either "login" or "signup"; both store the issued token.
func newLoginCmd(use string) *cobra.Command {
	var (
		username string
		password string
		apiBase  string
	)

	short := "Log in and store an access token"
	if use == "signup" {
		short = "Create an account and store an access token"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--username is required")
			}
			secret := password
			if strings.TrimSpace(secret) == "" {
				fmt.Print("Password: ")
				bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Print("\n")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				secret = string(bytes)
			}

			cfg, _ := loadConfig()
			if strings.TrimSpace(apiBase) != "" {
				cfg.APIBaseURL = apiBase
			} else if cfg.APIBaseURL == "" {
				cfg.APIBaseURL = defaultAPIBase
			}
			client, err := apiclient.New(cfg.APIBaseURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			var resp apiclient.LoginResponse
			if use == "signup" {
				resp, err = client.Signup(ctx, username, secret)
			} else {
				resp, err = client.Login(ctx, username, secret)
			}
			if err != nil {
				return err
			}
			cfg.AccessToken = resp.Tokens.AccessToken
			cfg.Username = resp.User.Username
			if err := saveConfig(cfg); err != nil {
				return err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s as %s\n", green(use+" successful"), resp.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVar(&password, "password", "", "Password (supply to avoid prompt)")
	cmd.Flags().StringVar(&apiBase, "api", "", "API base URL (default "+defaultAPIBase+")")

	return cmd
}
