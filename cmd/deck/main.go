package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apiclient "github.com/splax/composedeck/pkg/api/client"
)

const defaultAPIBase = "http://localhost:5001"

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Username    string `json:"username,omitempty"`
}

var buildVersion = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "deck",
		Short:         "Provision compose projects on a composedeck server",
		Version:       strings.TrimSpace(buildVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newLoginCmd("login"))
	rootCmd.AddCommand(newLoginCmd("signup"))
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newTemplateCmd())
	rootCmd.AddCommand(newPortCmd())
	rootCmd.AddCommand(newWorkspaceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// authedClient returns a client and the stored access token.
func authedClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'deck login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func anonymousClient() (*apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return apiclient.New(cfg.APIBaseURL)
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "composedeck", "config.json"), nil
}
