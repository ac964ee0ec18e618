package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/meigma/shipper/cmd/shipper/cli/config"
)

// settableKeys are the scalar keys accepted by `config set`.
var settableKeys = []string{
	"project",
	"platform",
	"device",
	"source",
	"output",
	"format",
	"progress",
	"timeout",
	"github.repository",
	"github.api_url",
	"github.max_attempts",
	"github.retry_delay",
	"metrics.pushgateway",
	"metrics.job",
}

// redactedKeys are masked by `config show`.
var redactedKeys = map[string]bool{
	"secret":       true,
	"github.token": true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage shipper configuration",
	Long: `View and modify shipper configuration.

Without arguments, displays the current effective configuration with
secrets masked. Use subcommands to view the config path, initialize a
config file, or set configuration values.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long: `Create a default configuration file at the XDG config path.

The file will be created at ~/.config/shipper/config.yaml (or
$XDG_CONFIG_HOME/shipper/config.yaml if set) and lists the default
provider table so it can be edited in place.`,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath, err := config.Path()
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(configPath); statErr == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	if mkdirErr := os.MkdirAll(filepath.Dir(configPath), 0o750); mkdirErr != nil {
		return mkdirErr
	}

	// secrets are omitted, they belong in the environment
	defaultConfig := map[string]any{
		"format":   "tar.zst",
		"progress": "auto",
		"timeout":  "6m",
		"github": map[string]any{
			"max_attempts": 5,
			"retry_delay":  "1s",
		},
		"providers": config.DefaultProviders(),
	}
	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if writeErr := os.WriteFile(configPath, data, 0o600); writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configPath)
	return nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Examples:
  shipper config set project waifu2x
  shipper config set metrics.pushgateway http://pushgateway:9091`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeConfigSet,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := strings.ToLower(args[0]), args[1]
		if redactedKeys[key] {
			return fmt.Errorf("refusing to store %s in the config file, use the environment instead", key)
		}

		var parsedValue any
		switch value {
		case "true":
			parsedValue = true
		case "false":
			parsedValue = false
		default:
			parsedValue = value
		}

		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			var err error
			if configPath, err = config.Path(); err != nil {
				return err
			}
		}
		if err := writeConfigValue(configPath, key, parsedValue); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s = %v\n", key, parsedValue)
		return nil
	},
}

// writeConfigValue sets key in the file at path. Only the file's own
// contents are rewritten, never values that came from the environment.
func writeConfigValue(path, key string, value any) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	file.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settings := viper.AllSettings()
	redact(settings, "")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// redact masks non-empty values of redactedKeys in a nested settings map.
func redact(settings map[string]any, prefix string) {
	for k, v := range settings {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			redact(val, key)
		case string:
			if redactedKeys[key] && val != "" {
				settings[k] = "********"
			}
		}
	}
}
