package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stillcap/stillcap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stillcap configuration",
	Long:  `View and manage stillcap configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current stillcap configuration.`,
	Example: `  # Show configuration as YAML (default)
  stillcap config show

  # Show configuration as JSON
  stillcap config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value and persist it.`,
	Example: `  # Set server port
  stillcap config set server_port 9090

  # Set the minimum capturable window size
  stillcap config set capture.min_window_size 150

  # Leave the cursor out of captures
  stillcap config set capture.include_cursor false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get server port
  stillcap config get server_port

  # Get the capture worker count
  stillcap config get capture.workers`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	if err := setConfigKey(cfg, key, value); err != nil {
		return err
	}

	if err := configMgr.Update(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigKey(configMgr.Get(), key)
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(configMgr.Path())
	return nil
}

// setConfigKey applies one typed key update. Unknown keys are an error
// so typos never silently write a dead setting.
func setConfigKey(cfg *config.Config, key, value string) error {
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", value)
		}
		return n, nil
	}

	switch key {
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		cfg.LogLevel = value
	case "server_port":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.ServerPort = n
	case "display":
		cfg.Display = value
	case "capture.min_window_size":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Capture.MinWindowSize = n
	case "capture.include_cursor":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		cfg.Capture.IncludeCursor = b
	case "capture.workers":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Capture.Workers = n
	case "capture.window_timeout_ms":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Capture.WindowTimeoutMS = n
	case "capture.session_timeout_ms":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Capture.SessionTimeoutMS = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func getConfigKey(cfg *config.Config, key string) (string, error) {
	switch key {
	case "log_level":
		return cfg.LogLevel, nil
	case "server_port":
		return strconv.Itoa(cfg.ServerPort), nil
	case "display":
		return cfg.Display, nil
	case "capture.min_window_size":
		return strconv.Itoa(cfg.Capture.MinWindowSize), nil
	case "capture.include_cursor":
		return strconv.FormatBool(cfg.Capture.IncludeCursor), nil
	case "capture.workers":
		return strconv.Itoa(cfg.Capture.Workers), nil
	case "capture.window_timeout_ms":
		return strconv.Itoa(cfg.Capture.WindowTimeoutMS), nil
	case "capture.session_timeout_ms":
		return strconv.Itoa(cfg.Capture.SessionTimeoutMS), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
