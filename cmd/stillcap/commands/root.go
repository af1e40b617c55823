package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stillcap/stillcap/internal/config"
	"github.com/stillcap/stillcap/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "stillcap",
		Short: "stillcap - Temporally consistent X11 screen capture",
		Long: `stillcap freezes the X11 screen at a single instant: the desktop, every
window as pure content unobscured by overlapping windows, and the native
cursor image, all captured together so that nothing moves while the user
picks what they want.

Features:
  • Enumerate windows in true stacking order
  • Capture window content via the Composite extension
  • Native cursor extraction with correct alpha
  • Frozen snapshots served over a REST API
  • Persistent configuration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/stillcap/config.yaml)")
	rootCmd.PersistentFlags().String("display", "", "X display to connect to (default is $DISPLAY)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8264)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("display", rootCmd.PersistentFlags().Lookup("display"))
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// initRuntime loads the configuration, applies flag overrides and
// initializes logging. Every subcommand that touches the display starts
// here.
func initRuntime() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.Get()

	// Flag overrides beat the file but are never persisted.
	if viper.IsSet("display") && viper.GetString("display") != "" {
		cfg.Display = viper.GetString("display")
	}
	if viper.IsSet("server_port") && viper.GetInt("server_port") > 0 {
		cfg.ServerPort = viper.GetInt("server_port")
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.LogLevel = viper.GetString("log_level")
	}

	logger.Init(cfg.LogLevel, false)
	return configMgr, cfg, nil
}
