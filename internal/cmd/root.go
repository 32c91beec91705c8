package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viper-hass/viper-hass/internal/config"
)

// version is injected at build time via ldflags
var version = "dev"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "viper-hass",
	Short:   "SmartStart to Home Assistant bridge",
	Long:    "Polls the Viper SmartStart cloud for vehicle status and publishes it to Home Assistant over MQTT.",
	Version: version,
	RunE:    runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile,
		"config", "c",
		"",
		"Config file (default \"viper-hass.yaml\" in ., $HOME or /etc)",
	)

	rootCmd.Flags().String("mqtt-url", "", "MQTT URL (ws://, wss://, mqtt:// or mqtts://)")
	rootCmd.Flags().Bool("mqtt-insecure-tls", false, "Skip MQTT broker certificate verification")
	rootCmd.Flags().String("discovery-prefix", "", "Home Assistant discovery prefix")
	rootCmd.Flags().String("http-addr", "", "HTTP listen address (empty = disabled)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Verbose logging")

	bind(rootCmd, "mqtt-url", "mqtt_url")
	bind(rootCmd, "mqtt-insecure-tls", "mqtt_insecure_tls")
	bind(rootCmd, "discovery-prefix", "discovery_prefix")
	bind(rootCmd, "http-addr", "http_addr")
	bind(rootCmd, "verbose", "verbose")
}

func bind(cmd *cobra.Command, flag, key string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc")
		viper.SetConfigName("viper-hass")
	}

	viper.SetEnvPrefix("VIPER_HASS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		cfgFile = viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		fmt.Println(err)
		os.Exit(1)
	} else {
		cfgFile = ""
	}
}

// loadConfig merges file, environment and flag values on top of the
// defaults and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.GetDefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
