package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hire-matcher/internal/api"
	"github.com/spigell/hire-matcher/internal/pipeline"
	"github.com/spigell/hire-matcher/internal/store"
)

const (
	app       = "hire-matcher"
	envPrefix = "HIRE_MATCHER"
)

type Config struct {
	Database  store.Config     `mapstructure:"database"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Pipeline  pipeline.Config  `mapstructure:"pipeline"`
	Server    api.Config       `mapstructure:"server"`
}

type EmbeddingConfig struct {
	// Provider is gemini or hashing.
	Provider   string        `mapstructure:"provider"`
	Dimensions int           `mapstructure:"dimensions"`
	Gemini     *GeminiConfig `mapstructure:"gemini"`
	Cache      *CacheConfig  `mapstructure:"cache"`
}

type GeminiConfig struct {
	APIKey            string  `mapstructure:"api-key"`
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model"`
	MaxRetries        int     `mapstructure:"max-retries"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis-url"`
	MaxEntries int           `mapstructure:"max-entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "hire-matcher scores resumes against jobs and drives candidates through screening",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hire-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

// setDefaults registers every key so that environment variables can override it.
func setDefaults() {
	viper.SetDefault("database.driver", store.DriverSQLite)
	viper.SetDefault("database.dsn", app+".db")
	viper.SetDefault("database.dsn-file", "")
	viper.SetDefault("database.max-open-conns", 10)
	viper.SetDefault("database.conn-max-lifetime", "30m")

	viper.SetDefault("embedding.provider", "hashing")
	viper.SetDefault("embedding.dimensions", 256)
	viper.SetDefault("embedding.gemini.api-key", "")
	viper.SetDefault("embedding.gemini.api-key-file", "")
	viper.SetDefault("embedding.gemini.model", "text-embedding-004")
	viper.SetDefault("embedding.gemini.max-retries", 3)
	viper.SetDefault("embedding.gemini.requests-per-second", 5)
	viper.SetDefault("embedding.cache.redis-url", "")
	viper.SetDefault("embedding.cache.max-entries", 1000)
	viper.SetDefault("embedding.cache.ttl", "24h")

	viper.SetDefault("pipeline.strict-transitions", false)
	viper.SetDefault("pipeline.extract-timeout", "10s")
	viper.SetDefault("pipeline.score-timeout", "30s")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.redis-url", "")
	viper.SetDefault("server.apply-limit", 5)
	viper.SetDefault("server.apply-window", "1h")
	viper.SetDefault("server.max-upload-bytes", 10<<20)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config file is fine, defaults and env apply.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Embedding.Gemini == nil {
		config.Embedding.Gemini = &GeminiConfig{}
	}
	if config.Embedding.Cache == nil {
		config.Embedding.Cache = &CacheConfig{}
	}

	return config, nil
}
