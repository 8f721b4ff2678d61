package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level daemon configuration
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Privacy   PrivacyConfig   `mapstructure:"privacy"`
	Sharing   SharingConfig   `mapstructure:"sharing"`
	Federated FederatedConfig `mapstructure:"federated"`
	Retention RetentionConfig `mapstructure:"retention"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig configures the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// PrivacyConfig configures the differential privacy budget
type PrivacyConfig struct {
	TotalEpsilon float64 `mapstructure:"total_epsilon"`
	Delta        float64 `mapstructure:"delta"`
}

// SharingConfig configures the secret sharing and aggregation layer
type SharingConfig struct {
	NumParties       int           `mapstructure:"num_parties"`
	Threshold        int           `mapstructure:"threshold"`
	CollectionWindow time.Duration `mapstructure:"collection_window"`
	ScaleDigits      int           `mapstructure:"scale_digits"`
}

// FederatedConfig configures the training coordinator
type FederatedConfig struct {
	Rounds          int           `mapstructure:"rounds"`
	SelectionSize   int           `mapstructure:"selection_size"`
	MaxRoundRetries int           `mapstructure:"max_round_retries"`
	LocalEpochs     int           `mapstructure:"local_epochs"`
	LearningRate    float64       `mapstructure:"learning_rate"`
	ClientTimeout   time.Duration `mapstructure:"client_timeout"`
	EarlyStopDelta  float64       `mapstructure:"early_stop_delta"`
	EarlyStopRounds int           `mapstructure:"early_stop_rounds"`
}

// RetentionConfig configures the data lifecycle manager
type RetentionConfig struct {
	SweepInterval         time.Duration  `mapstructure:"sweep_interval"`
	MaxDestructionRetries int            `mapstructure:"max_destruction_retries"`
	RetryBackoff          time.Duration  `mapstructure:"retry_backoff"`
	Policies              []PolicyConfig `mapstructure:"policies"`
}

// PolicyConfig is one row of the retention policy table
type PolicyConfig struct {
	Classification    string        `mapstructure:"classification"`
	RetentionPeriod   time.Duration `mapstructure:"retention_period"`
	DestructionMethod string        `mapstructure:"destruction_method"`
	BackupRetention   time.Duration `mapstructure:"backup_retention"`
}

// RedisConfig configures the optional Redis-backed record store
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load reads the daemon configuration from a file, environment variables
// (prefix AEROFUSION), and built-in defaults, in that order of precedence.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/privacyd")
		viper.SetConfigName("privacyd")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AEROFUSION")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")

	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.read_timeout", 30*time.Second)
	viper.SetDefault("http.write_timeout", 30*time.Second)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "aerofusion_privacy")

	viper.SetDefault("privacy.total_epsilon", 10.0)
	viper.SetDefault("privacy.delta", 1e-5)

	viper.SetDefault("sharing.num_parties", 5)
	viper.SetDefault("sharing.threshold", 3)
	viper.SetDefault("sharing.collection_window", 30*time.Second)
	viper.SetDefault("sharing.scale_digits", 6)

	viper.SetDefault("federated.rounds", 10)
	viper.SetDefault("federated.selection_size", 3)
	viper.SetDefault("federated.max_round_retries", 3)
	viper.SetDefault("federated.local_epochs", 5)
	viper.SetDefault("federated.learning_rate", 0.01)
	viper.SetDefault("federated.client_timeout", 60*time.Second)
	viper.SetDefault("federated.early_stop_delta", 1e-4)
	viper.SetDefault("federated.early_stop_rounds", 3)

	viper.SetDefault("retention.sweep_interval", 24*time.Hour)
	viper.SetDefault("retention.max_destruction_retries", 3)
	viper.SetDefault("retention.retry_backoff", time.Second)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.key_prefix", "privacyd")
}

func validate(c *Config) error {
	if c.Privacy.TotalEpsilon <= 0 {
		return fmt.Errorf("privacy.total_epsilon must be positive")
	}
	if c.Privacy.Delta <= 0 || c.Privacy.Delta >= 1 {
		return fmt.Errorf("privacy.delta must be in (0, 1)")
	}
	if c.Sharing.Threshold < 2 {
		return fmt.Errorf("sharing.threshold must be at least 2")
	}
	if c.Sharing.Threshold > c.Sharing.NumParties {
		return fmt.Errorf("sharing.threshold cannot exceed sharing.num_parties")
	}
	if c.Federated.SelectionSize <= 0 {
		return fmt.Errorf("federated.selection_size must be positive")
	}
	if c.Federated.ClientTimeout <= 0 {
		return fmt.Errorf("federated.client_timeout must be positive")
	}
	return nil
}
