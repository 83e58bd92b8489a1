package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Learning LearningConfig
	Ranking  RankingConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LearningConfig struct {
	// MinTrainingCases is the smallest corpus the index and the
	// classifier will fit on. Below it both stay untrained.
	MinTrainingCases int
	// RetrainThreshold is the number of feedback events that forces a
	// full retraining pass.
	RetrainThreshold int
	// DisagreementPenalty scales down ensemble confidence when the two
	// classifiers vote for different labels.
	DisagreementPenalty float64
	SnapshotPath        string
	// RetrainSchedule is an optional 5-field cron expression for a
	// periodic retraining sweep. Empty disables the sweep.
	RetrainSchedule string
}

type RankingConfig struct {
	// Final rank key: w1*similarity + w2*effectiveness - w3*staleness.
	SimilarityWeight    float64 // w1
	EffectivenessWeight float64 // w2
	StalenessWeight     float64 // w3
	// StalenessHorizonDays is the case age at which the staleness
	// penalty saturates.
	StalenessHorizonDays int
	MaxSuggestions       int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/kb-advisor")

	viper.SetEnvPrefix("KB_ADVISOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/kbadvisor.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 30)

	viper.SetDefault("learning.minTrainingCases", 5)
	viper.SetDefault("learning.retrainThreshold", 5)
	viper.SetDefault("learning.disagreementPenalty", 0.5)
	viper.SetDefault("learning.snapshotPath", "./data/model_snapshot.json")
	viper.SetDefault("learning.retrainSchedule", "")

	viper.SetDefault("ranking.similarityWeight", 0.6)
	viper.SetDefault("ranking.effectivenessWeight", 0.3)
	viper.SetDefault("ranking.stalenessWeight", 0.1)
	viper.SetDefault("ranking.stalenessHorizonDays", 365)
	viper.SetDefault("ranking.maxSuggestions", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
