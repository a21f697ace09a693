package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Engine    EngineConfig
	Retention RetentionConfig
	Queue     QueueConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type StorageConfig struct {
	UploadsDir string
	OutputsDir string
}

type UploadConfig struct {
	MaxSizeMB int64
}

type EngineConfig struct {
	Python         string
	TimeoutMinutes int
}

type RetentionConfig struct {
	TTLMinutes           int
	SweepIntervalMinutes int
}

type QueueConfig struct {
	// Driver selects background execution: "local" runs the pipeline on a
	// goroutine, "redis" enqueues through asynq.
	Driver string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("storage.uploads_dir", "uploads")
	viper.SetDefault("storage.outputs_dir", "outputs")
	viper.SetDefault("upload.max_size_mb", 200)
	viper.SetDefault("engine.python", "python3")
	viper.SetDefault("engine.timeout_minutes", 0)
	viper.SetDefault("retention.ttl_minutes", 60)
	viper.SetDefault("retention.sweep_interval_minutes", 10)
	viper.SetDefault("queue.driver", "local")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Storage: StorageConfig{
			UploadsDir: viper.GetString("storage.uploads_dir"),
			OutputsDir: viper.GetString("storage.outputs_dir"),
		},
		Upload: UploadConfig{
			MaxSizeMB: viper.GetInt64("upload.max_size_mb"),
		},
		Engine: EngineConfig{
			Python:         viper.GetString("engine.python"),
			TimeoutMinutes: viper.GetInt("engine.timeout_minutes"),
		},
		Retention: RetentionConfig{
			TTLMinutes:           viper.GetInt("retention.ttl_minutes"),
			SweepIntervalMinutes: viper.GetInt("retention.sweep_interval_minutes"),
		},
		Queue: QueueConfig{
			Driver: viper.GetString("queue.driver"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}
