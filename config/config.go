package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Metrics struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	AIEngine struct {
		BaseURL         string        `mapstructure:"baseURL"`
		Timeout         time.Duration `mapstructure:"timeout"`
		MaxRetries      uint64        `mapstructure:"maxRetries"`
		InitialInterval time.Duration `mapstructure:"initialInterval"`
		MaxInterval     time.Duration `mapstructure:"maxInterval"`
	} `mapstructure:"aiEngine"`
	Timetable struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"timetable"`
	LLM struct {
		APIKey string `mapstructure:"apiKey"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"llm"`
	JWT struct {
		SecretKey string `mapstructure:"secretKey"`
	} `mapstructure:"jwt"`
	Session struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"session"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets and deploy-specific values come from the environment
	v.AutomaticEnv()
	_ = v.BindEnv("repositories.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("aiEngine.baseURL", "AI_ENGINE_URL")
	_ = v.BindEnv("timetable.url", "TIMETABLE_API_URL")
	_ = v.BindEnv("llm.apiKey", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.model", "OPENAI_MODEL")
	_ = v.BindEnv("jwt.secretKey", "JWT_SECRET_KEY")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
