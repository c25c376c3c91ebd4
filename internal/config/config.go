package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	APIPort       int           `mapstructure:"api_port"`
	SelfID        string        `mapstructure:"self_id"`
	SignalingURL  string        `mapstructure:"signaling_url"`
	PushURL       string        `mapstructure:"push_url"`
	SessionCookie string        `mapstructure:"session_cookie"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	StunURLs      []string      `mapstructure:"stun_urls"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("api_port", 8420)
	v.SetDefault("signaling_url", "http://localhost:3001/api")
	v.SetDefault("push_url", "ws://localhost:3001/ws")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
