package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	StaticPath       string        `mapstructure:"static_path"`
	Secret           string        `mapstructure:"secret"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	PeerGracePeriod  time.Duration `mapstructure:"peer_grace_period"`
	RoomCodeAttempts int           `mapstructure:"room_code_attempts"`
	JoinRateLimit    int           `mapstructure:"join_rate_limit"`
	JoinRateWindow   time.Duration `mapstructure:"join_rate_window"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	Redis            RedisConfig   `mapstructure:"redis"`
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
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("peer_grace_period", "10s")
	v.SetDefault("room_code_attempts", 10)
	v.SetDefault("join_rate_limit", 10)
	v.SetDefault("join_rate_window", "1m")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
