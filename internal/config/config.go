// Package config содержит логику чтения конфигурации платформы курсов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DefaultRazorpayAddress — адрес REST API платёжного шлюза Razorpay.
const DefaultRazorpayAddress = "https://api.razorpay.com/v1"

// Config содержит параметры конфигурации платформы курсов.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	RedisAddress    string `env:"REDIS_ADDRESS"`
	AuthSecret      string `env:"AUTH_SECRET"`
	RazorpayAddress string `env:"RAZORPAY_ADDRESS"`
	RazorpayKeyID   string `env:"RAZORPAY_KEY_ID"`
	RazorpaySecret  string `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret   string `env:"RAZORPAY_WEBHOOK_SECRET"`
	// Sandbox включает тестовый режим шлюза: несовпадение подписи платежа
	// не считается ошибкой. Задаётся только явным флагом развёртывания.
	Sandbox bool `env:"RAZORPAY_SANDBOX"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for the course cache")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.RazorpayAddress == "" {
		cfg.RazorpayAddress = DefaultRazorpayAddress
	}

	return cfg, nil
}
