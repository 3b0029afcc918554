package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	App struct {
		PublicURL string `yaml:"public_url"`
	} `yaml:"app"`

	Database struct {
		Driver string `yaml:"driver"` // postgres (default) or mysql
		DSN    string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // access token lifetime in minutes
	} `yaml:"jwt"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	Stripe struct {
		SecretKey      string `yaml:"secret_key"`
		WebhookSecret  string `yaml:"webhook_secret"`
		PriceIDMonthly string `yaml:"price_id_monthly"`
		PriceIDYearly  string `yaml:"price_id_yearly"`
	} `yaml:"stripe"`

	Apple struct {
		SharedSecret string `yaml:"shared_secret"`
	} `yaml:"apple"`

	AI struct {
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"ai"`

	Billing struct {
		PruneUsageCounters bool `yaml:"prune_usage_counters"`
	} `yaml:"billing"`

	FirstAdminEmail    string `yaml:"first_admin_email"`
	FirstAdminPassword string `yaml:"first_admin_password"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyEnvOverrides(&cfg)
		setDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	// Env-only mode: everything comes from the environment (containers, CI)
	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	AppConfig = &cfg
}

// applyEnvOverrides maps provider credentials from the environment. These win
// over the yaml file so secrets never have to live on disk.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"STRIPE_SECRET_KEY":       &cfg.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET":   &cfg.Stripe.WebhookSecret,
		"STRIPE_PRICE_ID_MONTHLY": &cfg.Stripe.PriceIDMonthly,
		"STRIPE_PRICE_ID_YEARLY":  &cfg.Stripe.PriceIDYearly,
		"APPLE_SHARED_SECRET":     &cfg.Apple.SharedSecret,
		"APP_PUBLIC_URL":          &cfg.App.PublicURL,
		"OPENROUTER_API_KEY":      &cfg.AI.APIKey,
		"JWT_SECRET":              &cfg.JWT.Secret,
		"FIRST_ADMIN_EMAIL":       &cfg.FirstAdminEmail,
		"FIRST_ADMIN_PASSWORD":    &cfg.FirstAdminPassword,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "openai/gpt-4o-mini"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.App.PublicURL == "" {
		cfg.App.PublicURL = "http://localhost:4000"
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
