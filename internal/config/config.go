package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port string
	Env  string

	MaxRooms          int
	ForfeitGrace      time.Duration
	JudgeTimeout      time.Duration
	FinishedRetention time.Duration
	AbandonTimeout    time.Duration
	SweepInterval     time.Duration
	MaxMessageLength  int
	Topics            []string

	JudgeProvider string
	JudgeModel    string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaHost    string

	DatabaseURL string
	RedisURL    string

	ExportEnabled bool
	ExportFile    string

	SendRate    float64
	SendBurst   int
	CORSOrigins []string
}

var defaults = map[string]any{
	"PORT":               "5001",
	"ENV":                "development",
	"MAX_ROOMS":          1000,
	"FORFEIT_GRACE":      "20s",
	"JUDGE_TIMEOUT":      "45s",
	"FINISHED_RETENTION": "10m",
	"ABANDON_TIMEOUT":    "5m",
	"SWEEP_INTERVAL":     "30s",
	"MAX_MESSAGE_LENGTH": 500,
	"TOPICS":             "",
	"JUDGE_PROVIDER":     "openai",
	"JUDGE_MODEL":        "gpt-4o-mini",
	"OPENAI_API_KEY":     "",
	"OPENAI_BASE_URL":    "",
	"OLLAMA_HOST":        "http://localhost:11434",
	"DATABASE_URL":       "",
	"REDIS_URL":          "",
	"EXPORT_ENABLED":     false,
	"EXPORT_FILE":        "./debate-results.txt",
	"SEND_RATE":          1.0,
	"SEND_BURST":         5,
	"CORS_ORIGINS":       "*",
}

// FromEnv reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	c := Config{
		Port:              v.GetString("PORT"),
		Env:               v.GetString("ENV"),
		MaxRooms:          v.GetInt("MAX_ROOMS"),
		ForfeitGrace:      v.GetDuration("FORFEIT_GRACE"),
		JudgeTimeout:      v.GetDuration("JUDGE_TIMEOUT"),
		FinishedRetention: v.GetDuration("FINISHED_RETENTION"),
		AbandonTimeout:    v.GetDuration("ABANDON_TIMEOUT"),
		SweepInterval:     v.GetDuration("SWEEP_INTERVAL"),
		MaxMessageLength:  v.GetInt("MAX_MESSAGE_LENGTH"),
		Topics:            splitList(v.GetString("TOPICS"), "|"),
		JudgeProvider:     strings.ToLower(v.GetString("JUDGE_PROVIDER")),
		JudgeModel:        v.GetString("JUDGE_MODEL"),
		OpenAIKey:         v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		OllamaHost:        v.GetString("OLLAMA_HOST"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RedisURL:          v.GetString("REDIS_URL"),
		ExportEnabled:     v.GetBool("EXPORT_ENABLED"),
		ExportFile:        v.GetString("EXPORT_FILE"),
		SendRate:          v.GetFloat64("SEND_RATE"),
		SendBurst:         v.GetInt("SEND_BURST"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS"), ","),
	}
	return c, c.validate()
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func (c Config) validate() error {
	if c.ForfeitGrace <= 0 || c.JudgeTimeout <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	switch c.JudgeProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown JUDGE_PROVIDER %q", c.JudgeProvider)
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
