package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Secrets are read from the environment, after an optional .env file.
type Secrets struct {
	AlpacaKey     string
	AlpacaSecret  string
	AlpacaBaseURL string
	OpenAIKey     string
	DeepSeekKey   string
	GeminiKey     string
	FinnhubKey    string
}

// LoadSecrets loads .env files (missing files are fine) and reads the
// provider credentials. Variables already set in the environment win.
func LoadSecrets(files ...string) Secrets {
	_ = godotenv.Load(files...)
	return Secrets{
		AlpacaKey:     os.Getenv("ALPACA_API_KEY"),
		AlpacaSecret:  os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaBaseURL: os.Getenv("ALPACA_BASE_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		DeepSeekKey:   os.Getenv("DEEPSEEK_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		FinnhubKey:    os.Getenv("FINNHUB_API_KEY"),
	}
}

// AlpacaEnabled reports whether both Alpaca credentials are present.
func (s Secrets) AlpacaEnabled() bool {
	return s.AlpacaKey != "" && s.AlpacaSecret != ""
}
