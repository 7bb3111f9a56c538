package config

import (
	"log"
	"os"
)

type Mode string

const (
	// ModeRemote talks to a deployed chatbot API over REST.
	ModeRemote Mode = "remote"
	// ModeLocal runs the assistant in-process (offline / development).
	ModeLocal Mode = "local"
)

type Config struct {
	Mode Mode

	// Remote backend
	APIBaseURL string
	APIToken   string // optional; anonymous chat is allowed

	// Default UI language (en, hi, pa, ur)
	Language string

	// Local backend (Gemini)
	GCPProjectID string
	GCPLocation  string
	ModelName    string
	UseMockLLM   bool

	StorageBackend string // "memory" or "firestore", local mode only

	// Audio commands. Empty disables the concern.
	RecordCmd string // e.g. "ffmpeg -f alsa -i default -f wav -"
	SpeakCmd  string // e.g. "espeak-ng --stdin"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("AGRI_MODE", "remote")
	var mode Mode
	switch modeStr {
	case "local":
		mode = ModeLocal
	default:
		mode = ModeRemote
	}

	cfg := &Config{
		Mode: mode,

		APIBaseURL: getEnv("AGRI_API_BASE_URL", "http://localhost:5000"),
		APIToken:   getEnv("AGRI_API_TOKEN", ""),

		Language: getEnv("AGRI_LANGUAGE", "en"),

		GCPProjectID: getEnv("AGRI_GCP_PROJECT", ""),
		GCPLocation:  getEnv("AGRI_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("AGRI_MODEL_NAME", "gemini-2.5-flash"),
		UseMockLLM:   getBoolEnv("AGRI_USE_MOCK_LLM", mode == ModeLocal && os.Getenv("AGRI_GCP_PROJECT") == ""),

		StorageBackend: getEnv("AGRI_STORAGE_BACKEND", "memory"),

		RecordCmd: getEnv("AGRI_RECORD_CMD", ""),
		SpeakCmd:  getEnv("AGRI_SPEAK_CMD", ""),
	}

	// Minimal validation when the local backend needs a real model
	if cfg.Mode == ModeLocal && !cfg.UseMockLLM && cfg.GCPProjectID == "" {
		log.Fatal("AGRI_GCP_PROJECT must be set in local mode unless AGRI_USE_MOCK_LLM=1")
	}

	return cfg
}
