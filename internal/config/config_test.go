package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsBoolOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal bool
		expected   bool
	}{
		{"parses true", "TEST_BOOL_1", "true", false, true},
		{"parses 0", "TEST_BOOL_2", "0", true, false},
		{"trims spaces", "TEST_BOOL_3", " 1 ", false, true},
		{"uses default for empty", "TEST_BOOL_4", "", true, true},
		{"uses default for garbage", "TEST_BOOL_5", "maybe", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsBoolOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tubetrack")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("COST_NOTES", "12")
	t.Setenv("CHARGE_NOTES_ON_CACHE_HIT", "false")
	t.Setenv("YOUTUBE_BASE_URL", "http://127.0.0.1:9000")

	cfg := Load()
	if cfg.CostNotes != 12 {
		t.Errorf("Expected COST_NOTES 12, got %d", cfg.CostNotes)
	}
	if cfg.CostSearch != 15 || cfg.CostTest != 5 {
		t.Errorf("Expected default costs 15/5, got %d/%d", cfg.CostSearch, cfg.CostTest)
	}
	if cfg.ChargeNotesOnCacheHit {
		t.Error("Expected notes cache hits to be free")
	}
	if cfg.YouTubeBaseURL != "http://127.0.0.1:9000" {
		t.Errorf("Unexpected YouTube base URL %q", cfg.YouTubeBaseURL)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("Unexpected Gemini model %q", cfg.GeminiModel)
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     string
		expected string
	}{
		{"loopback", "127.0.0.1", "8080", "127.0.0.1:8080"},
		{"all interfaces", "0.0.0.0", "9000", "0.0.0.0:9000"},
		{"ipv6 loopback", "::1", "8080", "[::1]:8080"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Host: tc.host, Port: tc.port}
			if got := cfg.ListenAddr(); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
