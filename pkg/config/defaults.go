// Package config provides centralized default values for Solvia
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Backend Configuration
	BackendBaseURL        string
	BackendRequestTimeout time.Duration

	// Credential Store
	CredentialStorePath string
	CredentialAESKey    string

	// Session Policy
	RefreshThrottleWindow time.Duration
	MaxRefreshAttempts    int
	LoopBreakerThreshold  int

	// Dashboard Popups
	PopupCountdownSeconds int
	PopupFallbackHide     time.Duration

	// Progress Socket
	SocketWriteTimeout      time.Duration
	SocketSendBuffer        int
	MaxProgressConnections  int
	SocketHeartbeatInterval time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "4322")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Backend Configuration
	BackendBaseURL = getEnvString("SOLVIA_BACKEND_URL", "http://localhost:8000")
	// Zero disables the client timeout; refresh throttling bounds retry
	// storms independently of request deadlines.
	BackendRequestTimeout = getEnvDuration("SOLVIA_BACKEND_TIMEOUT", 0)

	// Credential Store
	CredentialStorePath = getEnvString("SOLVIA_STORE_PATH", "solvia-session.db")
	CredentialAESKey = getEnvString("SOLVIA_AES_KEY", "")

	// Session Policy
	RefreshThrottleWindow = getEnvDuration("REFRESH_THROTTLE_WINDOW", 5*time.Second)
	MaxRefreshAttempts = getEnvInt("MAX_REFRESH_ATTEMPTS", 3)
	LoopBreakerThreshold = getEnvInt("LOOP_BREAKER_THRESHOLD", 5)

	// Dashboard Popups
	PopupCountdownSeconds = getEnvInt("POPUP_COUNTDOWN_SECONDS", 5)
	PopupFallbackHide = time.Duration(getEnvInt("POPUP_FALLBACK_HIDE_SECONDS", 5)) * time.Second

	// Progress Socket
	SocketWriteTimeout = getEnvDuration("SOCKET_WRITE_TIMEOUT", 10*time.Second)
	SocketSendBuffer = getEnvInt("SOCKET_SEND_BUFFER", 16)
	MaxProgressConnections = getEnvInt("MAX_PROGRESS_CONNECTIONS", 8)
	SocketHeartbeatInterval = getEnvDuration("SOCKET_HEARTBEAT_INTERVAL", 30*time.Second)
}
