package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"vidpress/internal/domain"
)

type Config struct {
	Port            int
	DataDir         string
	ScratchDir      string
	DeliveryDir     string
	Workers         int
	QueueLimitUser  int
	MaxFileSize     int64
	MaxDurationSec  int
	RequireAuth     bool
	AdminUsers      []int64
	AuthorizedUsers []int64
	Profiles        map[string]domain.Profile
}

// SupportedFormats lists the container extensions accepted at admission.
var SupportedFormats = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "m4v", "3gp"}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "7891"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("MAX_CONCURRENT_PROCESSES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_PROCESSES: %w", err)
	}
	if workers < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_PROCESSES must be at least 1")
	}

	queueLimit, err := strconv.Atoi(getEnv("QUEUE_LIMIT_PER_USER", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_LIMIT_PER_USER: %w", err)
	}

	maxFileSize, err := strconv.ParseInt(getEnv("MAX_FILE_SIZE", strconv.Itoa(2*1024*1024*1024)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_FILE_SIZE: %w", err)
	}

	maxDuration, err := strconv.Atoi(getEnv("MAX_DURATION", "3600"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_DURATION: %w", err)
	}

	admins, err := parseIDList(os.Getenv("ADMIN_USERS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USERS: %w", err)
	}
	authorized, err := parseIDList(os.Getenv("AUTHORIZED_USERS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTHORIZED_USERS: %w", err)
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		Port:            port,
		DataDir:         dataDir,
		ScratchDir:      getEnv("TEMP_DIR", dataDir+"/scratch"),
		DeliveryDir:     getEnv("DELIVERY_DIR", dataDir+"/delivered"),
		Workers:         workers,
		QueueLimitUser:  queueLimit,
		MaxFileSize:     maxFileSize,
		MaxDurationSec:  maxDuration,
		RequireAuth:     getEnv("REQUIRE_AUTHENTICATION", "true") == "true",
		AdminUsers:      admins,
		AuthorizedUsers: authorized,
		Profiles:        DefaultProfiles(),
	}, nil
}

// DefaultProfiles is the built-in resolution ladder. Names double as the
// profile identifiers stored on jobs.
func DefaultProfiles() map[string]domain.Profile {
	return map[string]domain.Profile{
		"1080p": {Name: "1080p", Width: 1920, Height: 1080, BitrateKbps: 8000},
		"720p":  {Name: "720p", Width: 1280, Height: 720, BitrateKbps: 5000},
		"480p":  {Name: "480p", Width: 854, Height: 480, BitrateKbps: 3000},
		"360p":  {Name: "360p", Width: 640, Height: 360, BitrateKbps: 1500},
	}
}

// ProfileNames returns the configured profile names, highest resolution
// first, so fan-out order is deterministic.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.Profiles[names[i]].Height > c.Profiles[names[j]].Height
	})
	return names
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
