package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Canvas   CanvasConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
	// NatsURL enables the external event mirror. Empty keeps the session
	// fully in-process.
	NatsURL string
}

type DatabaseConfig struct {
	Connection string
}

type CanvasConfig struct {
	GridSize       float64       // world units per snapping cell
	MinZoom        float64
	MaxZoom        float64
	FrameInterval  time.Duration // ghost update coalescing window
	CommitDebounce time.Duration // persistence debounce window
	GroupPadding   float64       // margin around grouped members
	GroupTitleBand float64       // height reserved for the group title
	DragDeadZone   float64       // pointer travel before a drag starts
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/canvas.log"),
			NatsURL:     getEnv("NATS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Canvas: CanvasConfig{
			GridSize:       getEnvAsFloat("CANVAS_GRID_SIZE", 20),
			MinZoom:        getEnvAsFloat("CANVAS_MIN_ZOOM", 0.1),
			MaxZoom:        getEnvAsFloat("CANVAS_MAX_ZOOM", 4.0),
			FrameInterval:  time.Duration(getEnvAsInt("CANVAS_FRAME_INTERVAL_MS", 16)) * time.Millisecond,
			CommitDebounce: time.Duration(getEnvAsInt("CANVAS_COMMIT_DEBOUNCE_MS", 800)) * time.Millisecond,
			GroupPadding:   getEnvAsFloat("CANVAS_GROUP_PADDING", 16),
			GroupTitleBand: getEnvAsFloat("CANVAS_GROUP_TITLE_BAND", 28),
			DragDeadZone:   getEnvAsFloat("CANVAS_DRAG_DEAD_ZONE", 4),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
