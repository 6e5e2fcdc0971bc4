package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr         string
	DataPath           string
	OutputDir          string
	ReferenceChartPath string
	CCMPath            string
	PixelWorkers       int
	FrameWorkers       int
	MaxUploadSizeBytes int64
	JPEGQuality        int
	DefaultPreset      string
	MinROISize         int
	ZoomBaseWidth      int
	BrightnessScale    float64
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DataPath:           getEnv("DATA_PATH", "./data/state.json"),
		OutputDir:          getEnv("OUTPUT_DIR", "./data/output"),
		ReferenceChartPath: getEnv("REFERENCE_CHART_PATH", ""),
		CCMPath:            getEnv("CCM_PATH", "./data/ccm.csv"),
		PixelWorkers:       getEnvInt("PIXEL_WORKERS", 0),
		FrameWorkers:       getEnvInt("FRAME_WORKERS", 2),
		MaxUploadSizeBytes: getEnvInt64("MAX_UPLOAD_SIZE_BYTES", 32*1024*1024),
		JPEGQuality:        getEnvInt("JPEG_QUALITY", 95),
		DefaultPreset:      strings.TrimSpace(getEnv("DEFAULT_PRESET", "road-marking")),
		MinROISize:         getEnvInt("MIN_ROI_SIZE", 5),
		ZoomBaseWidth:      getEnvInt("ZOOM_BASE_WIDTH", 0),
		BrightnessScale:    getEnvFloat("BRIGHTNESS_SCALE", 0.95),
	}

	if cfg.PixelWorkers < 0 {
		return Config{}, errors.New("pixel workers must be >= 0")
	}
	if cfg.FrameWorkers <= 0 {
		return Config{}, errors.New("frame workers must be > 0")
	}
	if cfg.MaxUploadSizeBytes <= 0 {
		return Config{}, errors.New("max upload size must be > 0")
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return Config{}, errors.New("jpeg quality must be in [1,100]")
	}
	if cfg.MinROISize <= 0 {
		return Config{}, errors.New("min roi size must be > 0")
	}
	if cfg.ZoomBaseWidth < 0 {
		return Config{}, errors.New("zoom base width must be >= 0")
	}
	if cfg.BrightnessScale < 0 {
		return Config{}, errors.New("brightness scale must be >= 0")
	}
	if cfg.DefaultPreset == "" {
		return Config{}, errors.New("default preset is empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
