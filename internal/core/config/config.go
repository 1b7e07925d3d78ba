package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	// Remote services.
	FootprintServiceURL string
	JobEndpointURL      string

	// Footprint cache.
	RedisAddr    string
	CacheTTL     time.Duration
	Invalidation InvalidationCfg

	// Upload normalization.
	MaxUploadBytes int64
	MaxAttrColumns int

	// Spatial filter.
	PrefilterRes    int
	FilterMemoSize  int
	ViewportPadding float64

	// Selection viewport policy.
	MaxFitZoom  int
	MinSpotZoom int
}

func FromEnv() Config {
	res := getint("PREFILTER_H3_RES", 5)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:                getenv("ADDR", ":8091"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		FootprintServiceURL: getenv("FOOTPRINT_SERVICE_URL", "https://services1.arcgis.com/99lidPhWCzftIe9K/ArcGIS/rest/services/LiDAR_Extents/FeatureServer/0"),
		JobEndpointURL:      getenv("JOB_ENDPOINT_URL", "http://localhost:5001/start_job"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:            getduration("FOOTPRINT_CACHE_TTL", 15*time.Minute),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "footprint-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "footprint-invalidator"),
		},
		MaxUploadBytes:  getint64("MAX_UPLOAD_BYTES", 20<<20),
		MaxAttrColumns:  getint("MAX_ATTR_COLUMNS", 8),
		PrefilterRes:    res,
		FilterMemoSize:  getint("FILTER_MEMO_SIZE", 64),
		ViewportPadding: getfloat("VIEWPORT_PADDING", 0.05),
		MaxFitZoom:      getint("MAX_FIT_ZOOM", 16),
		MinSpotZoom:     getint("MIN_SPOT_ZOOM", 12),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
