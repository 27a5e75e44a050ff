package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jvanek/facegroups/internal/constants"
	"github.com/jvanek/facegroups/internal/faces"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Detector    DetectorConfig
	Storage     StorageConfig
	Recognition RecognitionSettings
	Registry    RegistryConfig
	Thresholds  ThresholdsConfig
}

type DetectorConfig struct {
	URL string // remote detection service base URL (e.g., http://localhost:8000)
	Dim int    // embedding dimension, defaults to 512
}

type StorageConfig struct {
	DataDir string // root directory for aggregates and thumbnails
}

// RecognitionSettings holds the raw recognition tuning read from the
// environment. Zero-valued thresholds fall back to the embedded per-mode
// defaults from thresholds.yaml.
type RecognitionSettings struct {
	Mode             string
	ClusterThreshold float64
	ContextWeight    float64
	QualityWeighting bool
	QualityGate      float64
	AttachLeftovers  bool
	AutoMatchPeople  bool
}

type RegistryConfig struct {
	Backend         string // "postgres", "mariadb" or empty (registry disabled)
	PostgresURL     string
	MariaDBDSN      string
	MaxOpenConns    int
	MaxIdleConns    int
	IndexPath       string // path to persist the person HNSW index (optional)
	MatchConfidence float64
}

type ThresholdsConfig struct {
	Modes map[string]ModeThresholds `yaml:"modes"`
}

type ModeThresholds struct {
	ClusterThreshold float64 `yaml:"cluster_threshold"`
	ContextWeight    float64 `yaml:"context_weight"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean ("1", "true", "yes").
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	switch s {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL: os.Getenv("FACEGROUPS_DETECTOR_URL"),
			Dim: envInt("FACEGROUPS_EMBEDDING_DIM", 512),
		},
		Storage: StorageConfig{
			DataDir: envString("FACEGROUPS_DATA_DIR", "facegroups-data"),
		},
		Recognition: RecognitionSettings{
			Mode:             envString("FACEGROUPS_MODE", string(faces.ModePrimary)),
			ClusterThreshold: envFloat("FACEGROUPS_CLUSTER_THRESHOLD", 0),
			ContextWeight:    envFloat("FACEGROUPS_CONTEXT_WEIGHT", 0),
			QualityWeighting: envBool("FACEGROUPS_QUALITY_WEIGHTING", true),
			QualityGate:      envFloat("FACEGROUPS_QUALITY_GATE", constants.DefaultQualityGate),
			AttachLeftovers:  envBool("FACEGROUPS_ATTACH_LEFTOVERS", true),
			AutoMatchPeople:  envBool("FACEGROUPS_AUTO_MATCH", false),
		},
		Registry: RegistryConfig{
			Backend:         os.Getenv("FACEGROUPS_REGISTRY_BACKEND"),
			PostgresURL:     os.Getenv("FACEGROUPS_POSTGRES_URL"),
			MariaDBDSN:      os.Getenv("FACEGROUPS_MARIADB_DSN"),
			MaxOpenConns:    envInt("FACEGROUPS_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("FACEGROUPS_DB_MAX_IDLE_CONNS", 5),
			IndexPath:       os.Getenv("FACEGROUPS_PERSON_INDEX_PATH"),
			MatchConfidence: envFloat("FACEGROUPS_MATCH_CONFIDENCE", constants.DefaultMatchConfidence),
		},
		Thresholds: thresholds,
	}
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// RecognitionConfig resolves the recognition settings against the embedded
// per-mode defaults and returns the explicit config threaded through scans
// and clustering.
func (c *Config) RecognitionConfig() faces.RecognitionConfig {
	mode := faces.RecognitionMode(c.Recognition.Mode)
	if mode != faces.ModePrimary && mode != faces.ModeFused {
		mode = faces.ModePrimary
	}

	defaults := c.Thresholds.Modes[string(mode)]

	threshold := c.Recognition.ClusterThreshold
	if threshold == 0 {
		threshold = defaults.ClusterThreshold
	}
	weight := c.Recognition.ContextWeight
	if weight == 0 {
		weight = defaults.ContextWeight
	}

	return faces.RecognitionConfig{
		Mode:             mode,
		ClusterThreshold: threshold,
		ContextWeight:    weight,
		QualityWeighting: c.Recognition.QualityWeighting,
		QualityGate:      c.Recognition.QualityGate,
		AttachLeftovers:  c.Recognition.AttachLeftovers,
	}
}
