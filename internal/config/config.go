// Package config loads rook's runtime configuration from a YAML file
// overlaid with ROOK_* environment variables, following the defaults-after-
// unmarshal idiom the rest of this codebase uses for its config surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v2"
)

// ObsConfig configures the OpenTelemetry SDK wiring.
type ObsConfig struct {
	OTLP           string `yaml:"otlp_endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// EmbeddingConfig configures the HTTP embedding client.
type EmbeddingConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Path    string `yaml:"path"`
	Timeout int    `yaml:"timeout_seconds"`
	// APIHeader/APIKey is the legacy single-header auth form; Headers is the
	// more general form and takes precedence per key when both are set.
	APIHeader string            `yaml:"api_header"`
	APIKey    string            `yaml:"api_key"`
	Headers   map[string]string `yaml:"headers"`
}

// VectorBackendConfig configures one vector-store backend slot.
type VectorBackendConfig struct {
	Backend    string `yaml:"backend"` // "memory" | "auto" | "postgres" | "none"
	DSN        string `yaml:"dsn"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // "cosine" | "l2" | "dot"
}

// BackendConfig configures one search/graph backend slot.
type BackendConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// DBConfig configures the three pluggable persistence backends.
type DBConfig struct {
	DefaultDSN string              `yaml:"default_dsn"`
	Search     BackendConfig       `yaml:"search"`
	Vector     VectorBackendConfig `yaml:"vector"`
	Graph      BackendConfig       `yaml:"graph"`
}

// CognitiveConfig configures the FSRS/STC cognitive state store and its
// scheduling defaults.
type CognitiveConfig struct {
	DBPath              string  `yaml:"db_path"`
	ArchiveThreshold    float64 `yaml:"archive_threshold"`
	ArchiveMinAgeDays   int     `yaml:"archive_min_age_days"`
	TagThreshold        float64 `yaml:"tag_threshold"`
	StorageBoost        float64 `yaml:"storage_boost"`
	PenalizeUnconsolidated bool `yaml:"penalize_unconsolidated"`
	UnconsolidatedPenalty  float64 `yaml:"unconsolidated_penalty"`
}

// ConsolidationConfig configures the background consolidation runtime.
type ConsolidationConfig struct {
	IntervalMinutes int  `yaml:"interval_minutes"`
	RunOnStart      bool `yaml:"run_on_start"`
	Disabled        bool `yaml:"disabled"`
	BatchSize       int  `yaml:"batch_size"`
}

// IntentionsConfig configures the intention scheduler.
type IntentionsConfig struct {
	DBPath   string `yaml:"db_path"`
	Disabled bool   `yaml:"disabled"`
}

// HistoryConfig configures the history/versioning stores.
type HistoryConfig struct {
	HistoryDBPath string `yaml:"history_db_path"`
	VersionDBPath string `yaml:"version_db_path"`
}

// RetrievalConfig configures the hybrid retrieval engine's defaults.
type RetrievalConfig struct {
	RRFK               int     `yaml:"rrf_k"`
	DedupThreshold      float64 `yaml:"dedup_threshold"`
	DefaultLimit        int     `yaml:"default_limit"`
	ActivationMaxDepth  int     `yaml:"activation_max_depth"`
	ActivationDecay     float64 `yaml:"activation_decay"`
	FiringThreshold     float64 `yaml:"firing_threshold"`
	FanOutPenalty       float64 `yaml:"fan_out_penalty"`
}

// GateConfig configures the ingestion gate's novelty thresholds.
type GateConfig struct {
	SemanticDuplicateThreshold   float64 `yaml:"semantic_duplicate_threshold"`
	SemanticNearDuplicateThreshold float64 `yaml:"semantic_near_duplicate_threshold"`
}

// RedisConfig configures the optional Redis-backed retrievability cache.
// Disabled by default: a disabled cache degrades every lookup straight
// through to the cognitive store rather than failing.
type RedisConfig struct {
	Enabled               bool   `yaml:"enabled"`
	Addr                  string `yaml:"addr"`
	Password              string `yaml:"password"`
	DB                    int    `yaml:"db"`
	TLSInsecureSkipVerify bool   `yaml:"tls_insecure_skip_verify"`
	TTLSeconds            int    `yaml:"ttl_seconds"`
}

// Config is rook's top-level configuration.
type Config struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	OrgID     string `yaml:"org_id"`
	ProjectID string `yaml:"project_id"`
	// Model names the chat completion model used for fact extraction,
	// contradiction checks, and procedural-memory summarization.
	Model string `yaml:"model"`

	Embedding     EmbeddingConfig     `yaml:"embedding"`
	DB            DBConfig            `yaml:"db"`
	Cognitive     CognitiveConfig     `yaml:"cognitive"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Intentions    IntentionsConfig    `yaml:"intentions"`
	History       HistoryConfig       `yaml:"history"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Gate          GateConfig          `yaml:"gate"`
	Obs           ObsConfig           `yaml:"observability"`
	Redis         RedisConfig         `yaml:"redis"`
}

// Load reads filename (if non-empty and present), applies ROOK_* environment
// overlays, then fills in defaults, logging each default it applies the way
// the rest of this codebase's config loader does.
func Load(filename string) (*Config, error) {
	var cfg Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				pterm.Error.Printf("Error reading config file: %v\n", err)
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			pterm.Error.Printf("Error unmarshaling config: %v\n", err)
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	applyEnvOverlay(&cfg)
	applyDefaults(&cfg)

	pterm.Success.Println("Configuration loaded successfully.")
	return &cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	cfg.APIKey = firstNonEmpty(os.Getenv("ROOK_API_KEY"), cfg.APIKey)
	cfg.BaseURL = firstNonEmpty(os.Getenv("ROOK_BASE_URL"), cfg.BaseURL)
	cfg.OrgID = firstNonEmpty(os.Getenv("ROOK_ORG_ID"), cfg.OrgID)
	cfg.ProjectID = firstNonEmpty(os.Getenv("ROOK_PROJECT_ID"), cfg.ProjectID)
	cfg.Model = firstNonEmpty(os.Getenv("ROOK_MODEL"), cfg.Model)
	cfg.Cognitive.DBPath = firstNonEmpty(os.Getenv("ROOK_COGNITIVE_DB_PATH"), cfg.Cognitive.DBPath)
	cfg.Intentions.DBPath = firstNonEmpty(os.Getenv("ROOK_INTENTION_DB_PATH"), cfg.Intentions.DBPath)

	if v := os.Getenv("ROOK_CONSOLIDATION_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Consolidation.IntervalMinutes = n
		}
	}
	if v := os.Getenv("ROOK_CONSOLIDATION_RUN_ON_START"); v != "" {
		cfg.Consolidation.RunOnStart = parseBool(v)
	}
	if v := os.Getenv("ROOK_DISABLE_CONSOLIDATION"); v != "" {
		cfg.Consolidation.Disabled = parseBool(v)
	}
	if v := os.Getenv("ROOK_DISABLE_INTENTIONS"); v != "" {
		cfg.Intentions.Disabled = parseBool(v)
	}

	cfg.Redis.Addr = firstNonEmpty(os.Getenv("ROOK_REDIS_ADDR"), cfg.Redis.Addr)
	if v := os.Getenv("ROOK_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.DB.Vector.Backend == "" {
		cfg.DB.Vector.Backend = "memory"
	}
	if cfg.DB.Search.Backend == "" {
		cfg.DB.Search.Backend = "memory"
	}
	if cfg.DB.Graph.Backend == "" {
		cfg.DB.Graph.Backend = "memory"
	}
	// Graph.DSN doubles as a filesystem path for internal/graph's SQLite
	// store (Backend is otherwise unconsulted there); ":memory:" keeps the
	// "memory" backend name meaningful for a graph store that has no
	// separate in-process implementation.
	if cfg.DB.Graph.DSN == "" {
		if cfg.DB.Graph.Backend == "memory" {
			cfg.DB.Graph.DSN = ":memory:"
		} else {
			cfg.DB.Graph.DSN = "rook_graph.db"
		}
	}
	if cfg.DB.Vector.Dimensions <= 0 {
		cfg.DB.Vector.Dimensions = 1536
	}
	if cfg.DB.Vector.Metric == "" {
		cfg.DB.Vector.Metric = "cosine"
	}

	if cfg.Cognitive.DBPath == "" {
		cfg.Cognitive.DBPath = "rook_cognitive.db"
	}
	if cfg.Cognitive.ArchiveThreshold <= 0 {
		cfg.Cognitive.ArchiveThreshold = 0.1
	}
	if cfg.Cognitive.ArchiveMinAgeDays <= 0 {
		cfg.Cognitive.ArchiveMinAgeDays = 30
	}
	if cfg.Cognitive.TagThreshold <= 0 {
		cfg.Cognitive.TagThreshold = 0.1
	}
	if cfg.Cognitive.StorageBoost <= 0 {
		cfg.Cognitive.StorageBoost = 0.15
	}
	if cfg.Cognitive.UnconsolidatedPenalty <= 0 {
		cfg.Cognitive.UnconsolidatedPenalty = 0.05
	}

	if cfg.Consolidation.IntervalMinutes <= 0 {
		cfg.Consolidation.IntervalMinutes = 15
		pterm.Info.Println("No consolidation interval specified, using default (15 minutes).")
	}
	if cfg.Consolidation.BatchSize <= 0 {
		cfg.Consolidation.BatchSize = 100
	}

	if cfg.Intentions.DBPath == "" {
		cfg.Intentions.DBPath = "rook_intentions.db"
	}

	if cfg.History.HistoryDBPath == "" {
		cfg.History.HistoryDBPath = "rook_history.db"
	}
	if cfg.History.VersionDBPath == "" {
		cfg.History.VersionDBPath = "rook_versions.db"
	}

	if cfg.Retrieval.RRFK <= 0 {
		cfg.Retrieval.RRFK = 60
	}
	if cfg.Retrieval.DedupThreshold <= 0 {
		cfg.Retrieval.DedupThreshold = 0.95
	}
	if cfg.Retrieval.DefaultLimit <= 0 {
		cfg.Retrieval.DefaultLimit = 10
	}
	if cfg.Retrieval.ActivationMaxDepth <= 0 {
		cfg.Retrieval.ActivationMaxDepth = 3
	}
	if cfg.Retrieval.ActivationDecay <= 0 {
		cfg.Retrieval.ActivationDecay = 0.5
	}
	if cfg.Retrieval.FiringThreshold <= 0 {
		cfg.Retrieval.FiringThreshold = 0.01
	}
	if cfg.Retrieval.FanOutPenalty <= 0 {
		cfg.Retrieval.FanOutPenalty = 0.1
	}

	if cfg.Gate.SemanticDuplicateThreshold <= 0 {
		cfg.Gate.SemanticDuplicateThreshold = 0.92
	}
	if cfg.Gate.SemanticNearDuplicateThreshold <= 0 {
		cfg.Gate.SemanticNearDuplicateThreshold = 0.80
	}

	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = 30
	}
	if cfg.Embedding.Path == "" {
		cfg.Embedding.Path = "/v1/embeddings"
	}
	if cfg.Embedding.APIHeader == "" {
		cfg.Embedding.APIHeader = "Authorization"
	}

	if cfg.Obs.ServiceName == "" {
		cfg.Obs.ServiceName = "rookd"
	}
	if cfg.Obs.ServiceVersion == "" {
		cfg.Obs.ServiceVersion = "dev"
	}
	if cfg.Obs.Environment == "" {
		cfg.Obs.Environment = "development"
	}
}
