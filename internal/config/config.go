package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// NATS (for event ingest and incident notifications)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration

	// NATS subjects
	DetectionsSubject string // per-frame detection lists from the upstream detector
	EventsSubject     string // canonical shoplifting events
	IncidentsSubject  string // outbound incident notifications

	// Suspicion scoring
	EscalateThreshold  float64       // score at which the judge is consulted
	DwellThreshold     time.Duration // cumulative high-theft dwell before the term fires
	CheckoutMemory     time.Duration // how long a checkout visit counts against an exit
	TorsoSpikeDelta    float64       // |last - mean| of the trailing aspect ratios
	TorsoSpikeSamples  int           // aspect ratio samples required before the term can fire
	ZoneRiskBlending   bool          // weight suspicion by zone risk multipliers
	TrackExpiry        time.Duration // evict tracks unseen for this long (0 disables)
	TrackerIOUMatchMin float64       // minimum IOU for a detection/track match

	// Concealment judge
	JudgeVisionEnabled   bool
	JudgeVisionURL       string
	JudgeVisionAPIKey    string
	JudgeVisionTimeout   time.Duration
	JudgeRateLimitCalls  int           // max external judge calls per camera per window
	JudgeRateLimitWindow time.Duration

	// Alert gate
	GateMinConfidence   float64
	CameraCooldown      time.Duration
	TrackCooldown       time.Duration // zero disables
	PersistenceCount    int           // 1 disables
	PersistenceWindow   time.Duration

	// Voice alerts
	TTSEnabled       bool
	TTSURL           string
	TTSAPIKey        string
	TTSVoice         string
	TTSTimeout       time.Duration
	TTSMaxRetries    int
	TTSBackoffBase   time.Duration
	TTSBackoffCap    time.Duration
	AlertTemplate    string
	AudioOutputDir   string
	PlaybackEnabled  bool
	PlaybackQueueLen int

	// Incident log
	IncidentLogPath string

	// Camera/zone configuration file (JSON), optional
	ZonesConfigPath string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "worker-1"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy (lightweight web log viewer)
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),

		// NATS subjects
		DetectionsSubject: getEnv("DETECTIONS_SUBJECT", "detections.person"),
		EventsSubject:     getEnv("EVENTS_SUBJECT", "events.shoplifting"),
		IncidentsSubject:  getEnv("INCIDENTS_SUBJECT", "incidents"),

		// Suspicion scoring
		EscalateThreshold:  getEnvFloatRange("ESCALATE_THRESHOLD", 70, 0, 100),
		DwellThreshold:     getEnvDuration("DWELL_THRESHOLD", 12*time.Second),
		CheckoutMemory:     getEnvDuration("CHECKOUT_MEMORY", 60*time.Second),
		TorsoSpikeDelta:    getEnvFloat("TORSO_SPIKE_DELTA", 0.25),
		TorsoSpikeSamples:  getEnvInt("TORSO_SPIKE_SAMPLES", 5),
		ZoneRiskBlending:   getEnvBool("ZONE_RISK_BLENDING", true),
		TrackExpiry:        getEnvDuration("TRACK_EXPIRY", 0),
		TrackerIOUMatchMin: getEnvFloat("TRACKER_IOU_MATCH_MIN", 0.3),

		// Concealment judge
		JudgeVisionEnabled:   getEnvBool("JUDGE_VISION_ENABLED", false),
		JudgeVisionURL:       getEnv("JUDGE_VISION_URL", ""),
		JudgeVisionAPIKey:    getEnv("JUDGE_VISION_API_KEY", ""),
		JudgeVisionTimeout:   getEnvDuration("JUDGE_VISION_TIMEOUT", 10*time.Second),
		JudgeRateLimitCalls:  getEnvInt("JUDGE_RATE_LIMIT_CALLS", 6),
		JudgeRateLimitWindow: getEnvDuration("JUDGE_RATE_LIMIT_WINDOW", 60*time.Second),

		// Alert gate
		GateMinConfidence: getEnvFloatRange("GATE_MIN_CONFIDENCE", 0.7, 0, 1),
		CameraCooldown:    getEnvDuration("CAMERA_COOLDOWN", 20*time.Second),
		TrackCooldown:     getEnvDuration("TRACK_COOLDOWN", 30*time.Second),
		PersistenceCount:  getEnvInt("PERSISTENCE_COUNT", 1),
		PersistenceWindow: getEnvDuration("PERSISTENCE_WINDOW", 30*time.Second),

		// Voice alerts
		TTSEnabled:       getEnvBool("TTS_ENABLED", false),
		TTSURL:           getEnv("TTS_URL", ""),
		TTSAPIKey:        getEnv("TTS_API_KEY", ""),
		TTSVoice:         getEnv("TTS_VOICE", "alloy"),
		TTSTimeout:       getEnvDuration("TTS_TIMEOUT", 15*time.Second),
		TTSMaxRetries:    getEnvIntRange("TTS_MAX_RETRIES", 2, 0, 10),
		TTSBackoffBase:   getEnvDuration("TTS_BACKOFF_BASE", 1*time.Second),
		TTSBackoffCap:    getEnvDuration("TTS_BACKOFF_CAP", 5*time.Second),
		AlertTemplate:    getEnv("ALERT_TEMPLATE", "Security alert. Possible shoplifting detected at {location}."),
		AudioOutputDir:   getEnv("AUDIO_OUTPUT_DIR", "audio-alerts"),
		PlaybackEnabled:  getEnvBool("PLAYBACK_ENABLED", true),
		PlaybackQueueLen: getEnvInt("PLAYBACK_QUEUE_LEN", 16),

		// Incident log
		IncidentLogPath: getEnv("INCIDENT_LOG_PATH", "incidents.jsonl"),

		// Camera/zone configuration
		ZonesConfigPath: getEnv("ZONES_CONFIG_PATH", "zones.json"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloatRange resolves out-of-range values to the default, same as
// non-numeric ones.
func getEnvFloatRange(key string, defaultValue, min, max float64) float64 {
	parsed := getEnvFloat(key, defaultValue)
	if parsed < min || parsed > max {
		return defaultValue
	}
	return parsed
}

// getEnvIntRange resolves out-of-range values to the default, same as
// non-numeric ones.
func getEnvIntRange(key string, defaultValue, min, max int) int {
	parsed := getEnvInt(key, defaultValue)
	if parsed < min || parsed > max {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
