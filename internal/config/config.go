// Package config loads the single configuration object the server is
// built from: listen address, every backing store URL, and the secrets
// needed to talk to them. Values come from environment variables first,
// then an optional YAML file, following the teacher's flag-driven
// cmd/server entrypoint but generalized to viper so operators can use
// either env vars or a config file interchangeably.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is populated once at startup and passed down explicitly to
// every handler's dependencies — no package-level singletons (§9).
type Config struct {
	Listen string `mapstructure:"listen"`

	KeyedStore KeyedStoreConfig `mapstructure:"keyed_store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Queue      QueueConfig      `mapstructure:"queue"`
	DocStore   DocStoreConfig   `mapstructure:"doc_store"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM        LLMConfig        `mapstructure:"llm"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Admin      AdminConfig      `mapstructure:"admin"`
	SMS        ExternalCreds    `mapstructure:"sms"`
	OAuth      ExternalCreds    `mapstructure:"oauth"`
	OCR        ExternalCreds    `mapstructure:"ocr"`

	Cache      CacheConfig      `mapstructure:"cache"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Chat       ChatConfig       `mapstructure:"chat"`
}

// KeyedStoreConfig points at the distributed keyed store (Redis).
type KeyedStoreConfig struct {
	Driver   string `mapstructure:"driver"` // "redis" or "local" (in-memory, for tests/dev)
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig is the opaque relational store (courses/articles/users).
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ObjectStoreConfig is the opaque binary/object store (uploads, signed URLs).
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

// QueueConfig points at the durable message queue (RabbitMQ).
type QueueConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"` // default "user_behavior_log_queue"
}

// DocStoreConfig is the append-only behavior log sink (MongoDB).
type DocStoreConfig struct {
	URL        string `mapstructure:"url"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"` // default "user_behavior_log"
}

// VectorStoreConfig is the opaque nearest-neighbor search backend.
type VectorStoreConfig struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds API keys for the opaque text generator.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`
}

// JWTConfig configures bearer-token parsing (verification itself is
// an external collaborator; this is the wire-format boundary only).
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	Algorithm string        `mapstructure:"algorithm"` // e.g. "HS256"
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

// AdminConfig guards the operator-only routes cmd/admin talks to.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// ExternalCreds is a generic credential bag for SMS/OAuth/OCR providers.
type ExternalCreds struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

// CacheConfig tunes the singleflight list cache (C2).
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`           // T_cache
	LockTTL      time.Duration `mapstructure:"lock_ttl"`      // T_lock
	FollowMax    time.Duration `mapstructure:"follow_max"`    // T_follow_max
	PollMinDelay time.Duration `mapstructure:"poll_min_delay"`
	PollMaxDelay time.Duration `mapstructure:"poll_max_delay"`
}

// IdempotencyConfig tunes the idempotency gate (C3).
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // T_idem, default 24h
}

// RecommendConfig holds settings for the item-CF recommender (C6). It
// is loaded but not read: internal/recommend keeps no memo and
// rebuilds its matrices on every call.
type RecommendConfig struct {
	MemoTTL time.Duration `mapstructure:"memo_ttl"` // 0 disables memoization
}

// ChatConfig holds settings for session memory & RAG (C7). It is loaded
// but not read: internal/chat uses its own fixed window size and
// retrieval depth, and sets no stream timeout.
type ChatConfig struct {
	WindowSize     int           `mapstructure:"window_size"` // W, default 10
	RetrievalTopK  int           `mapstructure:"retrieval_top_k"`
	MaxQueries     int           `mapstructure:"max_queries"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`
}

// Load reads configuration from environment variables (prefixed
// MEDCORE_) and, if present, a YAML file at path. Env vars win.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("medcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("keyed_store.driver", "redis")
	v.SetDefault("keyed_store.addr", "localhost:6379")
	v.SetDefault("queue.queue", "user_behavior_log_queue")
	v.SetDefault("doc_store.collection", "user_behavior_log")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_ttl", 2*time.Hour)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.lock_ttl", 10*time.Second)
	v.SetDefault("cache.follow_max", 5*time.Second)
	v.SetDefault("cache.poll_min_delay", 100*time.Millisecond)
	v.SetDefault("cache.poll_max_delay", 200*time.Millisecond)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("recommend.memo_ttl", 0)
	v.SetDefault("chat.window_size", 10)
	v.SetDefault("chat.retrieval_top_k", 2)
	v.SetDefault("chat.max_queries", 4)
	v.SetDefault("chat.stream_timeout", 60*time.Second)
	v.SetDefault("llm.stream_timeout", 60*time.Second)
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
}
