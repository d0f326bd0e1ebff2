package config

import "time"

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"clover-api"`
	Port       int    `env:"PORT" env-default:"3004"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`
	Version    string `env:"APP_VERSION" env-default:"dev"`

	// PostgreSQL (canonical players, review queue, raw batch archive)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Tracing (OTLP span export; spans are no-ops when disabled)
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"otlp"`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol    string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure    bool   `env:"OTLP_INSECURE" env-default:"true"`
	OTLPTimeout     int    `env:"OTLP_TIMEOUT_MS" env-default:"10000"`

	// Redis (resolution dedupe + replay serialization locks)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Producer (pipeline events)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"pipeline-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Resolution thresholds
	MinMatchScore      float64 `env:"MIN_MATCH_SCORE" env-default:"0.75"`
	AutoApplyThreshold float64 `env:"AUTO_APPLY_THRESHOLD" env-default:"0.85"`
	AmbiguityMargin    float64 `env:"AMBIGUITY_MARGIN" env-default:"0.10"`
	MaxCandidates      int     `env:"MAX_CANDIDATES" env-default:"500"`

	// Integrity enforcement: "strict" refuses to serve bundles that fail
	// verification, "observe" logs the violation and serves anyway.
	IntegrityEnforcement string `env:"INTEGRITY_ENFORCEMENT" env-default:"strict"`

	// Archive
	ArchivePageSize int `env:"ARCHIVE_PAGE_SIZE" env-default:"50"`
}
