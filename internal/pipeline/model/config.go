package model

// ================ Config ================

// BreakerConfig tunes one circuit breaker instance.
type BreakerConfig struct {
	FailureThreshold int    `envconfig:"FAILURE_THRESHOLD" default:"5"`
	RecoveryTimeout  string `envconfig:"RECOVERY_TIMEOUT" default:"60s"`
}

// LimiterConfig tunes the token bucket guarding the zone-control service.
type LimiterConfig struct {
	Capacity   int     `envconfig:"LIMITER_CAPACITY" default:"50"`
	RefillRate float64 `envconfig:"LIMITER_REFILL_RATE" default:"20"`
	MaxWait    string  `envconfig:"LIMITER_MAX_WAIT" default:"10s"`
}

// ExecutorConfig bounds the action executor's fan-out.
type ExecutorConfig struct {
	MaxZonesPerMessage int    `envconfig:"EXECUTOR_MAX_ZONES" default:"5"`
	MaxConcurrentCalls int64  `envconfig:"EXECUTOR_MAX_CONCURRENT_CALLS" default:"50"`
	CallTimeout        string `envconfig:"EXECUTOR_CALL_TIMEOUT" default:"10s"`
	VolumeStep         int    `envconfig:"EXECUTOR_VOLUME_STEP" default:"10"`
}

// ReplyModelConfig configures the generative reply model.
type ReplyModelConfig struct {
	Model       string  `envconfig:"REPLY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"REPLY_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"REPLY_TEMPERATURE" default:"0.4"`
	Timeout     string  `envconfig:"REPLY_TIMEOUT" default:"15s"`
}

// ConsumerConfig drives the queue consumer, retry policy and dedup window.
type ConsumerConfig struct {
	QueueKey       string  `envconfig:"CONSUMER_QUEUE_KEY" default:"messages:incoming"`
	PopTimeout     string  `envconfig:"CONSUMER_POP_TIMEOUT" default:"5s"`
	DedupWindow    string  `envconfig:"CONSUMER_DEDUP_WINDOW" default:"10m"`
	MaxRetries     int     `envconfig:"CONSUMER_MAX_RETRIES" default:"3"`
	InitialDelay   string  `envconfig:"CONSUMER_RETRY_INITIAL_DELAY" default:"1s"`
	MaxDelay       string  `envconfig:"CONSUMER_RETRY_MAX_DELAY" default:"30s"`
	BackoffBase    float64 `envconfig:"CONSUMER_RETRY_BACKOFF_BASE" default:"2"`
	ProcessTimeout string  `envconfig:"CONSUMER_PROCESS_TIMEOUT" default:"60s"`
}

// DLQConfig drives the dead-letter reconciler.
type DLQConfig struct {
	Interval    string `envconfig:"DLQ_RECONCILE_INTERVAL" default:"5m"`
	EscalateAge string `envconfig:"DLQ_ESCALATE_AGE" default:"1h"`
	ScanLimit   int    `envconfig:"DLQ_SCAN_LIMIT" default:"100"`
}

// SessionConfig bounds the cached session data and conversation history.
type SessionConfig struct {
	TTL            string `envconfig:"SESSION_TTL" default:"30m"`
	HistoryTTL     string `envconfig:"CONVERSATION_HISTORY_TTL" default:"168h"`
	RecentMessages int    `envconfig:"SESSION_RECENT_MESSAGES" default:"10"`
}

// ZoneControlConfig points at the remote music-control API.
type ZoneControlConfig struct {
	BaseURL string `envconfig:"ZONE_CONTROL_BASE_URL" required:"true"`
	Token   string `envconfig:"ZONE_CONTROL_TOKEN"`
	Timeout string `envconfig:"ZONE_CONTROL_TIMEOUT" default:"10s"`
}

// MessagingConfig points at the outbound channel webhooks.
type MessagingConfig struct {
	WhatsAppURL string `envconfig:"MESSAGING_WHATSAPP_URL"`
	LineURL     string `envconfig:"MESSAGING_LINE_URL"`
	Timeout     string `envconfig:"MESSAGING_TIMEOUT" default:"10s"`
}
