package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/gateway"
)

type Config struct {
	HttpPort int `json:"http_port"`

	DbConnString         string        `json:"db_conn_string"`
	DbMaxOpenConns       int           `json:"db_max_open_conns"`
	DbMaxIdleConns       int           `json:"db_max_idle_conns"`
	DbConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DbConnMaxLifetime    time.Duration `json:"-"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	GatewayUrl        string        `json:"gateway_url"`
	GatewayApiKey     string        `json:"gateway_api_key"`
	GatewaySenderId   string        `json:"gateway_sender_id"`
	GatewayTimeoutStr string        `json:"gateway_timeout"`
	GatewayTimeout    time.Duration `json:"-"`
	GatewayMaxRetry   int           `json:"gateway_max_retry"`

	GatewayRetryBaseDelayStr string        `json:"gateway_retry_base_delay"`
	GatewayRetryBaseDelay    time.Duration `json:"-"`

	DispatchConcurrency     int           `json:"dispatch_concurrency"`
	DispatchSendIntervalStr string        `json:"dispatch_send_interval"`
	DispatchSendInterval    time.Duration `json:"-"`
	DispatchTimeoutStr      string        `json:"dispatch_timeout"`
	DispatchTimeout         time.Duration `json:"-"`

	ReconcileIntervalStr   string        `json:"reconcile_interval"`
	ReconcileInterval      time.Duration `json:"-"`
	ReconcileStaleAfterStr string        `json:"reconcile_stale_after"`
	ReconcileStaleAfter    time.Duration `json:"-"`
	ReconcileBatchSize     int           `json:"reconcile_batch_size"`

	RequestRate  float64 `json:"request_rate"`
	RequestBurst int     `json:"request_burst"`
	WebhookToken string  `json:"webhook_token"`

	AmqpUrl   string `json:"amqp_url"`
	AmqpQueue string `json:"amqp_queue"`

	OtlpEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
}

// secrets that may be supplied through the environment instead of the config file
var envOverrides = map[string]func(*Config, string){
	"DB_CONN_STRING":    func(c *Config, v string) { c.DbConnString = v },
	"REDIS_ADDR":        func(c *Config, v string) { c.RedisAddr = v },
	"GATEWAY_URL":       func(c *Config, v string) { c.GatewayUrl = v },
	"GATEWAY_API_KEY":   func(c *Config, v string) { c.GatewayApiKey = v },
	"GATEWAY_SENDER_ID": func(c *Config, v string) { c.GatewaySenderId = v },
	"AMQP_URL":          func(c *Config, v string) { c.AmqpUrl = v },
}

// ReadConfigJson reads json formatted configuration from the given file.
// Environment variables in envOverrides take precedence over file values.
func ReadConfigJson(configFile string) (*Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)

	if err = json.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			apply(cfg, v)
		}
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"db_conn_max_lifetime", cfg.DbConnMaxLifetimeStr, &cfg.DbConnMaxLifetime, 30 * time.Minute},
		{"gateway_timeout", cfg.GatewayTimeoutStr, &cfg.GatewayTimeout, 30 * time.Second},
		{"gateway_retry_base_delay", cfg.GatewayRetryBaseDelayStr, &cfg.GatewayRetryBaseDelay, time.Second},
		{"dispatch_send_interval", cfg.DispatchSendIntervalStr, &cfg.DispatchSendInterval, 100 * time.Millisecond},
		{"dispatch_timeout", cfg.DispatchTimeoutStr, &cfg.DispatchTimeout, 2 * time.Minute},
		{"reconcile_interval", cfg.ReconcileIntervalStr, &cfg.ReconcileInterval, time.Minute},
		{"reconcile_stale_after", cfg.ReconcileStaleAfterStr, &cfg.ReconcileStaleAfter, 10 * time.Minute},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.def
			continue
		}
		if *d.dst, err = time.ParseDuration(d.raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	cfg.applyDefaults()

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HttpPort == 0 {
		c.HttpPort = 6060
	}
	if c.DbMaxOpenConns == 0 {
		c.DbMaxOpenConns = 20
	}
	if c.DbMaxIdleConns == 0 {
		c.DbMaxIdleConns = 5
	}
	if c.GatewayMaxRetry == 0 {
		c.GatewayMaxRetry = 3
	}
	if c.DispatchConcurrency == 0 {
		c.DispatchConcurrency = 5
	}
	if c.ReconcileBatchSize == 0 {
		c.ReconcileBatchSize = 500
	}
	if c.RequestRate == 0 {
		c.RequestRate = 5
	}
	if c.RequestBurst == 0 {
		c.RequestBurst = 10
	}
	if c.ServiceName == "" {
		c.ServiceName = "sms-campaign-service"
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DbConnString == "" {
		errs = append(errs, errors.New("db_conn_string is required"))
	}
	if c.GatewayUrl == "" {
		errs = append(errs, errors.New("gateway_url is required"))
	}
	if c.GatewayApiKey == "" {
		errs = append(errs, errors.New("gateway_api_key is required"))
	}
	if c.DispatchConcurrency < 0 || c.GatewayMaxRetry < 0 {
		errs = append(errs, errors.New("dispatch_concurrency and gateway_max_retry must not be negative"))
	}
	// the sweeper must not fail recipients a live dispatch may still be sending
	if busy := c.DispatchTimeout + c.Gateway().MaxSendDuration(); c.ReconcileStaleAfter <= busy {
		errs = append(errs, fmt.Errorf("reconcile_stale_after must exceed %s (dispatch_timeout plus the longest gateway send)", busy))
	}
	return errors.Join(errs...)
}

func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		URL:            c.GatewayUrl,
		APIKey:         c.GatewayApiKey,
		SenderID:       c.GatewaySenderId,
		Timeout:        c.GatewayTimeout,
		MaxAttempts:    c.GatewayMaxRetry,
		RetryBaseDelay: c.GatewayRetryBaseDelay,
	}
}
