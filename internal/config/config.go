package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort     = "8989"
	DefaultIdentity = "CS 124"

	DefaultProbeRetryCount = 8
	DefaultProbeRetryDelay = 512 * time.Millisecond
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Probe   ProbeConfig
	Dataset DatasetConfig
	Events  EventsConfig
	Feed    FeedConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	probe, err := loadProbeConfig()
	if err != nil {
		return nil, err
	}

	dataset, err := loadDatasetConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Probe:   probe,
		Dataset: dataset,
		Events:  loadEventsConfig(),
		Feed:    FeedConfig{Addr: strings.TrimSpace(os.Getenv("FEED_ADDR"))},
	}, nil
}

// ServerConfig 描述 HTTP 服务监听地址及客户端访问地址。
type ServerConfig struct {
	Addr     string
	BaseURL  string
	Identity string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	// Accept ":8989" or "127.0.0.1:8989" as well as a bare port.
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
	}
	if host == "" {
		host = "localhost"
	}

	baseURL := getEnvOrDefault("SERVER_URL", "http://"+net.JoinHostPort(host, p))
	return ServerConfig{
		Addr:     addr,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Identity: getEnvOrDefault("SERVER_IDENTITY", DefaultIdentity),
	}, nil
}

// ProbeConfig 描述就绪探测的重试次数与间隔。
type ProbeConfig struct {
	RetryCount int
	RetryDelay time.Duration
}

func loadProbeConfig() (ProbeConfig, error) {
	cfg := ProbeConfig{RetryCount: DefaultProbeRetryCount, RetryDelay: DefaultProbeRetryDelay}

	count, err := parseOptionalIntEnv("PROBE_RETRY_COUNT")
	if err != nil {
		return ProbeConfig{}, err
	}
	if count != nil {
		if *count < 1 {
			return ProbeConfig{}, fmt.Errorf("invalid PROBE_RETRY_COUNT value %d: must be positive", *count)
		}
		cfg.RetryCount = *count
	}

	delay, err := parseOptionalIntEnv("PROBE_RETRY_DELAY_MS")
	if err != nil {
		return ProbeConfig{}, err
	}
	if delay != nil {
		if *delay < 0 {
			return ProbeConfig{}, fmt.Errorf("invalid PROBE_RETRY_DELAY_MS value %d: must not be negative", *delay)
		}
		cfg.RetryDelay = time.Duration(*delay) * time.Millisecond
	}

	return cfg, nil
}

// DatasetConfig 描述地点数据集的来源。未配置路径和 S3 时使用内置数据集。
type DatasetConfig struct {
	Path   string
	Verify bool
	S3     S3Config
}

// S3Config 描述 S3 兼容存储中的数据集位置。
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Key       string
}

// Enabled 表示是否配置了 S3 数据集。
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func loadDatasetConfig() (DatasetConfig, error) {
	verify, err := parseBoolEnv("PLACES_DATASET_VERIFY", false)
	if err != nil {
		return DatasetConfig{}, err
	}

	useSSL, err := parseBoolEnv("PLACES_DATASET_S3_USE_SSL", false)
	if err != nil {
		return DatasetConfig{}, err
	}

	return DatasetConfig{
		Path:   strings.TrimSpace(os.Getenv("PLACES_DATASET_PATH")),
		Verify: verify,
		S3: S3Config{
			Endpoint:  strings.TrimSpace(os.Getenv("PLACES_DATASET_S3_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("PLACES_DATASET_S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("PLACES_DATASET_S3_SECRET_KEY")),
			UseSSL:    useSSL,
			Region:    strings.TrimSpace(os.Getenv("PLACES_DATASET_S3_REGION")),
			Bucket:    strings.TrimSpace(os.Getenv("PLACES_DATASET_S3_BUCKET")),
			Key:       getEnvOrDefault("PLACES_DATASET_S3_KEY", "places.csv"),
		},
	}, nil
}

// EventsConfig 描述可选的变更事件输出。
type EventsConfig struct {
	KafkaBroker        string
	KafkaTopic         string
	ElasticsearchURL   string
	ElasticsearchIndex string
}

func (c EventsConfig) KafkaEnabled() bool { return c.KafkaBroker != "" }

func (c EventsConfig) ElasticsearchEnabled() bool { return c.ElasticsearchURL != "" }

func loadEventsConfig() EventsConfig {
	return EventsConfig{
		KafkaBroker:        strings.TrimSpace(os.Getenv("KAFKA_BROKER")),
		KafkaTopic:         getEnvOrDefault("KAFKA_TOPIC", "places.events"),
		ElasticsearchURL:   strings.TrimSpace(os.Getenv("ELASTICSEARCH_URL")),
		ElasticsearchIndex: getEnvOrDefault("ELASTICSEARCH_INDEX", "places"),
	}
}

// FeedConfig 描述实时推送监听地址，Addr 为空时不启用。
type FeedConfig struct {
	Addr string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
