package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	StorageS3    = "s3"
	StorageLocal = "local"

	RembgHTTP = "http"
	RembgNone = "none"
)

type Config struct {
	Bucket          string
	OutputBucket    string
	SourcePrefix    string
	ProcessedPrefix string
	FlattenKeys     bool
	SkipProcessed   bool

	Enhance          bool
	CanvasSize       int
	Brightness       float64
	Saturation       float64
	SharpenRadius    float64
	SharpenPercent   float64
	SharpenThreshold int
	Trim             bool
	TrimThreshold    float64

	MaxInputDimension int
	MaxInputBytes     int64

	Storage     string
	LocalRoot   string
	S3Endpoint  string
	S3Region    string
	S3PathStyle bool

	RembgBackend        string
	RembgURL            string
	RembgModel          string
	RembgTimeout        time.Duration
	RembgWarmupSchedule string

	ServerAddr   string
	OtelEndpoint string
	ServiceName  string
	LogLevel     string
	LogFormat    string
}

// 每个配置项对应的环境变量，先设置的优先
var envBindings = map[string][]string{
	"bucket":                {"UPLOADS_BUCKET_NAME", "UPLOADS_BUCKET", "CLOSET_BUCKET", "S3_BUCKET", "BUCKET"},
	"output_bucket":         {"OUTPUT_BUCKET", "PROCESSED_BUCKET_NAME"},
	"source_prefix":         {"SOURCE_PREFIX"},
	"processed_prefix":      {"PROCESSED_PREFIX", "OUTPUT_PREFIX"},
	"flatten_keys":          {"OUTPUT_KEY_FLATTEN"},
	"skip_processed":        {"SKIP_PROCESSED"},
	"enhance":               {"ENHANCE"},
	"canvas_size":           {"CANVAS_SIZE"},
	"brightness":            {"BRIGHTNESS"},
	"saturation":            {"SATURATION"},
	"sharpen_radius":        {"SHARPEN_RADIUS"},
	"sharpen_percent":       {"SHARPEN_PERCENT"},
	"sharpen_threshold":     {"SHARPEN_THRESHOLD"},
	"trim":                  {"TRIM_TO_SUBJECT"},
	"trim_threshold":        {"TRIM_THRESHOLD"},
	"max_input_dimension":   {"MAX_INPUT_DIMENSION"},
	"max_input_bytes":       {"MAX_INPUT_BYTES"},
	"storage":               {"STORAGE_BACKEND"},
	"local_root":            {"LOCAL_ROOT"},
	"s3_endpoint":           {"AWS_ENDPOINT_URL_S3", "S3_ENDPOINT"},
	"s3_region":             {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"s3_path_style":         {"S3_USE_PATH_STYLE"},
	"rembg_backend":         {"REMBG_BACKEND"},
	"rembg_url":             {"REMBG_URL"},
	"rembg_model":           {"REMBG_MODEL_NAME"},
	"rembg_timeout":         {"REMBG_TIMEOUT"},
	"rembg_warmup_schedule": {"REMBG_WARMUP_SCHEDULE"},
	"server_addr":           {"SERVER_ADDR"},
	"otel_endpoint":         {"OTEL_EXPORTER_OTLP_ENDPOINT"},
	"service_name":          {"OTEL_SERVICE_NAME"},
	"log_level":             {"LOG_LEVEL"},
	"log_format":            {"LOG_FORMAT"},
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("bucket", "")
	v.SetDefault("output_bucket", "")
	v.SetDefault("source_prefix", "closet/")
	v.SetDefault("processed_prefix", "closet/processed")
	v.SetDefault("flatten_keys", false)
	v.SetDefault("skip_processed", true)
	v.SetDefault("enhance", true)
	v.SetDefault("canvas_size", 800)
	v.SetDefault("brightness", 1.1)
	v.SetDefault("saturation", 1.2)
	v.SetDefault("sharpen_radius", 1.5)
	v.SetDefault("sharpen_percent", 150)
	v.SetDefault("sharpen_threshold", 3)
	v.SetDefault("trim", false)
	v.SetDefault("trim_threshold", 0.05)
	v.SetDefault("max_input_dimension", 2048)
	v.SetDefault("max_input_bytes", 20<<20)
	v.SetDefault("storage", StorageS3)
	v.SetDefault("local_root", "./data")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_path_style", false)
	v.SetDefault("rembg_backend", RembgHTTP)
	v.SetDefault("rembg_url", "http://localhost:7000")
	v.SetDefault("rembg_model", "u2net")
	v.SetDefault("rembg_timeout", 60*time.Second)
	v.SetDefault("rembg_warmup_schedule", "")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("service_name", "cutout")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

func BindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// New 返回设置好默认值和环境变量绑定的 viper
// 调用 Load 之前还可以叠加命令行参数和配置文件
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Bucket:          strings.TrimSpace(v.GetString("bucket")),
		OutputBucket:    strings.TrimSpace(v.GetString("output_bucket")),
		SourcePrefix:    v.GetString("source_prefix"),
		ProcessedPrefix: v.GetString("processed_prefix"),
		FlattenKeys:     v.GetBool("flatten_keys"),
		SkipProcessed:   v.GetBool("skip_processed"),

		Enhance:          v.GetBool("enhance"),
		CanvasSize:       v.GetInt("canvas_size"),
		Brightness:       v.GetFloat64("brightness"),
		Saturation:       v.GetFloat64("saturation"),
		SharpenRadius:    v.GetFloat64("sharpen_radius"),
		SharpenPercent:   v.GetFloat64("sharpen_percent"),
		SharpenThreshold: v.GetInt("sharpen_threshold"),
		Trim:             v.GetBool("trim"),
		TrimThreshold:    v.GetFloat64("trim_threshold"),

		MaxInputDimension: v.GetInt("max_input_dimension"),
		MaxInputBytes:     v.GetInt64("max_input_bytes"),

		Storage:     strings.ToLower(v.GetString("storage")),
		LocalRoot:   v.GetString("local_root"),
		S3Endpoint:  v.GetString("s3_endpoint"),
		S3Region:    v.GetString("s3_region"),
		S3PathStyle: v.GetBool("s3_path_style"),

		RembgBackend:        strings.ToLower(v.GetString("rembg_backend")),
		RembgURL:            v.GetString("rembg_url"),
		RembgModel:          v.GetString("rembg_model"),
		RembgTimeout:        v.GetDuration("rembg_timeout"),
		RembgWarmupSchedule: strings.TrimSpace(v.GetString("rembg_warmup_schedule")),

		ServerAddr:   v.GetString("server_addr"),
		OtelEndpoint: v.GetString("otel_endpoint"),
		ServiceName:  v.GetString("service_name"),
		LogLevel:     v.GetString("log_level"),
		LogFormat:    v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Enhance && c.CanvasSize <= 0 {
		errs = append(errs, fmt.Errorf("canvas_size must be positive, got %d", c.CanvasSize))
	}
	if c.Brightness < 0 || c.Saturation < 0 {
		errs = append(errs, errors.New("brightness and saturation must not be negative"))
	}
	if c.TrimThreshold < 0 || c.TrimThreshold >= 1 {
		errs = append(errs, fmt.Errorf("trim_threshold must be in [0, 1), got %v", c.TrimThreshold))
	}
	if c.MaxInputDimension < 0 || c.MaxInputBytes < 0 {
		errs = append(errs, errors.New("input limits must not be negative"))
	}

	switch c.Storage {
	case StorageS3:
	case StorageLocal:
		if c.LocalRoot == "" {
			errs = append(errs, errors.New("local_root is required for local storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}

	switch c.RembgBackend {
	case RembgNone:
	case RembgHTTP:
		if strings.TrimSpace(c.RembgURL) == "" {
			errs = append(errs, errors.New("rembg_url is required for the http backend"))
		}
		if c.RembgTimeout <= 0 {
			errs = append(errs, errors.New("rembg_timeout must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rembg backend %q", c.RembgBackend))
	}

	if c.RembgWarmupSchedule != "" {
		if _, err := cron.ParseStandard(c.RembgWarmupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("rembg_warmup_schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}
