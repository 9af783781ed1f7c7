package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Drive    DriveConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int64
}

type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns URL when set, otherwise a postgres:// URL built from the parts.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	JobTTLSeconds int
}

type StorageConfig struct {
	Driver      string
	LocalRoot   string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
}

type PipelineConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
	ImportPort      string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("SERVER_MAX_UPLOAD_MB", 64)
		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DATABASE_URL", "")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "safety_stock")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
		viper.SetDefault("APP_DATA_DIR", "./data/output")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_JOB_TTL_SECONDS", 3600)
		viper.SetDefault("STORAGE_DRIVER", "local")
		viper.SetDefault("STORAGE_LOCAL_ROOT", "./data/objects")
		viper.SetDefault("S3_ENDPOINT", "")
		viper.SetDefault("S3_REGION", "us-east-1")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("PIPELINE_WORKERS", 4)
		viper.SetDefault("PIPELINE_QUEUE_SIZE", 64)
		viper.SetDefault("PIPELINE_JOB_TIMEOUT", "10m")
		viper.SetDefault("DRIVE_CREDENTIALS_FILE", "")
		viper.SetDefault("DRIVE_FOLDER_ID", "")
		viper.SetDefault("DRIVE_IMPORT_PORT", "8081")
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("LOG_FORMAT", "console")

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
				MaxUploadMB:    viper.GetInt64("SERVER_MAX_UPLOAD_MB"),
			},
			Database: DatabaseConfig{
				Enabled:  viper.GetBool("DB_ENABLED"),
				URL:      viper.GetString("DATABASE_URL"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				UploadDir: viper.GetString("APP_UPLOAD_DIR"),
				DataDir:   viper.GetString("APP_DATA_DIR"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				JobTTLSeconds: viper.GetInt("CACHE_JOB_TTL_SECONDS"),
			},
			Storage: StorageConfig{
				Driver:      viper.GetString("STORAGE_DRIVER"),
				LocalRoot:   viper.GetString("STORAGE_LOCAL_ROOT"),
				S3Endpoint:  viper.GetString("S3_ENDPOINT"),
				S3AccessKey: viper.GetString("S3_ACCESS_KEY"),
				S3SecretKey: viper.GetString("S3_SECRET_KEY"),
				S3Bucket:    viper.GetString("S3_BUCKET"),
				S3Region:    viper.GetString("S3_REGION"),
				S3UseSSL:    viper.GetBool("S3_USE_SSL"),
			},
			Pipeline: PipelineConfig{
				Workers:    viper.GetInt("PIPELINE_WORKERS"),
				QueueSize:  viper.GetInt("PIPELINE_QUEUE_SIZE"),
				JobTimeout: viper.GetDuration("PIPELINE_JOB_TIMEOUT"),
			},
			Drive: DriveConfig{
				CredentialsFile: viper.GetString("DRIVE_CREDENTIALS_FILE"),
				FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
				ImportPort:      viper.GetString("DRIVE_IMPORT_PORT"),
			},
			Log: LogConfig{
				Level:  viper.GetString("LOG_LEVEL"),
				Format: viper.GetString("LOG_FORMAT"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
