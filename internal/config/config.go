package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "wayfindr.cfg.json"

// FileStorageConfig holds file backend settings
type FileStorageConfig struct {
	DataDir  string `json:"dataDir" mapstructure:"dataDir"`
	Format   string `json:"format" mapstructure:"format"` // json or yaml
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds SQLite backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds Postgres backend settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type     string            `json:"type" mapstructure:"type"` // file, sqlite, postgres or memory
	File     FileStorageConfig `json:"file" mapstructure:"file"`
	SQLite   SQLiteConfig      `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig    `json:"postgres" mapstructure:"postgres"`
}

// CacheConfig bounds the session cache in front of storage
type CacheConfig struct {
	MaxEntries int           `json:"maxEntries" mapstructure:"maxEntries"`
	TTL        time.Duration `json:"ttl" mapstructure:"ttl"`
}

// NavigationConfig tunes navigation and rendering queries
type NavigationConfig struct {
	Deadzone          float64 `json:"deadzone" mapstructure:"deadzone"`
	MaxRenderDistance float64 `json:"maxRenderDistance" mapstructure:"maxRenderDistance"`
}

// ServerConfig holds replication server settings
type ServerConfig struct {
	Listen           string        `json:"listen" mapstructure:"listen"`
	World            string        `json:"world" mapstructure:"world"`
	Operators        []string      `json:"operators" mapstructure:"operators"`
	NotifyRejections bool          `json:"notifyRejections" mapstructure:"notifyRejections"`
	StatusFile       string        `json:"statusFile" mapstructure:"statusFile"`
	StatusInterval   time.Duration `json:"statusInterval" mapstructure:"statusInterval"`
}

// ClientConfig holds headless client settings
type ClientConfig struct {
	ServerURL    string        `json:"serverUrl" mapstructure:"serverUrl"`
	APIURL       string        `json:"apiUrl" mapstructure:"apiUrl"`
	PlayerID     string        `json:"playerId" mapstructure:"playerId"`
	SaveName     string        `json:"saveName" mapstructure:"saveName"`
	MaxReconnect time.Duration `json:"maxReconnect" mapstructure:"maxReconnect"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB metrics sink settings
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// GraylogConfig holds GELF sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./wayfindrlogs")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.dataDir", "./waypoints")
	viper.SetDefault("storage.file.format", "json")
	viper.SetDefault("storage.file.compress", false)
	viper.SetDefault("storage.sqlite.path", "./wayfindr.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "wayfindr")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("cache.maxEntries", 16)
	viper.SetDefault("cache.ttl", "5m")

	viper.SetDefault("navigation.deadzone", 3.0)
	viper.SetDefault("navigation.maxRenderDistance", 200.0)

	viper.SetDefault("server.listen", ":25580")
	viper.SetDefault("server.world", "world")
	viper.SetDefault("server.operators", []string{})
	viper.SetDefault("server.notifyRejections", false)
	viper.SetDefault("server.statusFile", "")
	viper.SetDefault("server.statusInterval", "10s")

	viper.SetDefault("client.serverUrl", "ws://localhost:25580/ws")
	viper.SetDefault("client.apiUrl", "http://localhost:25580")
	viper.SetDefault("client.playerId", "")
	viper.SetDefault("client.saveName", "")
	viper.SetDefault("client.maxReconnect", "30s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "wayfindr")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "wayfindr")
	viper.SetDefault("influx.bucket", "replication")
	viper.SetDefault("influx.backupDir", "./wayfindrlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults sets default values without reading a file.
func LoadDefaults() {
	setDefaults()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileStorageConfig{
			DataDir:  viper.GetString("storage.file.dataDir"),
			Format:   viper.GetString("storage.file.format"),
			Compress: viper.GetBool("storage.file.compress"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
	}
}

// GetCacheConfig returns the session cache configuration.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: viper.GetInt("cache.maxEntries"),
		TTL:        viper.GetDuration("cache.ttl"),
	}
}

// GetNavigationConfig returns the navigation configuration.
func GetNavigationConfig() NavigationConfig {
	return NavigationConfig{
		Deadzone:          viper.GetFloat64("navigation.deadzone"),
		MaxRenderDistance: viper.GetFloat64("navigation.maxRenderDistance"),
	}
}

// GetServerConfig returns the replication server configuration.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Listen:           viper.GetString("server.listen"),
		World:            viper.GetString("server.world"),
		Operators:        viper.GetStringSlice("server.operators"),
		NotifyRejections: viper.GetBool("server.notifyRejections"),
		StatusFile:       viper.GetString("server.statusFile"),
		StatusInterval:   viper.GetDuration("server.statusInterval"),
	}
}

// GetClientConfig returns the headless client configuration.
func GetClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:    viper.GetString("client.serverUrl"),
		APIURL:       viper.GetString("client.apiUrl"),
		PlayerID:     viper.GetString("client.playerId"),
		SaveName:     viper.GetString("client.saveName"),
		MaxReconnect: viper.GetDuration("client.maxReconnect"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
