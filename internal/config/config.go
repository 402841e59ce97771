package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Env       string `mapstructure:"env"`
	BodyLimit string `mapstructure:"body_limit"`
	NoCORS    bool   `mapstructure:"no_cors"`
	Whitelist string `mapstructure:"whitelist"`
}

// AllowedOrigins returns the CORS origins. "*" when CORS restrictions are off.
func (s ServerConfig) AllowedOrigins() []string {
	if s.NoCORS || strings.TrimSpace(s.Whitelist) == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s.Whitelist, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	// TTL applied to each entity hash after a read repopulates it. Zero keeps
	// entries until the next write on the entity.
	TTL time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
	JWKSURL   string        `mapstructure:"jwks_url"`
}

type SecurityConfig struct {
	MaxWrongAttemptsByIPPerDay         int           `mapstructure:"max_wrong_attempts_by_ip_per_day"`
	MaxConsecutiveFailsByUsernameAndIP int           `mapstructure:"max_consecutive_fails_by_username_and_ip"`
	MaxWrongAttemptsByUsernamePerDay   int           `mapstructure:"max_wrong_attempts_by_username_per_day"`
	MaxLoginByUsernamePerDay           int           `mapstructure:"max_login_by_username_per_day"`
	BlockDuration                      time.Duration `mapstructure:"block_duration"`
	RequestsPerWindow                  int           `mapstructure:"requests_per_window"`
	RequestWindow                      time.Duration `mapstructure:"request_window"`
}

type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Service string `mapstructure:"service"`
}

type JobsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ExpiryInterval    time.Duration `mapstructure:"expiry_interval"`
	AnalyticsInterval time.Duration `mapstructure:"analytics_interval"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8005,
			Env:       "development",
			BodyLimit: "20KB",
			NoCORS:    true,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://127.0.0.1:27017",
			Database:       "maclink-saas",
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
		},
		Redis: RedisConfig{
			URL: "redis://127.0.0.1:6379",
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "maclink-auth",
		},
		Security: SecurityConfig{
			MaxWrongAttemptsByIPPerDay:         20,
			MaxConsecutiveFailsByUsernameAndIP: 10,
			MaxWrongAttemptsByUsernamePerDay:   15,
			MaxLoginByUsernamePerDay:           15,
			BlockDuration:                      10 * time.Hour,
			RequestsPerWindow:                  1000,
			RequestWindow:                      15 * time.Minute,
		},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "business-assets",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Service: "maclink-api",
		},
		Jobs: JobsConfig{
			Enabled:           true,
			ExpiryInterval:    time.Minute,
			AnalyticsInterval: 15 * time.Minute,
		},
	}
}

// Load reads configuration from an optional config file and environment
// variables. Environment variables use the prefix "MACLINK" and the dot in
// keys becomes an underscore, so "mongo.uri" is read from "MACLINK_MONGO_URI".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("MACLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
