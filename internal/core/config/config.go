package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name      string
	Env       string
	PublicURL string `mapstructure:"public_url"`
	// 前后端分离部署时的允许来源；同源部署留空
	CORSOrigins []string `mapstructure:"cors_origins"`
	HTTP        HTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // 为空则只写 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int `mapstructure:"access_token_ttl_min"`
	RefreshTTLHours   int `mapstructure:"refresh_ttl_hours"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool
	LogLevel           string `mapstructure:"log_level"`
	// AdminDSN 特权连接，仅服务端持有；为空时后台功能降级
	AdminDSN string `mapstructure:"admin_dsn"`
}

type Storage struct {
	Endpoint  string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

type Google struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type OAuth struct {
	Google Google
}

type Cookie struct {
	Secure bool
	Domain string
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Storage Storage
	OAuth   OAuth
	Cookie  Cookie
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "takas-go")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.public_url", "http://127.0.0.1:8080")
	v.SetDefault("app.cors_origins", []string{})
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 10)
	v.SetDefault("app.http.writetimeoutsec", 0) // SSE 长连接，写超时交给中间件
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "takas-go")
	v.SetDefault("jwt.access_token_ttl_min", 15)
	v.SetDefault("jwt.refresh_ttl_hours", 24*14)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:takas.db?_pragma=foreign_keys(1)")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.bucket", "takas-images")
	// 以下仅为让 APP_ 环境变量可被 Unmarshal 识别
	for _, k := range []string{
		"jwt.secret", "db.admin_dsn", "db.username", "db.password", "redis.password",
		"storage.endpoint", "storage.access_key", "storage.secret_key", "storage.public_url",
		"oauth.google.client_id", "oauth.google.client_secret", "oauth.google.redirect_url",
		"cookie.domain", "log.file",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("cookie.secure", false)
	v.SetDefault("log.json", false)
}

// Load 读 yaml + APP_ 前缀环境变量；文件不存在时只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("config: jwt.secret must be at least 16 bytes")
	}
	return nil
}

// AdminEnabled 特权连接是否配置
func (c *Config) AdminEnabled() bool { return strings.TrimSpace(c.DB.AdminDSN) != "" }
