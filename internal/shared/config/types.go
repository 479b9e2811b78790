package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SigninPath     string   `mapstructure:"signin_path"`
	StaticDir      string   `mapstructure:"static_dir"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	TLS            TLSConfig `mapstructure:"tls"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TLSConfig selects between file-based certificates and ACME autocert.
// When CertFile/KeyFile are set they win; otherwise AutocertDomains
// enables the ACME manager.
type TLSConfig struct {
	CertFile        string   `mapstructure:"cert_file"`
	KeyFile         string   `mapstructure:"key_file"`
	CAFile          string   `mapstructure:"ca_file"`
	AutocertDomains []string `mapstructure:"autocert_domains"`
	AutocertCacheDir string  `mapstructure:"autocert_cache_dir"`
}

func (t *TLSConfig) Enabled() bool {
	return (t.CertFile != "" && t.KeyFile != "") || len(t.AutocertDomains) > 0
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type CookieConfig struct {
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path"`
	Secure   bool   `mapstructure:"secure"`
	SameSite string `mapstructure:"same_site"`
}

type AuthConfig struct {
	// Secret keys the HMAC used for password, token, and API key hashes.
	Secret             string       `mapstructure:"secret"`
	TokenExpHours      int          `mapstructure:"token_exp_hours"`
	TwoFAExpSeconds    int          `mapstructure:"twofa_exp_seconds"`
	RequireActivation  bool         `mapstructure:"require_activation"`
	Cookie             CookieConfig `mapstructure:"cookie"`
}

func (a *AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(a.TokenExpHours) * time.Hour
}

func (a *AuthConfig) TwoFAExpiry() time.Duration {
	return time.Duration(a.TwoFAExpSeconds) * time.Second
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r *RedisConfig) Configured() bool {
	return r.Host != ""
}

// RateLimitGroup defines one named request budget: Limit requests per
// WindowSeconds for a single client identity.
type RateLimitGroup struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

func (g RateLimitGroup) Window() time.Duration {
	return time.Duration(g.WindowSeconds) * time.Second
}

type RateLimitConfig struct {
	Enabled bool                      `mapstructure:"enabled"`
	Groups  map[string]RateLimitGroup `mapstructure:"groups"`
}

type PaddleConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Sandbox       bool   `mapstructure:"sandbox"`
	CatalogPath   string `mapstructure:"catalog_path"`
	// SyncPolicy is one of "auto", "dry-run", "prompt".
	SyncPolicy string `mapstructure:"sync_policy"`
}
