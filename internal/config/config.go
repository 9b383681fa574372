// Package config は viper を用いて実行設定 (フラグ、環境変数、設定ファイル) を読み込みます。
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shouni/go-site-crawler/internal/logger"
)

// EnvPrefix は環境変数の接頭辞です (例: CRAWL_POLITENESS)。
const EnvPrefix = "CRAWL"

// 設定キー
const (
	KeySite          = "site"
	KeySitesFile     = "sites_file"
	KeyStorage       = "storage"
	KeyPoliteness    = "politeness"
	KeyTimeout       = "timeout"
	KeyMaxRetries    = "max_retries"
	KeyProgressEvery = "progress_every"
	KeyLogLevel      = "log.level"
	KeyLogEncoding   = "log.encoding"
	KeyLogDev        = "log.development"
)

// デフォルト値
const (
	DefaultSite          = "vysokeskoly"
	DefaultStorageRoot   = "./storage"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultProgressEvery = 100
)

// ErrInvalidConfig は設定値が不正な場合のエラーです。
var ErrInvalidConfig = errors.New("config: 設定が不正です")

// Config は1回の実行の設定です。
type Config struct {
	Site      string
	SitesFile string
	// Storage が空の場合は ./storage/<site> を使います。
	Storage string
	// Politeness が0の場合はサイト定義の値を使います。
	Politeness    time.Duration
	Timeout       time.Duration
	MaxRetries    int
	ProgressEvery int
	Log           logger.Config
}

// NewViper はこのアプリケーション用に設定された viper インスタンスを返します。
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults はデフォルト値を設定します。
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySite, DefaultSite)
	v.SetDefault(KeySitesFile, "")
	v.SetDefault(KeyStorage, "")
	v.SetDefault(KeyPoliteness, "0")
	v.SetDefault(KeyTimeout, DefaultTimeout.String())
	v.SetDefault(KeyMaxRetries, DefaultMaxRetries)
	v.SetDefault(KeyProgressEvery, DefaultProgressEvery)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogEncoding, "console")
	v.SetDefault(KeyLogDev, false)
}

// ReadConfigFile は YAML の設定ファイルを読み込みます。path が空の場合は何もしません。
func ReadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	return nil
}

// Load は viper から設定を読み出し、検証します。
func Load(v *viper.Viper) (Config, error) {
	politeness, err := duration(v, KeyPoliteness, time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	timeout, err := duration(v, KeyTimeout, time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Site:          strings.TrimSpace(v.GetString(KeySite)),
		SitesFile:     strings.TrimSpace(v.GetString(KeySitesFile)),
		Storage:       strings.TrimSpace(v.GetString(KeyStorage)),
		Politeness:    politeness,
		Timeout:       timeout,
		MaxRetries:    v.GetInt(KeyMaxRetries),
		ProgressEvery: v.GetInt(KeyProgressEvery),
		Log: logger.Config{
			Level:       v.GetString(KeyLogLevel),
			Encoding:    v.GetString(KeyLogEncoding),
			Development: v.GetBool(KeyLogDev),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値の範囲を検証します。
func (c Config) Validate() error {
	switch {
	case c.Site == "":
		return fmt.Errorf("%w: %s が空です", ErrInvalidConfig, KeySite)
	case c.Politeness < 0:
		return fmt.Errorf("%w: %s は負の値にできません: %s", ErrInvalidConfig, KeyPoliteness, c.Politeness)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: %s は正の値が必要です: %s", ErrInvalidConfig, KeyTimeout, c.Timeout)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: %s は0以上が必要です: %d", ErrInvalidConfig, KeyMaxRetries, c.MaxRetries)
	case c.ProgressEvery <= 0:
		return fmt.Errorf("%w: %s は正の値が必要です: %d", ErrInvalidConfig, KeyProgressEvery, c.ProgressEvery)
	}
	return nil
}

// StorageFor はサイトの保存先ディレクトリを返します。
// 設定の storage、サイト定義の storage、./storage/<site> の順に優先されます。
func (c Config) StorageFor(siteName, siteStorage string) string {
	if c.Storage != "" {
		return c.Storage
	}
	if siteStorage != "" {
		return siteStorage
	}
	return filepath.Join(DefaultStorageRoot, siteName)
}

// PolitenessFor は実際に使う待機間隔を返します。設定値がサイト定義より優先されます。
func (c Config) PolitenessFor(siteDefault time.Duration) (time.Duration, error) {
	interval := c.Politeness
	if interval == 0 {
		interval = siteDefault
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%w: %s は正の値が必要です (設定: %s, サイト定義: %s)", ErrInvalidConfig, KeyPoliteness, c.Politeness, siteDefault)
	}
	return interval, nil
}

// duration は Go の時間表記 ("1200ms") と整数の両方を受け付けます。整数は unit 単位として扱います。
func duration(v *viper.Viper, key string, unit time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s の値を解釈できません: %q", ErrInvalidConfig, key, raw)
	}
	return d, nil
}
