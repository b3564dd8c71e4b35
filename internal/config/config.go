package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Accounts AccountsConfig `yaml:"accounts"`
	Task     TaskConfig     `yaml:"task"`
	Provider ProviderConfig `yaml:"provider"`
	Notify   NotifyConfig   `yaml:"notify"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

type AccountsConfig struct {
	// Cookies 多账号 cookie，用 ### 分隔。
	Cookies string `yaml:"cookies"`
}

type TaskConfig struct {
	// Tasks 逗号分隔：share_video,live_sign,manga_sign,add_coin；为空表示全部。
	Tasks           string `yaml:"tasks"`
	CoinAddNum      *int   `yaml:"coinAddNum"`
	CoinSelectLike  *bool  `yaml:"coinSelectLike"`
	CoinVideoSource string `yaml:"coinVideoSource"`
}

// CoinsToAdd returns the configured donation count, 1 when unset and never negative.
func (c TaskConfig) CoinsToAdd() int {
	if c.CoinAddNum == nil {
		return 1
	}
	if *c.CoinAddNum < 0 {
		return 0
	}
	return *c.CoinAddNum
}

func (c TaskConfig) SelectLike() bool {
	if c.CoinSelectLike == nil {
		return true
	}
	return *c.CoinSelectLike
}

type ProviderConfig struct {
	APIBaseURL   string `yaml:"apiBaseURL"`
	LiveBaseURL  string `yaml:"liveBaseURL"`
	MangaBaseURL string `yaml:"mangaBaseURL"`
	TimeoutMs    int    `yaml:"timeoutMs"`
	UserAgent    string `yaml:"userAgent"`
	Proxy        string `yaml:"proxy"`
}

func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type NotifyConfig struct {
	PushPlus PushPlusConfig `yaml:"pushPlus"`
	Email    EmailConfig    `yaml:"email"`
}

type PushPlusConfig struct {
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
}

type EmailConfig struct {
	Address  string `yaml:"address"`
	AuthCode string `yaml:"authCode"`
}

func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != "" && strings.TrimSpace(c.AuthCode) != ""
}

type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// Location 解析时区；容器里缺少 tzdata 时退回固定的 UTC+8。
func (c ScheduleConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the optional yaml file, then the optional dotenv files, then overlays the
// process environment. A missing yaml or dotenv file is not an error.
func Load(path string, envFiles ...string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, err
		}
	}

	for _, f := range envFiles {
		if f == "" {
			continue
		}
		// godotenv.Load 不覆盖已经存在的环境变量
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("BILIBILI_COOKIE", &c.Accounts.Cookies)
	str("PUSH_PLUS_TOKEN", &c.Notify.PushPlus.Token)
	str("EMAIL_ADDRESS", &c.Notify.Email.Address)
	str("EMAIL_AUTH_CODE", &c.Notify.Email.AuthCode)
	str("TASK_CONFIG", &c.Task.Tasks)
	str("COIN_VIDEO_SOURCE", &c.Task.CoinVideoSource)
	str("CRON_SPEC", &c.Schedule.Cron)
	str("TZ_NAME", &c.Schedule.Timezone)
	str("LOG_LEVEL", &c.Log.Level)
	str("BILIBILI_PROXY", &c.Provider.Proxy)

	if v, ok := lookup("COIN_ADD_NUM"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("COIN_ADD_NUM: %w", err)
		}
		c.Task.CoinAddNum = &n
	}
	if v, ok := lookup("COIN_SELECT_LIKE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("COIN_SELECT_LIKE: %w", err)
		}
		c.Task.CoinSelectLike = &b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Task.CoinVideoSource == "" {
		c.Task.CoinVideoSource = "dynamic"
	}
	if c.Provider.APIBaseURL == "" {
		c.Provider.APIBaseURL = "https://api.bilibili.com"
	}
	if c.Provider.LiveBaseURL == "" {
		c.Provider.LiveBaseURL = "https://api.live.bilibili.com"
	}
	if c.Provider.MangaBaseURL == "" {
		c.Provider.MangaBaseURL = "https://manga.bilibili.com"
	}
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36"
	}
	if c.Notify.PushPlus.Endpoint == "" {
		c.Notify.PushPlus.Endpoint = "http://www.pushplus.plus/send"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Shanghai"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(strings.ReplaceAll(c.Accounts.Cookies, "###", "")) == "" {
		return errors.New("BILIBILI_COOKIE is required")
	}
	switch c.Task.CoinVideoSource {
	case "dynamic", "ranking":
	default:
		return fmt.Errorf("COIN_VIDEO_SOURCE must be dynamic or ranking, got %q", c.Task.CoinVideoSource)
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("CRON_SPEC %q: %w", c.Schedule.Cron, err)
		}
	}
	return nil
}
