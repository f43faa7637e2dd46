package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	RatioModeRelative = "relative"
	RatioModeAbsolute = "absolute"

	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreFile   = "file"
	StoreMemory = "memory"

	// DefaultCoinListFile 未配置币种时读取的币种列表文件
	DefaultCoinListFile = "supported_coin_list"
)

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	APIKey            string
	APISecret         string
	TLD               string // binance.com / binance.us
	Testnet           bool
	SellTimeout       time.Duration // 卖单等待终态的上限
	BuyTimeout        time.Duration // 买单等待终态的上限
	RequestsPerSecond float64       // REST 限流
	Burst             int
	UseStream         bool // 使用 miniTicker websocket 价格流
}

// StoreConfig 状态存储配置
type StoreConfig struct {
	Backend       string // sqlite / badger / file / memory
	Path          string
	EncryptionKey string // badger 加密 key（hex/base64，可选）
}

// DashboardConfig 状态页配置
type DashboardConfig struct {
	Enabled bool
	Listen  string
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// PaperConfig 纸交易初始余额（symbol -> 数量）
type PaperConfig struct {
	Balances map[string]string
}

// Config 应用配置
type Config struct {
	Bridge         string
	SupportedCoins []string
	CurrentCoin    string // 可选：起始资产

	ScoutMultiplier       float64
	ScoutMargin           float64
	ScoutSleepTime        time.Duration
	ScoutHistoryRetention time.Duration
	MinValueFloor         float64
	InitCooldown          time.Duration
	RatioMode             string

	DryRun    bool
	Exchange  ExchangeConfig
	Store     StoreConfig
	Dashboard DashboardConfig
	Notify    NotifyConfig
	Paper     PaperConfig

	LogLevel      string
	LogFile       string
	MetricsListen string // 为空则不启动 debug 服务
}

// ConfigFile 配置文件结构（YAML/JSON/TOML）
type ConfigFile struct {
	Bridge                string   `yaml:"bridge" json:"bridge" toml:"bridge"`
	SupportedCoins        []string `yaml:"supported_coins" json:"supported_coins" toml:"supported_coins"`
	SupportedCoinListFile string   `yaml:"supported_coin_list_file" json:"supported_coin_list_file" toml:"supported_coin_list_file"`
	CurrentCoin           string   `yaml:"current_coin" json:"current_coin" toml:"current_coin"`
	ScoutMultiplier       *float64 `yaml:"scout_multiplier" json:"scout_multiplier" toml:"scout_multiplier"`
	ScoutMargin           *float64 `yaml:"scout_margin" json:"scout_margin" toml:"scout_margin"`
	ScoutSleepTime        int      `yaml:"scout_sleep_time" json:"scout_sleep_time" toml:"scout_sleep_time"`          // 秒
	ScoutHistoryHours     float64  `yaml:"scout_history_hours" json:"scout_history_hours" toml:"scout_history_hours"` // 小时
	MinValueFloor         *float64 `yaml:"min_value_floor" json:"min_value_floor" toml:"min_value_floor"`
	InitCooldown          int      `yaml:"init_cooldown" json:"init_cooldown" toml:"init_cooldown"` // 秒
	RatioMode             string   `yaml:"ratio_mode" json:"ratio_mode" toml:"ratio_mode"`
	DryRun                bool     `yaml:"dry_run" json:"dry_run" toml:"dry_run"`
	Exchange              struct {
		APIKey            string  `yaml:"api_key" json:"api_key" toml:"api_key"`
		APISecret         string  `yaml:"api_secret_key" json:"api_secret_key" toml:"api_secret_key"`
		TLD               string  `yaml:"tld" json:"tld" toml:"tld"`
		Testnet           bool    `yaml:"testnet" json:"testnet" toml:"testnet"`
		SellTimeout       int     `yaml:"sell_timeout" json:"sell_timeout" toml:"sell_timeout"` // 分钟
		BuyTimeout        int     `yaml:"buy_timeout" json:"buy_timeout" toml:"buy_timeout"`    // 分钟
		RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`
		Burst             int     `yaml:"burst" json:"burst" toml:"burst"`
		UseStream         bool    `yaml:"use_stream" json:"use_stream" toml:"use_stream"`
	} `yaml:"exchange" json:"exchange" toml:"exchange"`
	Store struct {
		Backend       string `yaml:"backend" json:"backend" toml:"backend"`
		Path          string `yaml:"path" json:"path" toml:"path"`
		EncryptionKey string `yaml:"encryption_key" json:"encryption_key" toml:"encryption_key"`
	} `yaml:"store" json:"store" toml:"store"`
	Dashboard struct {
		Enabled *bool  `yaml:"enabled" json:"enabled" toml:"enabled"`
		Listen  string `yaml:"listen" json:"listen" toml:"listen"`
	} `yaml:"dashboard" json:"dashboard" toml:"dashboard"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url" json:"webhook_url" toml:"webhook_url"`
		Timeout    int    `yaml:"timeout" json:"timeout" toml:"timeout"` // 秒
	} `yaml:"notify" json:"notify" toml:"notify"`
	Paper struct {
		Balances map[string]string `yaml:"balances" json:"balances" toml:"balances"`
	} `yaml:"paper" json:"paper" toml:"paper"`
	LogLevel      string `yaml:"log_level" json:"log_level" toml:"log_level"`
	LogFile       string `yaml:"log_file" json:"log_file" toml:"log_file"`
	MetricsListen string `yaml:"metrics_listen" json:"metrics_listen" toml:"metrics_listen"`
}

// LoadFromFile 加载配置。优先级：环境变量 > 配置文件 > 默认值。
// filePath 为空时只使用环境变量和默认值。
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	coins, err := resolveCoins(cf)
	if err != nil {
		return nil, err
	}

	listen := cf.Dashboard.Listen
	if port := os.Getenv("PORT"); port != "" {
		listen = ":" + port
	}

	c := &Config{
		Bridge:         strings.ToUpper(getEnv("BRIDGE", getEnv("BRIDGE_SYMBOL", orDefault(cf.Bridge, "USDT")))),
		SupportedCoins: coins,
		CurrentCoin:    strings.ToUpper(getEnv("CURRENT_COIN", getEnv("CURRENT_COIN_SYMBOL", cf.CurrentCoin))),

		ScoutMultiplier:       parseFloatEnv("SCOUT_MULTIPLIER", floatOr(cf.ScoutMultiplier, 5)),
		ScoutMargin:           parseFloatEnv("SCOUT_MARGIN", floatOr(cf.ScoutMargin, 0.8)),
		ScoutSleepTime:        time.Duration(parseIntEnv("SCOUT_SLEEP_TIME", intOr(cf.ScoutSleepTime, 5))) * time.Second,
		ScoutHistoryRetention: hours(parseFloatEnv("HOURTOKEEPSCOUTHISTORY", parseFloatEnv("SCOUT_HISTORY_HOURS", positiveOr(cf.ScoutHistoryHours, 1)))),
		MinValueFloor:         parseFloatEnv("MIN_VALUE_FLOOR", floatOr(cf.MinValueFloor, 1)),
		InitCooldown:          time.Duration(parseIntEnv("INIT_COOLDOWN", intOr(cf.InitCooldown, 60))) * time.Second,
		RatioMode:             strings.ToLower(getEnv("RATIO_MODE", orDefault(cf.RatioMode, RatioModeRelative))),

		DryRun: parseBoolEnv("DRY_RUN", cf.DryRun),
		Exchange: ExchangeConfig{
			APIKey:            getEnv("API_KEY", cf.Exchange.APIKey),
			APISecret:         getEnv("API_SECRET_KEY", cf.Exchange.APISecret),
			TLD:               getEnv("TLD", orDefault(cf.Exchange.TLD, "com")),
			Testnet:           parseBoolEnv("TESTNET", cf.Exchange.Testnet),
			SellTimeout:       minutes(parseIntEnv("SELL_TIMEOUT", cf.Exchange.SellTimeout)),
			BuyTimeout:        minutes(parseIntEnv("BUY_TIMEOUT", cf.Exchange.BuyTimeout)),
			RequestsPerSecond: parseFloatEnv("EXCHANGE_RPS", positiveOr(cf.Exchange.RequestsPerSecond, 10)),
			Burst:             parseIntEnv("EXCHANGE_BURST", intOr(cf.Exchange.Burst, 20)),
			UseStream:         parseBoolEnv("USE_STREAM", cf.Exchange.UseStream),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", orDefault(cf.Store.Backend, StoreSQLite))),
			Path:          getEnv("STORE_PATH", cf.Store.Path),
			EncryptionKey: getEnv("STORE_ENCRYPTION_KEY", cf.Store.EncryptionKey),
		},
		Dashboard: DashboardConfig{
			Enabled: parseBoolEnv("DASHBOARD_ENABLED", boolOr(cf.Dashboard.Enabled, true)),
			Listen:  orDefault(listen, ":5000"),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", cf.Notify.WebhookURL),
			Timeout:    time.Duration(intOr(cf.Notify.Timeout, 10)) * time.Second,
		},
		Paper:         PaperConfig{Balances: cf.Paper.Balances},
		LogLevel:      getEnv("LOG_LEVEL", orDefault(cf.LogLevel, "info")),
		LogFile:       getEnv("LOG_FILE", orDefault(cf.LogFile, "logs/coinjump.log")),
		MetricsListen: getEnv("METRICS_LISTEN", cf.MetricsListen),
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath(c.Store.Backend)
	}
	if c.Exchange.SellTimeout <= 0 {
		c.Exchange.SellTimeout = 5 * time.Minute
	}
	if c.Exchange.BuyTimeout <= 0 {
		c.Exchange.BuyTimeout = 5 * time.Minute
	}
	return c, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Bridge == "" {
		return errors.New("bridge 未配置")
	}
	if len(c.SupportedCoins) == 0 {
		return errors.New("supported coin list 为空（SUPPORTED_COIN_LIST / supported_coins / supported_coin_list 文件）")
	}
	for _, s := range c.SupportedCoins {
		if s == c.Bridge {
			return fmt.Errorf("桥接资产 %s 不能出现在支持币种列表中", s)
		}
	}
	if c.ScoutMultiplier < 0 {
		return errors.New("scout_multiplier 不能为负数")
	}
	if c.ScoutMargin < 0 || c.ScoutMargin > 1 {
		return errors.New("scout_margin 必须在 0 到 1 之间")
	}
	if c.ScoutSleepTime <= 0 {
		return errors.New("scout_sleep_time 必须大于 0")
	}
	if c.MinValueFloor < 0 {
		return errors.New("min_value_floor 不能为负数")
	}
	switch c.RatioMode {
	case RatioModeRelative, RatioModeAbsolute:
	default:
		return fmt.Errorf("未知的 ratio_mode: %s", c.RatioMode)
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreBadger, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("未知的 store backend: %s", c.Store.Backend)
	}
	if !c.DryRun && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return errors.New("API_KEY / API_SECRET_KEY 未配置（或启用 dry_run）")
	}
	return nil
}

func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cf ConfigFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 TOML 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json, .toml)", ext)
	}
	return &cf, nil
}

// resolveCoins 币种列表优先级：SUPPORTED_COIN_LIST 环境变量 > 配置文件 > 币种列表文件
func resolveCoins(cf *ConfigFile) ([]string, error) {
	if env := os.Getenv("SUPPORTED_COIN_LIST"); strings.TrimSpace(env) != "" {
		return dedupSymbols(strings.Fields(env)), nil
	}
	if len(cf.SupportedCoins) > 0 {
		return dedupSymbols(cf.SupportedCoins), nil
	}
	path := orDefault(cf.SupportedCoinListFile, DefaultCoinListFile)
	coins, err := ReadCoinListFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取币种列表失败 %s: %w", path, err)
	}
	return coins, nil
}

// ReadCoinListFile 每行一个币种，# 开头为注释，重复项忽略
func ReadCoinListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dedupSymbols(lines), nil
}

func dedupSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func defaultStorePath(backend string) string {
	switch backend {
	case StoreBadger:
		return "data/badger"
	case StoreFile:
		return "data/state"
	case StoreMemory:
		return ""
	default:
		return "data/coinjump.db"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return v
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// parseBoolEnv true/1/yes 为真
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func positiveOr(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
