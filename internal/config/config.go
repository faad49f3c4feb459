package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	REST     RESTConfig     `yaml:"rest"`
	WS       WSConfig       `yaml:"ws"`
	State    StateConfig    `yaml:"state"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type StrategyConfig struct {
	Symbol         string        `yaml:"symbol"`
	Quantity       float64       `yaml:"quantity"`
	RSIPeriod      int           `yaml:"rsi_period"`
	RSIOversold    float64       `yaml:"rsi_oversold"`
	RSIOverbought  float64       `yaml:"rsi_overbought"`
	RSIExitLevel   float64       `yaml:"rsi_exit_level"`
	ATRPeriod      int           `yaml:"atr_period"`
	KRPeriod       int           `yaml:"kr_period"`
	KRBandwidth    float64       `yaml:"kr_bandwidth"`
	StopMultiple   float64       `yaml:"stop_multiple"`
	TargetMultiple float64       `yaml:"target_multiple"`
	EvalInterval   time.Duration `yaml:"eval_interval"`
	CandleInterval string        `yaml:"candle_interval"`
	CandleWindow   int           `yaml:"candle_window"`
}

type RiskConfig struct {
	MaxQuantity float64 `yaml:"max_quantity"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type TelegramConfig struct {
	Enabled              bool          `yaml:"enabled"`
	ChatID               string        `yaml:"chat_id"`
	OperatorEnabled      bool          `yaml:"operator_enabled"`
	OperatorAllowedUsers []int64       `yaml:"operator_allowed_user_ids"`
	OperatorPollInterval time.Duration `yaml:"operator_poll_interval"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/kr-reversion-bot.db"
	}
	s := &cfg.Strategy
	if s.RSIPeriod == 0 {
		s.RSIPeriod = 14
	}
	if s.RSIOversold == 0 {
		s.RSIOversold = 30
	}
	if s.RSIOverbought == 0 {
		s.RSIOverbought = 70
	}
	if s.RSIExitLevel == 0 {
		s.RSIExitLevel = 50
	}
	if s.ATRPeriod == 0 {
		s.ATRPeriod = 14
	}
	if s.KRPeriod == 0 {
		s.KRPeriod = 80
	}
	if s.KRBandwidth == 0 {
		s.KRBandwidth = 15
	}
	if s.StopMultiple == 0 {
		s.StopMultiple = 1.5
	}
	if s.TargetMultiple == 0 {
		s.TargetMultiple = 3.0
	}
	if s.EvalInterval == 0 {
		s.EvalInterval = time.Minute
	}
	if s.CandleInterval == "" {
		s.CandleInterval = "1d"
	}
	if s.CandleWindow == 0 {
		s.CandleWindow = s.KRPeriod + 20
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9184"
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.REST.BaseURL == "" {
		return errors.New("rest.base_url is required")
	}
	if cfg.WS.URL == "" {
		return errors.New("ws.url is required")
	}
	s := cfg.Strategy
	if s.Symbol == "" {
		return errors.New("strategy.symbol is required")
	}
	if s.Quantity <= 0 {
		return errors.New("strategy.quantity must be > 0")
	}
	if s.StopMultiple <= 0 || s.TargetMultiple <= 0 {
		return errors.New("strategy stop and target multiples must be > 0")
	}
	if s.CandleWindow <= s.KRPeriod {
		return errors.New("strategy.candle_window must exceed strategy.kr_period")
	}
	if s.CandleWindow <= s.RSIPeriod || s.CandleWindow <= s.ATRPeriod {
		return errors.New("strategy.candle_window must exceed the indicator periods")
	}
	if cfg.Risk.MaxQuantity > 0 && s.Quantity > cfg.Risk.MaxQuantity {
		return errors.New("strategy.quantity exceeds risk.max_quantity")
	}
	return nil
}
