package xio

import (
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/legamerdc/xio/poller"
)

// Listen 为监听地址配置
type Listen struct {
	Network   string `toml:"network"`    // tcp / tcp4 / tcp6
	Address   string `toml:"address"`    // 如 ":8080"
	ReusePort bool   `toml:"reuse_port"` // SO_REUSEPORT
}

// Config 为 Loop 与服务端的公共配置，可从 TOML 文件加载
type Config struct {
	LogLevel string `toml:"log_level"` // trace / debug / info / warn / error / disabled
	// HousekeepingInterval 限制单次内核等待，无 I/O 时也周期性醒来
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"`
	MaxEvents            int           `toml:"max_events"`     // 单次等待的最大事件数
	MaxChunkSize         uint32        `toml:"max_chunk_size"` // 单个 chunk 负载上限
	RxRingSize           int           `toml:"rx_ring_size"`   // 每连接接收环初始大小（字节）
	Listen               Listen        `toml:"listen"`
}

// DefaultConfig 提供一组可工作的默认值
func DefaultConfig() Config {
	return Config{
		LogLevel:             "info",
		HousekeepingInterval: 5 * time.Second,
		MaxEvents:            1024,
		MaxChunkSize:         16 << 20, // 16 MiB
		RxRingSize:           64 << 10, // 64 KiB
		Listen: Listen{
			Network: "tcp",
			Address: ":0",
		},
	}
}

// LoadConfig 从 TOML 文件加载配置，未出现的键保留默认值，未知键报错
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("xio: load config %s: %w", path, err)
	}
	return cfg, checkUndecoded(md)
}

// ParseConfig 与 LoadConfig 相同，输入为 TOML 文本
func ParseConfig(text string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("xio: parse config: %w", err)
	}
	return cfg, checkUndecoded(md)
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		return fmt.Errorf("%w: unknown config key %q", ErrInvalidArgument, keys[0].String())
	}
	return nil
}

// Level 解析 LogLevel，空值或无法识别时为 info
func (c Config) Level() zerolog.Level {
	if c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger 按 LogLevel 构造写入 w 的结构化日志
func (c Config) NewLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(c.Level()).With().Timestamp().Logger()
}

// PollerConfig 映射为 reactor 参数
func (c Config) PollerConfig(log zerolog.Logger) poller.Config {
	return poller.Config{
		MaxEvents:   c.MaxEvents,
		WaitTimeout: c.HousekeepingInterval,
		Logger:      log,
	}
}
