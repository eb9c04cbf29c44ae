package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	// WriteTimeout 为 0 表示不限制；非 0 时事件流路由会尝试清除写截止时间
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
	Swagger      bool          `mapstructure:"swagger"`
}

// CORSConfig 跨域配置（自助终端/看板直接访问）
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allowOrigins"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	Port             string        `mapstructure:"port"`
	BaudRate         int           `mapstructure:"baudRate"`
	Address          int           `mapstructure:"address"`
	InterByteTimeout time.Duration `mapstructure:"interByteTimeout"`
	MinCommandGap    time.Duration `mapstructure:"minCommandGap"`
}

// LockerConfig 锁柜行为配置
type LockerConfig struct {
	// LayoutPath 格口尺寸 YAML；为空时按 CellCount 生成标准布局
	LayoutPath       string        `mapstructure:"layoutPath"`
	CellCount        int           `mapstructure:"cellCount"`
	PollInterval     time.Duration `mapstructure:"pollInterval"`
	FailureThreshold int           `mapstructure:"failureThreshold"`
	QueryTimeout     time.Duration `mapstructure:"queryTimeout"`
	OpenTimeout      time.Duration `mapstructure:"openTimeout"`
	AutoLockSeconds  int           `mapstructure:"autoLockSeconds"`
	FirmwareVersion  string        `mapstructure:"firmwareVersion"`
}

// SimulationConfig 模拟后端配置
type SimulationConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	OccupancyRatio float64       `mapstructure:"occupancyRatio"`
	Seed           int64         `mapstructure:"seed"`
	ConnectDelay   time.Duration `mapstructure:"connectDelay"`
	OpenDelay      time.Duration `mapstructure:"openDelay"`
	AutoCloseAfter time.Duration `mapstructure:"autoCloseAfter"`
}

// EventsConfig 事件推送配置
type EventsConfig struct {
	BufferSize int           `mapstructure:"bufferSize"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
}

// RedisConfig 门事件镜像到 Redis
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Channel      string        `mapstructure:"channel"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Locker     LockerConfig     `mapstructure:"locker"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Events     EventsConfig     `mapstructure:"events"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 LOCKER_CONFIG 读取；否则回退到 configs/locker.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 LOCKER_，并将点号替换为下划线
	v.SetEnvPrefix("LOCKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("locker")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	// 0 与 0xFF（广播）不能作为单板地址
	if c.Serial.Address < 1 || c.Serial.Address >= 0xFF {
		return fmt.Errorf("serial.address out of range [1,254]: %d", c.Serial.Address)
	}
	if !c.Simulation.Enabled && c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required unless simulation.enabled")
	}
	if c.Locker.LayoutPath == "" && c.Locker.CellCount <= 0 {
		return fmt.Errorf("locker.cellCount must be positive")
	}
	if c.Simulation.OccupancyRatio < 0 || c.Simulation.OccupancyRatio > 1 {
		return fmt.Errorf("simulation.occupancyRatio must be within [0,1]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "locker-gateway")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "0s")
	v.SetDefault("http.cors.allowOrigins", []string{"*"})
	v.SetDefault("http.swagger", false)

	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 9600)
	v.SetDefault("serial.address", 1)
	v.SetDefault("serial.interByteTimeout", "100ms")
	v.SetDefault("serial.minCommandGap", "20ms")

	v.SetDefault("locker.layoutPath", "")
	v.SetDefault("locker.cellCount", 16)
	v.SetDefault("locker.pollInterval", "500ms")
	v.SetDefault("locker.failureThreshold", 3)
	v.SetDefault("locker.queryTimeout", "2s")
	v.SetDefault("locker.openTimeout", "15s")
	v.SetDefault("locker.autoLockSeconds", 60)
	v.SetDefault("locker.firmwareVersion", "1.0.0")

	v.SetDefault("simulation.enabled", false)
	v.SetDefault("simulation.occupancyRatio", 0.3)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.connectDelay", "500ms")
	v.SetDefault("simulation.openDelay", "300ms")
	v.SetDefault("simulation.autoCloseAfter", "30s")

	v.SetDefault("events.bufferSize", 32)
	v.SetDefault("events.heartbeat", "15s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 1)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.channel", "locker:door-events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/locker-gateway.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
