package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sshcollectorpro/activerules/internal/util"
)

// EnvPrefix 环境变量前缀，例如 ACTIVE_RULES_SSH_PORT
const EnvPrefix = "ACTIVE_RULES"

// OnCommandError 取值
const (
	OnCommandErrorSkip  = "skip"
	OnCommandErrorAbort = "abort"
)

// Config 应用配置结构
type Config struct {
	SSH      SSHConfig      `mapstructure:"ssh"`
	Device   DeviceConfig   `mapstructure:"device"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Report   ReportConfig   `mapstructure:"report"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	History  HistoryConfig  `mapstructure:"history"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

// SSHConfig SSH 连接与交互参数
type SSHConfig struct {
	Port              int           `mapstructure:"port"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	// PromptSuffixes 提示符后缀（PAN-OS 操作模式为 ">"，配置模式为 "#"）
	PromptSuffixes []string `mapstructure:"prompt_suffixes"`
	// ErrorHints 命令回显中出现这些前缀时视为命令执行失败
	ErrorHints []string `mapstructure:"error_hints"`
	// Encoding 设备回显编码：auto | utf-8 | gbk | gb18030 | big5 | latin1
	Encoding string `mapstructure:"encoding"`
}

// DeviceConfig 设备端固定命令
type DeviceConfig struct {
	// SetupCommands 会话准备命令（输出格式、关闭分页）
	SetupCommands []string `mapstructure:"setup_commands"`
	// ListingCommand 会话列表命令
	ListingCommand string `mapstructure:"listing_command"`
}

// PipelineConfig 会话列表解析与追问命令生成
type PipelineConfig struct {
	SessionSkipLines  int      `mapstructure:"session_skip_lines"`
	SessionDelimiter  string   `mapstructure:"session_delimiter"`
	SessionMaxColumns int      `mapstructure:"session_max_columns"`
	SessionExclude    []string `mapstructure:"session_exclude"`
	CommandPrefix     string   `mapstructure:"command_prefix"`
	CommandSuffix     string   `mapstructure:"command_suffix"`
	// OnCommandError 追问命令失败时的策略：skip | abort
	OnCommandError string `mapstructure:"on_command_error"`
}

// ReportConfig 规则报表的解析与规范化
type ReportConfig struct {
	Title          string   `mapstructure:"title"`
	Delimiter      string   `mapstructure:"delimiter"`
	Exclude        []string `mapstructure:"exclude"`
	LabelDelimiter string   `mapstructure:"label_delimiter"`
	// StripPatterns 正则，命中片段从所有列中删除（如虚拟系统标记 "(vsys1)"）
	StripPatterns []string `mapstructure:"strip_patterns"`
}

// OutputConfig 本地输出
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	ReportName     string `mapstructure:"report_name"`
	CommandsName   string `mapstructure:"commands_name"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// StorageConfig 报表镜像存储
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置；Host 为空表示不启用
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled 是否配置了 MinIO
func (m MinioConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != "" && m.Port > 0
}

// HistoryConfig 运行历史（SQLite）
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig Prometheus textfile 导出
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// UIConfig 终端交互
type UIConfig struct {
	Banner      bool `mapstructure:"banner"`
	PauseOnExit bool `mapstructure:"pause_on_exit"`
}

// Load 加载配置文件
// configPath 为空时依次在 ./configs 与当前目录查找 config.yaml，找不到则仅使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.connect_timeout", 10*time.Second)
	v.SetDefault("ssh.command_timeout", 30*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 15*time.Second)
	v.SetDefault("ssh.prompt_suffixes", []string{">", "#"})
	v.SetDefault("ssh.error_hints", []string{"Invalid syntax", "Unknown command", "Server error"})
	v.SetDefault("ssh.encoding", "auto")

	// PAN-OS：set 格式输出、关闭分页、列出全部会话
	v.SetDefault("device.setup_commands", []string{"set cli config-output-format set", "set cli pager off"})
	v.SetDefault("device.listing_command", "show session all")

	// 会话列表：跳过前 3 行，仅取每行首个字段（会话 ID）
	v.SetDefault("pipeline.session_skip_lines", 3)
	v.SetDefault("pipeline.session_delimiter", "")
	v.SetDefault("pipeline.session_max_columns", 1)
	v.SetDefault("pipeline.session_exclude", []string{"Vsys", "vsys1", strings.Repeat("-", 80)})
	v.SetDefault("pipeline.command_prefix", "show session id ")
	v.SetDefault("pipeline.command_suffix", " | match rule")
	v.SetDefault("pipeline.on_command_error", OnCommandErrorSkip)

	v.SetDefault("report.title", "Rules With Active Sessions")
	v.SetDefault("report.delimiter", ",")
	v.SetDefault("report.exclude", []string{"QoS"})
	v.SetDefault("report.label_delimiter", ":")
	v.SetDefault("report.strip_patterns", []string{`\(vsys\d+\)`})

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.report_name", "active_sessions")
	v.SetDefault("output.commands_name", "showcommands")
	v.SetDefault("output.mkdir_if_missing", true)

	v.SetDefault("storage.minio.host", "")
	v.SetDefault("storage.minio.port", 0)
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "active-rules")
	v.SetDefault("storage.minio.secure", false)
	v.SetDefault("storage.minio.prefix", "reports")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "./data/history.db")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile_path", "./data/active_rules.prom")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "file")
	v.SetDefault("log.file_path", "./logs/active-rules.log")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("ui.banner", true)
	v.SetDefault("ui.pause_on_exit", false)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("invalid ssh.port: %d", c.SSH.Port)
	}
	if len(c.SSH.PromptSuffixes) == 0 {
		return fmt.Errorf("ssh.prompt_suffixes must not be empty")
	}
	if err := util.ValidCharset(c.SSH.Encoding); err != nil {
		return fmt.Errorf("invalid ssh.encoding: %w", err)
	}
	if strings.TrimSpace(c.Device.ListingCommand) == "" {
		return fmt.Errorf("device.listing_command must not be empty")
	}
	if c.Pipeline.SessionSkipLines < 0 {
		return fmt.Errorf("invalid pipeline.session_skip_lines: %d", c.Pipeline.SessionSkipLines)
	}
	if c.Pipeline.SessionMaxColumns < 0 {
		return fmt.Errorf("invalid pipeline.session_max_columns: %d", c.Pipeline.SessionMaxColumns)
	}
	switch c.Pipeline.OnCommandError {
	case OnCommandErrorSkip, OnCommandErrorAbort:
	default:
		return fmt.Errorf("invalid pipeline.on_command_error: %q (want skip or abort)", c.Pipeline.OnCommandError)
	}
	for _, d := range []string{c.Pipeline.SessionDelimiter, c.Report.Delimiter} {
		if len([]rune(d)) > 1 {
			return fmt.Errorf("delimiter must be empty or a single character, got %q", d)
		}
	}
	if strings.TrimSpace(c.Report.Title) == "" {
		return fmt.Errorf("report.title must not be empty")
	}
	for _, p := range c.Report.StripPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid report.strip_patterns entry %q: %w", p, err)
		}
	}
	if strings.TrimSpace(c.Output.Dir) == "" || strings.TrimSpace(c.Output.ReportName) == "" {
		return fmt.Errorf("output.dir and output.report_name must not be empty")
	}
	// TSV 报表与命令清单同为 .txt，同名会互相覆盖
	if c.Output.CommandsName != "" && artifactBase(c.Output.CommandsName) == artifactBase(c.Output.ReportName) {
		return fmt.Errorf("output.commands_name must differ from output.report_name (%q)", c.Output.ReportName)
	}
	return nil
}

func artifactBase(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, ext := range []string{".txt", ".csv"} {
		n = strings.TrimSuffix(n, ext)
	}
	return n
}
