package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mathisdt/webuntis-fetcher/internal/names"
)

// Config 应用全局配置结构体
type Config struct {
	Output   OutputConfig    `mapstructure:"output"`
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"db"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Mail     MailConfig      `mapstructure:"mail"`
	Log      LogConfig       `mapstructure:"log"`
	Sections []SectionConfig `mapstructure:"sections" validate:"required,min=1,dive"`
}

// OutputConfig 时间表页面输出配置
type OutputConfig struct {
	TimetableFile string `mapstructure:"timetable_file"` // 为空时输出到 stdout
	Locale        string `mapstructure:"locale"`
	Timezone      string `mapstructure:"timezone"` // ICS 导出使用的时区
}

// ServerConfig serve 模式的 HTTP 服务器与定时任务配置
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	TimetableCron string `mapstructure:"timetable_cron"` // 为空时不定时刷新时间表文件
	MessagesCron  string `mapstructure:"messages_cron"`  // 为空时不定时转发消息
}

// DatabaseConfig PostgreSQL 数据库配置（仅 statistics_backend=db 时使用）
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	Timezone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（仅 message_store=redis 时使用）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailConfig 邮件发送配置
type MailConfig struct {
	Transport      string `mapstructure:"transport" validate:"oneof=smtp sendgrid console"`
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TeacherName 教师缩写 → 全名的静态映射项
// 以列表形式配置，避免 viper 将 map 键统一转为小写
type TeacherName struct {
	Short string `mapstructure:"short" validate:"required"`
	Name  string `mapstructure:"name"`
}

// SectionConfig 单个课表（学生班级或教师个人）的配置
type SectionConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Server   string `mapstructure:"server" validate:"required,url"`
	School   string `mapstructure:"school" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password"`

	Firstname string `mapstructure:"firstname" validate:"required"`
	Lastname  string `mapstructure:"lastname" validate:"required"`
	Class     string `mapstructure:"class"` // 非空表示班级课表，否则为个人课表

	StatisticsFile    string `mapstructure:"statistics_file"`
	StatisticsBackend string `mapstructure:"statistics_backend" validate:"omitempty,oneof=xlsx db"`
	ICSFile           string `mapstructure:"ics_file"`

	IgnoreInfotext          string        `mapstructure:"ignore_infotext"` // 以 "|" 分隔
	TeacherFullnameResolver string        `mapstructure:"teacher_fullname_resolver"`
	TeacherFullnames        []TeacherName `mapstructure:"teacher_fullnames" validate:"dive"`
	TeacherAsCancelled      string        `mapstructure:"teacher_as_cancelled"`
	RoomAsCancelled         string        `mapstructure:"room_as_cancelled"`

	MessageIDFile string `mapstructure:"message_id_file"`
	MessageStore  string `mapstructure:"message_store" validate:"omitempty,oneof=file redis"`
	MailFrom      string `mapstructure:"mail_from"`
	MailTo        string `mapstructure:"mail_to"`
}

// IsClassSchedule 是否为班级课表（影响预置时间段与渲染列）
func (s *SectionConfig) IsClassSchedule() bool {
	return s.Class != ""
}

// IgnoredInfotexts 解析忽略的附加文本列表
func (s *SectionConfig) IgnoredInfotexts() []string {
	if s.IgnoreInfotext == "" {
		return nil
	}
	parts := strings.Split(s.IgnoreInfotext, "|")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		result = append(result, strings.TrimSpace(p))
	}
	return result
}

// TeacherFullnameMap 教师缩写 → 全名（static 解析器使用）
func (s *SectionConfig) TeacherFullnameMap() map[string]string {
	m := make(map[string]string, len(s.TeacherFullnames))
	for _, t := range s.TeacherFullnames {
		m[t.Short] = t.Name
	}
	return m
}

// HasStatistics 是否记录课时统计
func (s *SectionConfig) HasStatistics() bool {
	return s.StatisticsBackend == "db" || s.StatisticsFile != ""
}

// StatisticsTitle 统计表标题："名 姓 - 班级"
func (s *SectionConfig) StatisticsTitle() string {
	title := s.Firstname + " " + s.Lastname
	if s.Class != "" {
		title += " - " + s.Class
	}
	return title
}

// UsesStatisticsDB 是否有课表使用数据库保存统计
func (c *Config) UsesStatisticsDB() bool {
	for _, s := range c.Sections {
		if s.StatisticsBackend == "db" {
			return true
		}
	}
	return false
}

// UsesRedis 是否有课表使用 Redis 记录已读消息
func (c *Config) UsesRedis() bool {
	for _, s := range c.Sections {
		if s.MessageStore == "redis" {
			return true
		}
	}
	return false
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("output.locale", "de_DE")
	v.SetDefault("output.timezone", "Europe/Berlin")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timetable_cron", "*/15 * * * *")
	v.SetDefault("server.messages_cron", "")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "webuntis_fetcher")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Berlin")
	v.SetDefault("db.max_open_conns", 5)
	v.SetDefault("db.max_idle_conns", 2)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.transport", "smtp")
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 25)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("UNTIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	for i := range cfg.Sections {
		cfg.Sections[i].applyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (s *SectionConfig) applyDefaults() {
	if s.StatisticsBackend == "" {
		s.StatisticsBackend = "xlsx"
	}
	if s.MessageStore == "" {
		s.MessageStore = "file"
	}
	if s.TeacherFullnameResolver == "" {
		if len(s.TeacherFullnames) > 0 {
			s.TeacherFullnameResolver = "static"
		} else {
			s.TeacherFullnameResolver = "identity"
		}
	}
}

var validate = validator.New()

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Mail.Transport == "sendgrid" && c.Mail.SendgridAPIKey == "" {
		return fmt.Errorf("配置校验失败: mail.sendgrid_api_key 不能为空")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	seen := make(map[string]bool, len(c.Sections))
	for _, s := range c.Sections {
		if seen[s.Name] {
			return fmt.Errorf("配置校验失败: section %q 重复", s.Name)
		}
		seen[s.Name] = true

		if r := s.TeacherFullnameResolver; r != "" && !slices.Contains(names.Names(), r) {
			return fmt.Errorf("配置校验失败: section %q 的 teacher_fullname_resolver %q 未注册，可选: %s",
				s.Name, r, strings.Join(names.Names(), ", "))
		}
	}
	return nil
}
