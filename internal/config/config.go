package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hearing-go/internal/procedure"
)

var (
	mu   sync.RWMutex
	conf Config
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Test    TestConfig    `mapstructure:"test"`
	Assets  AssetsConfig  `mapstructure:"assets"`
}

// ServerConfig holds the local input surface settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type AudioConfig struct {
	SampleRate   int    `mapstructure:"sample_rate"`
	FadeMS       int    `mapstructure:"fade_ms"`
	EspeakBinary string `mapstructure:"espeak_binary"`
}

func (a AudioConfig) Fade() time.Duration {
	return time.Duration(a.FadeMS) * time.Millisecond
}

// TestConfig holds the procedure timings and the speech language.
type TestConfig struct {
	Language              string  `mapstructure:"language"`
	ToneSeconds           float64 `mapstructure:"tone_seconds"`
	ResponseWindowSeconds float64 `mapstructure:"response_window_seconds"`
	MinGapMS              int     `mapstructure:"min_gap_ms"`
	MaxGapMS              int     `mapstructure:"max_gap_ms"`
	PairPauseSeconds      float64 `mapstructure:"pair_pause_seconds"`
	FeedbackPauseSeconds  float64 `mapstructure:"feedback_pause_seconds"`
	WordDelaySeconds      float64 `mapstructure:"word_delay_seconds"`
	AnswerPauseSeconds    float64 `mapstructure:"answer_pause_seconds"`
}

// Timing converts the configured values. Practice run timings keep their defaults.
func (t TestConfig) Timing() procedure.Timing {
	tm := procedure.DefaultTiming()
	tm.ToneDuration = seconds(t.ToneSeconds)
	tm.ResponseWindow = seconds(t.ResponseWindowSeconds)
	tm.MinGap = time.Duration(t.MinGapMS) * time.Millisecond
	tm.MaxGap = time.Duration(t.MaxGapMS) * time.Millisecond
	tm.PairPause = seconds(t.PairPauseSeconds)
	tm.FeedbackPause = seconds(t.FeedbackPauseSeconds)
	tm.WordDelay = seconds(t.WordDelaySeconds)
	tm.AnswerPause = seconds(t.AnswerPauseSeconds)
	return tm
}

// AssetsConfig points at scenario and word list files. Empty means the embedded defaults.
type AssetsConfig struct {
	Scenarios string `mapstructure:"scenarios"`
	Words     string `mapstructure:"words"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// The input surface is for the subject at this machine only
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "5050")

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.fade_ms", 10)
	v.SetDefault("audio.espeak_binary", "espeak-ng")

	v.SetDefault("test.language", "en")
	v.SetDefault("test.tone_seconds", 1.5)
	v.SetDefault("test.response_window_seconds", 3.5)
	v.SetDefault("test.min_gap_ms", 1000)
	v.SetDefault("test.max_gap_ms", 3000)
	v.SetDefault("test.pair_pause_seconds", 2.0)
	v.SetDefault("test.feedback_pause_seconds", 1.5)
	v.SetDefault("test.word_delay_seconds", 1.0)
	v.SetDefault("test.answer_pause_seconds", 0.8)

	v.SetDefault("assets.scenarios", "")
	v.SetDefault("assets.words", "")
}

// Load reads defaults, then config/config.yaml under projectRoot, then HEARING_* env vars.
// The returned viper instance can be passed to Watch.
func Load(projectRoot string) (*viper.Viper, Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("HEARING") // e.g., HEARING_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	set(c)
	return v, c, nil
}

// Watch reloads the configuration when the file changes.
// Running tests keep the values they started with.
func Watch(v *viper.Viper, log *zap.Logger) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		set(c)
	})
}

// Get returns the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return conf
}

func set(c Config) {
	mu.Lock()
	conf = c
	mu.Unlock()
}
