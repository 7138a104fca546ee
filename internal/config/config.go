package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Platform identifies the host family a capture strategy targets
type Platform string

const (
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// HostPlatform maps runtime.GOOS onto one of the supported platforms.
// Unknown unix flavours are treated as linux.
func HostPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// ParsePlatform validates a platform name from configuration
func ParsePlatform(name string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(name))) {
	case PlatformDarwin:
		return PlatformDarwin, nil
	case PlatformWindows:
		return PlatformWindows, nil
	case PlatformLinux:
		return PlatformLinux, nil
	}
	return "", fmt.Errorf("unknown platform %q (expected darwin, windows or linux)", name)
}

// Sensitivity is the echo cancellation sensitivity preset
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Capture modes
const (
	ModeAuto       = "auto"
	ModeSupervised = "supervised"
	ModeDelegated  = "delegated"
)

// Audio sources
const (
	SourceSystem     = "system"
	SourceMicrophone = "microphone"
)

// Screenshot quality tiers
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// AudioConfig describes the raw PCM stream and how it is chunked
type AudioConfig struct {
	SampleRate                  int         `mapstructure:"sample_rate" yaml:"sample_rate" json:"sampleRate"`
	Channels                    int         `mapstructure:"channels" yaml:"channels" json:"channels"`
	BitsPerSample               int         `mapstructure:"bits_per_sample" yaml:"bits_per_sample" json:"bitsPerSample"`
	ChunkDurationSeconds        float64     `mapstructure:"chunk_duration_seconds" yaml:"chunk_duration_seconds" json:"chunkDurationSeconds"`
	EchoCancellationEnabled     bool        `mapstructure:"echo_cancellation" yaml:"echo_cancellation" json:"echoCancellationEnabled"`
	EchoCancellationSensitivity Sensitivity `mapstructure:"echo_cancellation_sensitivity" yaml:"echo_cancellation_sensitivity" json:"echoCancellationSensitivity"`
	BufferSize                  int         `mapstructure:"buffer_size" yaml:"buffer_size" json:"bufferSize"`
}

// AudioPatch is a partial AudioConfig. Nil fields leave the current value untouched.
type AudioPatch struct {
	SampleRate                  *int         `mapstructure:"sample_rate" yaml:"sample_rate,omitempty" json:"sampleRate,omitempty"`
	Channels                    *int         `mapstructure:"channels" yaml:"channels,omitempty" json:"channels,omitempty"`
	BitsPerSample               *int         `mapstructure:"bits_per_sample" yaml:"bits_per_sample,omitempty" json:"bitsPerSample,omitempty"`
	ChunkDurationSeconds        *float64     `mapstructure:"chunk_duration_seconds" yaml:"chunk_duration_seconds,omitempty" json:"chunkDurationSeconds,omitempty"`
	EchoCancellationEnabled     *bool        `mapstructure:"echo_cancellation" yaml:"echo_cancellation,omitempty" json:"echoCancellationEnabled,omitempty"`
	EchoCancellationSensitivity *Sensitivity `mapstructure:"echo_cancellation_sensitivity" yaml:"echo_cancellation_sensitivity,omitempty" json:"echoCancellationSensitivity,omitempty"`
	BufferSize                  *int         `mapstructure:"buffer_size" yaml:"buffer_size,omitempty" json:"bufferSize,omitempty"`
}

// CaptureSettings selects how audio is obtained on the host
type CaptureSettings struct {
	Mode             string        `mapstructure:"mode" yaml:"mode" json:"mode"`       // "auto", "supervised", "delegated"
	Binary           string        `mapstructure:"binary" yaml:"binary" json:"binary"` // capture helper, absolute or relative to the executable
	Args             []string      `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"` // {sample_rate}, {channels}, {bits_per_sample}, {target} are expanded
	Source           string        `mapstructure:"source" yaml:"source" json:"source"` // "system", "microphone"
	Target           string        `mapstructure:"target" yaml:"target,omitempty" json:"target,omitempty"`
	StragglerTimeout time.Duration `mapstructure:"straggler_timeout" yaml:"straggler_timeout" json:"stragglerTimeout"`
}

// ScreenshotConfig configures the native still-capture command.
// "{output}" in Args is replaced by the temporary file path.
type ScreenshotConfig struct {
	Command        string   `mapstructure:"command" yaml:"command" json:"command"`
	Args           []string `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
	DefaultQuality string   `mapstructure:"default_quality" yaml:"default_quality" json:"defaultQuality"`
}

type PermissionsConfig struct {
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" json:"probeTimeout"`
	PromptTimeout time.Duration `mapstructure:"prompt_timeout" yaml:"prompt_timeout" json:"promptTimeout"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Directory string `mapstructure:"directory" yaml:"directory" json:"directory"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

// Config is the fully resolved configuration for one run
type Config struct {
	Platform    Platform          `mapstructure:"platform" yaml:"platform"`
	Audio       AudioConfig       `mapstructure:"audio" yaml:"audio"`
	Capture     CaptureSettings   `mapstructure:"capture" yaml:"capture"`
	Screenshot  ScreenshotConfig  `mapstructure:"screenshot" yaml:"screenshot"`
	Permissions PermissionsConfig `mapstructure:"permissions" yaml:"permissions"`
	Archive     ArchiveConfig     `mapstructure:"archive" yaml:"archive"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`

	// Internal field to track where each audio/capture value came from, for the info command
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

// Profile is a named overlay in the configs section of the file
type Profile struct {
	Audio       AudioPatch        `mapstructure:"audio" yaml:"audio"`
	Capture     CaptureSettings   `mapstructure:"capture" yaml:"capture"`
	Screenshot  ScreenshotConfig  `mapstructure:"screenshot" yaml:"screenshot"`
	Permissions PermissionsConfig `mapstructure:"permissions" yaml:"permissions"`
}

// RootConfig mirrors the on-disk file layout
type RootConfig struct {
	Platform     string              `mapstructure:"platform" yaml:"platform,omitempty"`
	ActiveConfig string              `mapstructure:"active_config" yaml:"active_config"`
	Logging      LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
	Archive      ArchiveConfig       `mapstructure:"archive" yaml:"archive"`
	Configs      map[string]*Profile `mapstructure:"configs" yaml:"configs"`
}

const (
	originPlatform = "platform-default"
	originInherit  = "inherited"
	originProfile  = "profile-specific"
)

var platformAudioDefaults = map[Platform]AudioConfig{
	// The darwin helper emits 24kHz interleaved stereo s16le
	PlatformDarwin: {
		SampleRate:                  24000,
		Channels:                    2,
		BitsPerSample:               16,
		ChunkDurationSeconds:        0.1,
		EchoCancellationEnabled:     true,
		EchoCancellationSensitivity: SensitivityMedium,
		BufferSize:                  4096,
	},
	PlatformWindows: {
		SampleRate:                  24000,
		Channels:                    1,
		BitsPerSample:               16,
		ChunkDurationSeconds:        0.1,
		EchoCancellationEnabled:     true,
		EchoCancellationSensitivity: SensitivityMedium,
		BufferSize:                  4096,
	},
	PlatformLinux: {
		SampleRate:                  24000,
		Channels:                    2,
		BitsPerSample:               16,
		ChunkDurationSeconds:        0.1,
		EchoCancellationEnabled:     false,
		EchoCancellationSensitivity: SensitivityMedium,
		BufferSize:                  4096,
	},
}

var platformCaptureDefaults = map[Platform]CaptureSettings{
	PlatformDarwin: {
		Mode:             ModeSupervised,
		Binary:           "SystemAudioDump",
		Source:           SourceSystem,
		StragglerTimeout: 3 * time.Second,
	},
	PlatformWindows: {
		Mode:             ModeDelegated,
		Source:           SourceSystem,
		StragglerTimeout: 3 * time.Second,
	},
	PlatformLinux: {
		Mode:             ModeDelegated,
		Binary:           "parec",
		Args:             []string{"--raw", "--format=s16le", "--rate={sample_rate}", "--channels={channels}", "--device={target}"},
		Source:           SourceSystem,
		Target:           "@DEFAULT_MONITOR@",
		StragglerTimeout: 3 * time.Second,
	},
}

var platformScreenshotDefaults = map[Platform]ScreenshotConfig{
	PlatformDarwin:  {Command: "screencapture", Args: []string{"-x", "-t", "png", "{output}"}, DefaultQuality: QualityMedium},
	PlatformWindows: {DefaultQuality: QualityMedium},
	PlatformLinux:   {Command: "grim", Args: []string{"{output}"}, DefaultQuality: QualityMedium},
}

// DefaultAudio returns the platform default audio configuration
func DefaultAudio(p Platform) AudioConfig {
	if a, ok := platformAudioDefaults[p]; ok {
		return a
	}
	return platformAudioDefaults[PlatformLinux]
}

// Default returns the complete default configuration for a platform
func Default(p Platform) *Config {
	capture, ok := platformCaptureDefaults[p]
	if !ok {
		p = PlatformLinux
		capture = platformCaptureDefaults[p]
	}
	capture.Args = append([]string(nil), capture.Args...)
	shot := platformScreenshotDefaults[p]
	shot.Args = append([]string(nil), shot.Args...)

	cfg := &Config{
		Platform:    p,
		Audio:       DefaultAudio(p),
		Capture:     capture,
		Screenshot:  shot,
		Permissions: PermissionsConfig{ProbeTimeout: 5 * time.Second, PromptTimeout: 2 * time.Minute},
		Archive: ArchiveConfig{
			Enabled:   false,
			Directory: filepath.Join(os.Getenv("HOME"), ".local", "share", "deskcapture", "sessions"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server:      ServerConfig{Port: "8080"},
		Inheritance: make(map[string]string),
	}
	for _, field := range audioFieldNames {
		cfg.Inheritance["audio."+field] = originPlatform
	}
	for _, field := range captureFieldNames {
		cfg.Inheritance["capture."+field] = originPlatform
	}
	return cfg
}

var audioFieldNames = []string{
	"sample_rate", "channels", "bits_per_sample", "chunk_duration_seconds",
	"echo_cancellation", "echo_cancellation_sensitivity", "buffer_size",
}

var captureFieldNames = []string{"mode", "binary", "args", "source", "target", "straggler_timeout"}

// FrameSize is the byte size of one interleaved sample frame
func (a AudioConfig) FrameSize() int {
	return a.Channels * a.BitsPerSample / 8
}

// ChunkSizeBytes is the byte length of one raw chunk window. The frame
// count is rounded first so the result is always frame-aligned.
func (a AudioConfig) ChunkSizeBytes() int {
	frames := int(math.Round(float64(a.SampleRate) * a.ChunkDurationSeconds))
	return frames * a.FrameSize()
}

// MimeType describes the mono PCM produced from this configuration
func (a AudioConfig) MimeType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", a.SampleRate)
}

// Validate checks the audio invariants
func (a AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be > 0, got: %d", a.SampleRate)
	}
	if a.BitsPerSample <= 0 || a.BitsPerSample%8 != 0 {
		return fmt.Errorf("bits_per_sample must be a positive multiple of 8, got: %d", a.BitsPerSample)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got: %d", a.Channels)
	}
	if a.Channels == 2 && a.BitsPerSample != 16 {
		return fmt.Errorf("stereo input requires bits_per_sample 16 for downmixing, got: %d", a.BitsPerSample)
	}
	if !(a.ChunkDurationSeconds > 0) {
		return fmt.Errorf("chunk_duration_seconds must be > 0, got: %v", a.ChunkDurationSeconds)
	}
	if a.ChunkSizeBytes() <= 0 {
		return fmt.Errorf("chunk_duration_seconds %v is shorter than one frame at %d Hz", a.ChunkDurationSeconds, a.SampleRate)
	}
	switch a.EchoCancellationSensitivity {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
	default:
		return fmt.Errorf("echo_cancellation_sensitivity must be 'low', 'medium' or 'high', got: %s", a.EchoCancellationSensitivity)
	}
	if a.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be >= 0, got: %d", a.BufferSize)
	}
	return nil
}

// Merge returns a copy of a with every non-nil field of p applied
func (a AudioConfig) Merge(p AudioPatch) AudioConfig {
	if p.SampleRate != nil {
		a.SampleRate = *p.SampleRate
	}
	if p.Channels != nil {
		a.Channels = *p.Channels
	}
	if p.BitsPerSample != nil {
		a.BitsPerSample = *p.BitsPerSample
	}
	if p.ChunkDurationSeconds != nil {
		a.ChunkDurationSeconds = *p.ChunkDurationSeconds
	}
	if p.EchoCancellationEnabled != nil {
		a.EchoCancellationEnabled = *p.EchoCancellationEnabled
	}
	if p.EchoCancellationSensitivity != nil {
		a.EchoCancellationSensitivity = *p.EchoCancellationSensitivity
	}
	if p.BufferSize != nil {
		a.BufferSize = *p.BufferSize
	}
	return a
}

// SetFields lists the configuration keys a patch touches
func (p AudioPatch) SetFields() []string {
	var fields []string
	if p.SampleRate != nil {
		fields = append(fields, "sample_rate")
	}
	if p.Channels != nil {
		fields = append(fields, "channels")
	}
	if p.BitsPerSample != nil {
		fields = append(fields, "bits_per_sample")
	}
	if p.ChunkDurationSeconds != nil {
		fields = append(fields, "chunk_duration_seconds")
	}
	if p.EchoCancellationEnabled != nil {
		fields = append(fields, "echo_cancellation")
	}
	if p.EchoCancellationSensitivity != nil {
		fields = append(fields, "echo_cancellation_sensitivity")
	}
	if p.BufferSize != nil {
		fields = append(fields, "buffer_size")
	}
	return fields
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	switch c.Capture.Mode {
	case ModeAuto, ModeSupervised, ModeDelegated:
	default:
		return fmt.Errorf("capture: mode must be 'auto', 'supervised' or 'delegated', got: %s", c.Capture.Mode)
	}
	if c.Capture.Mode == ModeSupervised && c.Platform == PlatformWindows {
		return fmt.Errorf("capture: supervised mode is not available on windows")
	}
	if c.Capture.Source != SourceSystem && c.Capture.Source != SourceMicrophone {
		return fmt.Errorf("capture: source must be 'system' or 'microphone', got: %s", c.Capture.Source)
	}
	if c.Capture.StragglerTimeout < 0 {
		return fmt.Errorf("capture: straggler_timeout must be >= 0, got: %s", c.Capture.StragglerTimeout)
	}
	switch c.Screenshot.DefaultQuality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("screenshot: default_quality must be 'low', 'medium' or 'high', got: %s", c.Screenshot.DefaultQuality)
	}
	if c.Permissions.ProbeTimeout <= 0 {
		return fmt.Errorf("permissions: probe_timeout must be > 0, got: %s", c.Permissions.ProbeTimeout)
	}
	if c.Permissions.PromptTimeout < 0 {
		return fmt.Errorf("permissions: prompt_timeout must be >= 0, got: %s", c.Permissions.PromptTimeout)
	}
	return nil
}

// LoadWithProfile resolves platform defaults, the default profile and the
// selected profile into one Config. A missing file yields platform defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return finalize(Default(HostPlatform()))
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if profile != "" {
			return nil, fmt.Errorf("configuration profile '%s' requested but %s does not exist", profile, configFile)
		}
		return finalize(Default(HostPlatform()))
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	platform := HostPlatform()
	if rootConfig.Platform != "" {
		platform, err = ParsePlatform(rootConfig.Platform)
		if err != nil {
			return nil, err
		}
	}
	cfg := Default(platform)

	// Global sections
	if rootConfig.Logging.Level != "" {
		cfg.Logging.Level = rootConfig.Logging.Level
	}
	if rootConfig.Logging.File != "" {
		cfg.Logging.File = rootConfig.Logging.File
	}
	if rootConfig.Logging.MaxSizeMB > 0 {
		cfg.Logging.MaxSizeMB = rootConfig.Logging.MaxSizeMB
	}
	if rootConfig.Logging.MaxBackups > 0 {
		cfg.Logging.MaxBackups = rootConfig.Logging.MaxBackups
	}
	if rootConfig.Logging.MaxAgeDays > 0 {
		cfg.Logging.MaxAgeDays = rootConfig.Logging.MaxAgeDays
	}
	if rootConfig.Server.Port != "" {
		cfg.Server.Port = rootConfig.Server.Port
	}
	cfg.Archive.Enabled = rootConfig.Archive.Enabled
	if rootConfig.Archive.Directory != "" {
		cfg.Archive.Directory = rootConfig.Archive.Directory
	}

	// Determine which profile to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	if base, exists := rootConfig.Configs["default"]; exists && base != nil {
		cfg.applyProfile(base, originInherit)
	}
	if configName != "default" {
		selected, exists := rootConfig.Configs[configName]
		if !exists || selected == nil {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		cfg.applyProfile(selected, originProfile)
	} else if _, exists := rootConfig.Configs["default"]; !exists && profile == "default" {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	cfg.Archive.Directory = expandPath(cfg.Archive.Directory)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyProfile overlays a profile, recording where each overridden value came from
func (c *Config) applyProfile(p *Profile, origin string) {
	c.Audio = c.Audio.Merge(p.Audio)
	for _, field := range p.Audio.SetFields() {
		c.Inheritance["audio."+field] = origin
	}

	if p.Capture.Mode != "" {
		c.Capture.Mode = p.Capture.Mode
		c.Inheritance["capture.mode"] = origin
	}
	if p.Capture.Binary != "" {
		c.Capture.Binary = p.Capture.Binary
		c.Inheritance["capture.binary"] = origin
	}
	if len(p.Capture.Args) > 0 {
		c.Capture.Args = append([]string(nil), p.Capture.Args...)
		c.Inheritance["capture.args"] = origin
	}
	if p.Capture.Source != "" {
		c.Capture.Source = p.Capture.Source
		c.Inheritance["capture.source"] = origin
	}
	if p.Capture.Target != "" {
		c.Capture.Target = p.Capture.Target
		c.Inheritance["capture.target"] = origin
	}
	if p.Capture.StragglerTimeout > 0 {
		c.Capture.StragglerTimeout = p.Capture.StragglerTimeout
		c.Inheritance["capture.straggler_timeout"] = origin
	}

	if p.Screenshot.Command != "" {
		c.Screenshot.Command = p.Screenshot.Command
		c.Screenshot.Args = append([]string(nil), p.Screenshot.Args...)
	}
	if p.Screenshot.DefaultQuality != "" {
		c.Screenshot.DefaultQuality = p.Screenshot.DefaultQuality
	}
	if p.Permissions.ProbeTimeout > 0 {
		c.Permissions.ProbeTimeout = p.Permissions.ProbeTimeout
	}
	if p.Permissions.PromptTimeout > 0 {
		c.Permissions.PromptTimeout = p.Permissions.PromptTimeout
	}
}

// ReadRootConfig reads and structurally validates the configuration file
func ReadRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	// Set environment variable prefix
	v.SetEnvPrefix("DESKCAPTURE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, p := range rootConfig.Configs {
		if p == nil {
			continue
		}
		if p.Capture.Mode != "" && p.Capture.Mode != ModeAuto && p.Capture.Mode != ModeSupervised && p.Capture.Mode != ModeDelegated {
			return nil, fmt.Errorf("invalid config '%s': capture.mode must be 'auto', 'supervised' or 'delegated', got: %s", name, p.Capture.Mode)
		}
		if p.Capture.Source != "" && p.Capture.Source != SourceSystem && p.Capture.Source != SourceMicrophone {
			return nil, fmt.Errorf("invalid config '%s': capture.source must be 'system' or 'microphone', got: %s", name, p.Capture.Source)
		}
	}

	return &rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with other readers
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ProfileNames lists the profiles declared in the file, sorted
func ProfileNames(configFile string) ([]string, error) {
	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
