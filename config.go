package objcodec

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Wire format names accepted in Config.Format.
const (
	FormatJSON   = "json"
	FormatBinary = "binary"
)

// Config selects and tunes a codec. It is usually loaded from a YAML or JSON
// file with LoadConfig.
type Config struct {
	// Format is FormatJSON or FormatBinary.
	Format string `mapstructure:"format"`
	// Base64 makes a binary codec produce and accept base64 text.
	Base64 bool `mapstructure:"base64"`
	// MaxDepth bounds value nesting; zero means DefaultMaxDepth.
	MaxDepth int      `mapstructure:"max-depth"`
	Log      LogConfig `mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Format:   FormatJSON,
		MaxDepth: DefaultMaxDepth,
		Log:      LogConfig{Level: "warn", Format: "console"},
	}
}

// LoadConfig reads path over DefaultConfig. The file type follows the
// extension (.yaml, .yml or .json). Keys may be overridden by OBJCODEC_*
// environment variables, e.g. OBJCODEC_FORMAT or OBJCODEC_LOG_LEVEL.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()
	v := viper.New()
	v.SetDefault("format", def.Format)
	v.SetDefault("base64", def.Base64)
	v.SetDefault("max-depth", def.MaxDepth)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.stdout", def.Log.Stdout)

	v.SetEnvPrefix("objcodec")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "objcodec: load config %q", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "objcodec: decode config %q", path)
	}
	return cfg, nil
}

// NewFromConfig builds the codec cfg describes, with its own logger.
// Extra options are applied after the ones derived from cfg.
func NewFromConfig(cfg Config, opts ...Option) (StringCodec, error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "objcodec: build logger")
	}
	opts = append([]Option{WithLogger(logger), WithMaxDepth(cfg.MaxDepth)}, opts...)

	switch strings.ToLower(cfg.Format) {
	case FormatJSON, "":
		return NewJSON(opts...), nil
	case FormatBinary:
		c := NewBinary(opts...)
		if cfg.Base64 {
			return base64Codec{c}, nil
		}
		return c, nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "%q", cfg.Format)
}

// base64Codec carries binary payloads as base64 text end to end.
type base64Codec struct {
	*BinaryCodec
}

func (c base64Codec) Marshal(v any) ([]byte, error) {
	data, err := c.BinaryCodec.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

func (c base64Codec) Unmarshal(data []byte, v any) error {
	return c.BinaryCodec.UnmarshalBase64(string(data), v)
}
