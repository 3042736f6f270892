package bind

import (
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the tunables of request resolution and the router.
type Config struct {
	MaxBodyBytes        int64 `env:"BIND_MAX_BODY_BYTES" envDefault:"10485760"`
	MultipartMemory     int64 `env:"BIND_MULTIPART_MEMORY" envDefault:"33554432"`
	FileReadConcurrency int   `env:"BIND_FILE_READ_CONCURRENCY" envDefault:"4"`

	MediaTypePolicy   MediaTypePolicy `env:"BIND_MEDIA_TYPE_POLICY" envDefault:"lexicographic"`
	MediaTypePriority []string        `env:"BIND_MEDIA_TYPE_PRIORITY" envSeparator:","`

	ValidationStatus int `env:"BIND_VALIDATION_STATUS" envDefault:"422"`

	LogLevel zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool          `env:"BIND_DEBUG"`
}

var defaultConfig = sync.OnceValue(func() Config {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return c
})

// DefaultConfig returns the configuration built from the envDefault tags
// alone, ignoring the process environment.
func DefaultConfig() Config { return defaultConfig() }

// LoadConfig loads the given .env files, if any exist, and parses the
// process environment.
func LoadConfig(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, errors.Wrap(err, "load env files")
		}
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	return c, nil
}

// CompileOptions returns the compile options the configuration implies.
func (c Config) CompileOptions() []CompileOption {
	return []CompileOption{
		WithMediaTypePolicy(c.MediaTypePolicy, c.MediaTypePriority...),
		WithFileConcurrency(c.FileReadConcurrency),
		WithValidationStatus(c.ValidationStatus),
	}
}

// NewLogger builds a production zap logger at the configured level, or a
// development logger when Debug is set.
func (c Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Debug {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
