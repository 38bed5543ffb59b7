package config

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SQUEEZE_PIPELINE_WORKERS=8.
const EnvPrefix = "SQUEEZE"

var (
	mu       sync.RWMutex
	current  *Config
	instance *viper.Viper
	validate = validatorV10.New()
)

// Load parses command-line flags from args, reads the optional config file and
// environment overrides, and validates the result. The loaded configuration
// becomes the value returned by Current.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("squeeze", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("log-level", "info", "minimum log level: debug, info, warn, error")
	fs.String("encoder", "jpeg", "JPEG encoder: jpeg or magick")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "failed to parse flags")
	}

	base := &Config{}
	if err := defaults.Set(base); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	v := viper.New()
	registerDefaults(v, "", reflect.ValueOf(base).Elem())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.addr":      "addr",
		"log.level":        "log-level",
		"pipeline.encoder": "encoder",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errors.Wrapf(err, "failed to bind flag %s", flag)
		}
	}

	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", *configPath)
		}
	} else {
		v.SetConfigName("squeeze")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	current = cfg
	instance = v
	mu.Unlock()
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// registerDefaults walks the defaulted struct and registers every leaf as a
// viper default so AutomaticEnv can resolve keys that never appear in a file.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// Default returns a configuration holding only the struct defaults.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Current returns the most recently loaded configuration, or nil before Load.
func Current() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Watch reloads the configuration whenever the config file changes and hands
// the new value to onChange. Invalid edits are reported through onError and
// the previous configuration stays current. No-op without a config file.
func Watch(onChange func(*Config), onError func(error)) bool {
	mu.RLock()
	v := instance
	mu.RUnlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(errors.Wrapf(err, "config reload from %s", e.Name))
			}
			return
		}
		mu.Lock()
		current = cfg
		mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return true
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"pipeline.queue_timeout":  c.Pipeline.QueueTimeout,
		"store.result_ttl":        c.Store.ResultTTL,
		"store.failure_ttl":       c.Store.FailureTTL,
		"store.cleanup_interval":  c.Store.CleanupInterval,
	} {
		if d <= 0 {
			return errors.Newf("invalid configuration: %s must be positive, got %s", name, d)
		}
	}

	d := c.Delivery
	missing := func(fields ...string) error {
		return errors.Newf("invalid configuration: delivery backend %q requires %s", d.Backend, strings.Join(fields, ", "))
	}
	switch d.Backend {
	case "directServe":
		if d.ServeDir == "" {
			return missing("delivery.serve_dir")
		}
	case "s3":
		if d.S3.Bucket == "" || d.S3.Region == "" {
			return missing("delivery.s3.bucket", "delivery.s3.region")
		}
	case "gcs":
		if d.GCS.Bucket == "" || d.GCS.CredentialsJSON == "" {
			return missing("delivery.gcs.bucket", "delivery.gcs.credentials_json")
		}
	case "sftp":
		if d.SFTP.Host == "" || d.SFTP.User == "" || d.SFTP.RemoteDir == "" {
			return missing("delivery.sftp.host", "delivery.sftp.user", "delivery.sftp.remote_dir")
		}
		if d.SFTP.Password == "" && d.SFTP.PrivateKey == "" {
			return missing("delivery.sftp.password or delivery.sftp.private_key")
		}
	case "oss":
		if d.OSS.Endpoint == "" || d.OSS.Bucket == "" {
			return missing("delivery.oss.endpoint", "delivery.oss.bucket")
		}
	}
	return nil
}
