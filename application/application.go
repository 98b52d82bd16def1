package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	zlog "github.com/lk2023060901/relaychat-go/pkg/log"
	zviper "github.com/lk2023060901/relaychat-go/pkg/util/viper"
)

// EnvConfigFilePath 为指定配置文件路径的环境变量。
const EnvConfigFilePath = "RELAYCHAT_CONFIG_FILE_PATH"

const defaultConfigPath = "./config.yaml"

// Application is the main runtime container for a relaychat binary.
// It owns configuration and manages common dependencies.
type Application struct {
	name     string
	flags    *pflag.FlagSet
	defaults map[string]any

	cfg     *zviper.Config
	loggers map[string]*zlog.MLogger
}

// Option customizes an Application.
type Option func(*Application)

// WithDefaults registers default values applied before the config file is read.
func WithDefaults(defaults map[string]any) Option {
	return func(a *Application) {
		for k, v := range defaults {
			a.defaults[k] = v
		}
	}
}

// New creates a new Application instance.
//
// The flag set gets a --config flag; binaries add their own flags before calling Run.
func New(name string, opts ...Option) *Application {
	a := &Application{
		name:     name,
		flags:    pflag.NewFlagSet(name, pflag.ContinueOnError),
		defaults: defaultSettings(),
	}
	a.flags.String("config", "", "path of the YAML/JSON config file")
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Flags returns the command-line flag set of the application.
func (a *Application) Flags() *pflag.FlagSet {
	return a.flags
}

// Run parses args and loads the configuration file
// using the following priority:
//  1. Default: ./config.yaml (optional)
//  2. Env: RELAYCHAT_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// An explicitly requested file must exist; a missing default file is ignored.
func (a *Application) Run(args []string) error {
	if err := a.flags.Parse(args); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	if _, err := maxprocs.Set(maxprocs.Logger(zlog.S().Debugf)); err != nil {
		zlog.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}
	zlog.Debug("application initialized",
		zap.String("app", a.name),
		zap.String("config", a.cfg.ConfigFileUsed()))
	return nil
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// SignalContext returns a context canceled on SIGINT or SIGTERM.
func (a *Application) SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	cfg := zviper.New()
	cfg.SetDefaults(a.defaults)

	configPath := defaultConfigPath
	explicit := false
	if envPath := os.Getenv(EnvConfigFilePath); envPath != "" {
		configPath = envPath
		explicit = true
	}
	if flagPath, _ := a.flags.GetString("config"); flagPath != "" {
		configPath = flagPath
		explicit = true
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLogger(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLogger configures the process-wide logger from the "log" section.
//
// Every key can be overridden through env, e.g. RELAYCHAT_LOG_LEVEL=debug,
// RELAYCHAT_LOG_FORMAT=json, RELAYCHAT_LOG_FILE_FILENAME=relay.log.
func (a *Application) initGlobalLogger() error {
	var cfg zlog.Config
	if err := a.cfg.UnmarshalKey("log", &cfg); err != nil {
		return fmt.Errorf("parse log config: %w", err)
	}
	logger, props, err := zlog.InitLogger(&cfg)
	if err != nil {
		return fmt.Errorf("init global logger: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  events:
//	    level: info
//	    format: json
//	    file:
//	      rootpath: ./logs
//	      filename: events.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}
