package application

import (
	"time"

	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// RelayConfig 对应配置文件中的 relay 段。
type RelayConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	MaxLineBytes int    `mapstructure:"max_line_bytes"`
	// MetricsAddr 非空时在该地址上暴露 /metrics。
	MetricsAddr string `mapstructure:"metrics_addr"`
	// Events 为事件输出格式：text 或 json。
	Events string `mapstructure:"events"`
	// EventQueue 为事件分发队列长度。
	EventQueue int `mapstructure:"event_queue"`
}

// ReconnectConfig 对应 peer.reconnect 段。
type ReconnectConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	// MaxElapsedTime 为 0 表示不限制总重试时长。
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`
}

// PeerConfig 对应配置文件中的 peer 段。
type PeerConfig struct {
	Host         string          `mapstructure:"host"`
	Port         int             `mapstructure:"port"`
	MaxLineBytes int             `mapstructure:"max_line_bytes"`
	Reconnect    ReconnectConfig `mapstructure:"reconnect"`
}

func defaultSettings() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.format": "console",
		"log.stderr": true,
		"log.stdout": false,

		"log.file.rootpath": "",
		"log.file.filename": "",

		"relay.host":           "0.0.0.0",
		"relay.port":           9999,
		"relay.max_line_bytes": 64 * 1024,
		"relay.metrics_addr":   "",
		"relay.events":         "text",
		"relay.event_queue":    1024,

		"peer.host":                       "127.0.0.1",
		"peer.port":                       9999,
		"peer.max_line_bytes":             64 * 1024,
		"peer.reconnect.enabled":          false,
		"peer.reconnect.initial_interval": "500ms",
		"peer.reconnect.max_interval":     "10s",
		"peer.reconnect.max_elapsed_time": "0s",
	}
}

// RelayConfig 解析 relay 段并校验。
func (a *Application) RelayConfig() (RelayConfig, error) {
	var c RelayConfig
	if err := a.cfg.UnmarshalKey("relay", &c); err != nil {
		return c, err
	}
	if c.Port < 0 || c.Port > 65535 {
		return c, merr.WrapErrParameterInvalidRange(0, 65535, c.Port, "relay.port")
	}
	if c.Events != "text" && c.Events != "json" {
		return c, merr.WrapErrParameterInvalid("text|json", c.Events, "relay.events")
	}
	return c, nil
}

// PeerConfig 解析 peer 段并校验。
func (a *Application) PeerConfig() (PeerConfig, error) {
	var c PeerConfig
	if err := a.cfg.UnmarshalKey("peer", &c); err != nil {
		return c, err
	}
	if c.Host == "" {
		return c, merr.WrapErrParameterMissing("peer.host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return c, merr.WrapErrParameterInvalidRange(1, 65535, c.Port, "peer.port")
	}
	return c, nil
}
