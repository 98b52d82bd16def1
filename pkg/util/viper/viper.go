package viper

import (
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	spfviper "github.com/spf13/viper"
)

// EnvPrefix 为环境变量覆盖配置时使用的前缀，例如 RELAYCHAT_RELAY_PORT 覆盖 relay.port。
const EnvPrefix = "RELAYCHAT"

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
//
// 取值优先级（高到低）：命令行 flag、环境变量、配置文件、默认值。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config，并启用以 EnvPrefix 为前缀的环境变量覆盖。
func New() *Config {
	v := spfviper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Config{v: v}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// SetDefault 设置 key 的默认值，同时使该 key 可以被环境变量覆盖。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

// SetDefaults 批量设置默认值。
func (c *Config) SetDefaults(defaults map[string]any) {
	for k, v := range defaults {
		c.v.SetDefault(k, v)
	}
}

// BindPFlag 将命令行 flag 绑定到 key，flag 被显式设置时优先于其他来源。
func (c *Config) BindPFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	return c.v.BindPFlag(key, flag)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
//
// spf13/viper 的 UnmarshalKey 不合并子 key 上的环境变量与 flag 覆盖，
// 这里先展开为最终生效的配置再解析。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	resolved := spfviper.New()
	if err := resolved.MergeConfigMap(c.v.AllSettings()); err != nil {
		return err
	}
	return resolved.UnmarshalKey(key, dst)
}

func (c *Config) IsSet(key string) bool       { return c.v.IsSet(key) }
func (c *Config) GetString(key string) string { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int       { return c.v.GetInt(key) }
func (c *Config) ConfigFileUsed() string      { return c.v.ConfigFileUsed() }
