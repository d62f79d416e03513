package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrConfigTypeRequired is returned by NewViperFromBytes without a config type.
var ErrConfigTypeRequired = errors.New("config type is required")

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads the file at pathFile, lets environment variables override
// it (app.server.http.address -> APP_SERVER_HTTP_ADDRESS) and reloads it when
// the file changes.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()

	filename := path.Base(pathFile)
	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(strings.TrimSuffix(filename, path.Ext(filename)))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "error", err)
			return
		}
		slog.Info("config reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory. configType is any format
// viper understands ("yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigTypeRequired
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("modules.twofactor.credential_refresh_ttl_minutes", 15)
	v.SetDefault("modules.twofactor.recovery_code.count", 10)
	v.SetDefault("modules.twofactor.topic.security_event", "twofactor.security_event")
	v.SetDefault("modules.twofactor.topic.credential_changed", "identity.credential_changed")
	v.SetDefault("modules.twofactor.topic.account_removed", "identity.account_removed")
	v.SetDefault("modules.twofactor.consumer_group", "otpguard")
	v.SetDefault("mfa.totp.period", 30)
	v.SetDefault("mfa.totp.skew", 1)
	v.SetDefault("mfa.totp.digits", 6)
	v.SetDefault("jwt.device.ttl_days", 30)

	return v
}

func (vc *Viper) GetInt(key string) int       { return vc.v.GetInt(key) }
func (vc *Viper) GetInt32(key string) int32   { return vc.v.GetInt32(key) }
func (vc *Viper) GetInt64(key string) int64   { return vc.v.GetInt64(key) }
func (vc *Viper) GetUint(key string) uint     { return vc.v.GetUint(key) }
func (vc *Viper) GetUint16(key string) uint16 { return vc.v.GetUint16(key) }
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}
func (vc *Viper) GetBool(key string) bool     { return vc.v.GetBool(key) }
func (vc *Viper) GetString(key string) string { return vc.v.GetString(key) }

func (vc *Viper) GetSecond(key string) time.Duration { return vc.scaled(key, time.Second) }
func (vc *Viper) GetMinute(key string) time.Duration { return vc.scaled(key, time.Minute) }
func (vc *Viper) GetHour(key string) time.Duration   { return vc.scaled(key, time.Hour) }
func (vc *Viper) GetDay(key string) time.Duration    { return vc.scaled(key, 24*time.Hour) }

func (vc *Viper) scaled(key string, unit time.Duration) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * unit
}

// GetBinary returns the value for key decoded from base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v.GetString(key))
	if err != nil {
		return nil
	}

	return data
}

// GetArray returns the comma separated elements of key.
func (vc *Viper) GetArray(key string) []string {
	var raw []string
	if list, ok := vc.v.Get(key).([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				raw = append(raw, strings.Split(s, ",")...)
			}
		}
	} else {
		raw = strings.Split(vc.v.GetString(key), ",")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// GetList returns the elements of a list value as-is.
func (vc *Viper) GetList(key string) []string {
	return vc.v.GetStringSlice(key)
}

// GetMap returns the value for key parsed from "k:v,k:v" pairs.
func (vc *Viper) GetMap(key string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(vc.v.GetString(key), ",") {
		if k, val, ok := strings.Cut(pair, ":"); ok {
			m[strings.TrimSpace(k)] = strings.TrimSpace(val)
		}
	}

	return m
}

// Close stops nothing; viper holds no closable resources.
func (*Viper) Close() error {
	return nil
}
