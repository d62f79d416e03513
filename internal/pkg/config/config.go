package config

import (
	"io"
	"time"
)

// TimeConfig reads integer values and scales them to a duration unit.
type TimeConfig interface {
	// GetSecond reads key as a number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads key as a number of minutes.
	GetMinute(key string) time.Duration
	// GetHour reads key as a number of hours.
	GetHour(key string) time.Duration
	// GetDay reads key as a number of 24h days.
	GetDay(key string) time.Duration
}

// NumberConfig reads numeric values. Missing or unparsable keys yield zero.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetFloat64(key string) float64
}

// Config is the read-only view of the service configuration.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	GetBool(key string) bool
	GetString(key string) string

	// GetBinary reads a base64 encoded value; invalid encodings yield nil.
	GetBinary(key string) []byte

	// GetArray reads a comma separated value (or a list) as trimmed, non-empty elements.
	GetArray(key string) []string

	// GetList reads a list value without splitting its elements.
	GetList(key string) []string

	// GetMap reads a "k:v,k:v" value.
	GetMap(key string) map[string]string
}
