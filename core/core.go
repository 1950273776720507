package core

import (
	"bytes"
	"context"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	Ctx      context.Context
	StopAll  context.CancelFunc
	RunMode  string
	LiveMode bool

	Version = "0.2.0"
)

const (
	RunModeApi   = "api"
	RunModeBatch = "batch"
	RunModeOther = "other"
)

const (
	DefaultDateFmt = "2006-01-02 15:04:05"
	DateFmtDay     = "20060102"
)

func init() {
	Ctx, StopAll = context.WithCancel(context.Background())
}

func SetRunMode(mode string) {
	RunMode = mode
	LiveMode = mode == RunModeApi
}

func MarshalYaml(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(v)
	_ = enc.Close()
	return buf.Bytes(), err
}

// Sleep waits d, returning false if the global context got cancelled first.
func Sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-Ctx.Done():
		return false
	}
}
