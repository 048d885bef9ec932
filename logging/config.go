package logging

import "time"

// Config tunes the Router built for one server or bot process: which sinks
// are active, how many Events the queue can hold before a tick's events
// start getting dropped, and the severity floor below which an Event (e.g.
// a routine round-advanced debug event) is discarded before it ever reaches
// a sink.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

// DefaultConfig logs info-severity events and above to the console, the
// reasonable default for a single running arena process.
func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
