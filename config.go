package walstream

import (
	"fmt"
	"time"
)

// WALLevel is the minimum logging level the server must be running at
// for START_REPLICATION to succeed (spec.md §4.D, §6).
type WALLevel int

const (
	WALLevelMinimal WALLevel = iota
	WALLevelReplica
	WALLevelLogical
)

// CompressionConfig controls the §2.5 COMPRESS extension.
type CompressionConfig struct {
	// Enabled allows a standby to opt in via START_REPLICATION ... COMPRESS.
	// False disables the codepath entirely regardless of what the standby asks for.
	Enabled bool `json:"enabled"`
}

// ConcurrencyConfig sizes the shared slot table and the periodic wake
// tick, the two knobs spec.md §6 calls "maximum concurrent senders" and
// "send-wait tick".
type ConcurrencyConfig struct {
	MaxSenders int           `json:"max_senders"`
	SendDelay  time.Duration `json:"send_delay"`
}

// StorageConfig describes where and how WAL segments are laid out on
// disk (spec.md §6 "Persisted state layout").
type StorageConfig struct {
	Dir    string    `json:"dir"`
	Layout WALLayout `json:"layout"`
}

// SenderConfig bundles every tunable spec.md §6 lists as "configuration
// values read", plus the per-batch framing limit §4.E sizes its output
// buffer from.
type SenderConfig struct {
	// MaxSendSize is the largest number of WAL bytes placed in a single
	// CopyData frame (spec.md §4.E, §8 invariant 4).
	MaxSendSize uint32 `json:"max_send_size"`

	// WALLevel is compared against the server's configured level at
	// START_REPLICATION; too low is fatal (spec.md §4.D, §7).
	WALLevel WALLevel `json:"wal_level"`

	// UpdateStatus toggles the StatusText bookkeeping (spec.md §3
	// supplemented feature); disabling it skips a small amount of
	// string formatting per batch.
	UpdateStatus bool `json:"update_status"`

	Concurrency ConcurrencyConfig `json:"concurrency"`
	Storage     StorageConfig     `json:"storage"`
	Compression CompressionConfig `json:"compression"`
	Log         LogConfig         `json:"log"`
}

// DefaultSenderConfig returns the configuration a standalone walsendd
// process starts with absent any flags or config file: PostgreSQL's
// traditional 16MiB/8KiB segment geometry, a 128KiB send size, a
// quarter-second wake tick, and compression off.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		MaxSendSize: 128 << 10,
		WALLevel:    WALLevelReplica,
		Concurrency: ConcurrencyConfig{
			MaxSenders: 10,
			SendDelay:  250 * time.Millisecond,
		},
		Storage: StorageConfig{
			Dir: "./pg_wal",
			Layout: WALLayout{
				Timeline:    1,
				SegSize:     DefaultSegSize,
				PageSize:    DefaultPageSize,
				LogFileSize: DefaultLogFileSize,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// HighThroughputConfig favors larger batches and a slower wake tick
// over low per-wake latency, mirroring the teacher corpus's
// HighThroughputConfig knob-tuning pattern.
func HighThroughputConfig() SenderConfig {
	cfg := DefaultSenderConfig()
	cfg.MaxSendSize = 1 << 20
	cfg.Concurrency.SendDelay = time.Second
	return cfg
}

// LowLatencyConfig favors a tight wake tick and small batches, trading
// throughput for how quickly a caught-up sender notices new WAL.
func LowLatencyConfig() SenderConfig {
	cfg := DefaultSenderConfig()
	cfg.MaxSendSize = 32 << 10
	cfg.Concurrency.SendDelay = 10 * time.Millisecond
	return cfg
}

// Validate checks the invariants the sender depends on before Init.
func (c SenderConfig) Validate() error {
	if c.MaxSendSize == 0 {
		return fmt.Errorf("walstream: MaxSendSize must be > 0")
	}
	if c.Concurrency.MaxSenders <= 0 {
		return fmt.Errorf("walstream: MaxSenders must be > 0")
	}
	if err := c.Storage.Layout.Validate(); err != nil {
		return err
	}
	if c.MaxSendSize < c.Storage.Layout.PageSize {
		return fmt.Errorf("walstream: MaxSendSize %d must be >= PageSize %d", c.MaxSendSize, c.Storage.Layout.PageSize)
	}
	return nil
}
