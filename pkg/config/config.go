package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config holds client configuration for a single master/replica deployment.
// Clustered deployments reuse the same shape per partition.
type Config struct {
	// Address is the master node in host:port form
	Address string `yaml:"address"`

	// Replicas lists replica nodes in host:port form
	Replicas []string `yaml:"replicas"`

	// ReadMode selects replica or master reads
	ReadMode types.ReadMode `yaml:"read_mode"`

	// ConnectTimeout bounds connection establishment
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// OperationTimeout bounds a single checkout's use of a connection;
	// when it elapses the checkout is force-released
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// MasterPoolSize is the number of pooled master connections
	MasterPoolSize int `yaml:"master_pool_size"`

	// ReplicaPoolSize is the number of pooled connections per replica
	ReplicaPoolSize int `yaml:"replica_pool_size"`

	// PubSubPoolSize is the number of pub/sub connections per partition
	PubSubPoolSize int `yaml:"pubsub_pool_size"`

	// SubscriptionsPerConnection caps how many channels multiplex onto
	// one pub/sub connection
	SubscriptionsPerConnection int `yaml:"subscriptions_per_connection"`

	// EventLoopWorkers sizes the transport event loop
	EventLoopWorkers int `yaml:"event_loop_workers"`
}

// Default returns a config with production defaults applied.
func Default() *Config {
	return &Config{
		Address:                    "127.0.0.1:6379",
		ReadMode:                   types.ReadModeReplica,
		ConnectTimeout:             10 * time.Second,
		OperationTimeout:           60 * time.Second,
		MasterPoolSize:             10,
		ReplicaPoolSize:            10,
		PubSubPoolSize:             10,
		SubscriptionsPerConnection: 5,
		EventLoopWorkers:           4,
	}
}

// Load reads a YAML config file, applies defaults for unset fields, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with the Default() values.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.ReadMode == "" {
		c.ReadMode = def.ReadMode
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.MasterPoolSize == 0 {
		c.MasterPoolSize = def.MasterPoolSize
	}
	if c.ReplicaPoolSize == 0 {
		c.ReplicaPoolSize = def.ReplicaPoolSize
	}
	if c.PubSubPoolSize == 0 {
		c.PubSubPoolSize = def.PubSubPoolSize
	}
	if c.SubscriptionsPerConnection == 0 {
		c.SubscriptionsPerConnection = def.SubscriptionsPerConnection
	}
	if c.EventLoopWorkers == 0 {
		c.EventLoopWorkers = def.EventLoopWorkers
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.ReadMode != types.ReadModeReplica && c.ReadMode != types.ReadModeMaster {
		return fmt.Errorf("invalid read_mode %q", c.ReadMode)
	}
	if c.SubscriptionsPerConnection < 1 {
		return fmt.Errorf("subscriptions_per_connection must be at least 1, got %d", c.SubscriptionsPerConnection)
	}
	if c.MasterPoolSize < 1 || c.ReplicaPoolSize < 1 || c.PubSubPoolSize < 1 {
		return fmt.Errorf("pool sizes must be at least 1")
	}
	if c.ConnectTimeout <= 0 || c.OperationTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.EventLoopWorkers < 1 {
		return fmt.Errorf("event_loop_workers must be at least 1, got %d", c.EventLoopWorkers)
	}
	return nil
}
