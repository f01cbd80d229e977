// Package config holds the coordination runtime's recognised options and
// their defaults, loadable from a YAML manifest the way the teacher loads
// its own on-disk manifests. Only the manifest is layered over the defaults;
// no flag or environment variable overrides any of these options.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/conclave/pkg/breaker"
	"github.com/cuemby/conclave/pkg/orchestrator"
	"github.com/cuemby/conclave/pkg/supervisor"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	MaxAgents             int   `yaml:"max_agents"`
	DefaultAgentTimeoutMs int64 `yaml:"default_agent_timeout_ms"`

	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Consensus  ConsensusConfig  `yaml:"consensus"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Breaker    BreakerConfig    `yaml:"circuit_breaker"`

	HTTPAddr               string `yaml:"http_addr"`
	HousekeepingIntervalMs int64  `yaml:"housekeeping_interval_ms"`
}

type KnowledgeConfig struct {
	MaxEntries  int    `yaml:"max_entries"`
	Persistence bool   `yaml:"persistence"`
	StoragePath string `yaml:"storage_path"`
}

type SchedulerConfig struct {
	MaxQueueSize int `yaml:"max_queue_size"`
}

type ConsensusConfig struct {
	DefaultType     string `yaml:"default_type"`
	VotingTimeoutMs int64  `yaml:"voting_timeout_ms"`
}

type MessagingConfig struct {
	RetentionMs     int64 `yaml:"retention_ms"`
	MaxMessageSize  int   `yaml:"max_message_size"`
	MailboxCapacity int   `yaml:"mailbox_capacity"`
}

type SupervisorConfig struct {
	HealthCheckIntervalMs int64 `yaml:"health_check_interval_ms"`
	MaxRestartWindowMs    int64 `yaml:"max_restart_window_ms"`
	MaxRestarts           int   `yaml:"max_restarts"`
}

type BreakerConfig struct {
	FailureThreshold int   `yaml:"failure_threshold"`
	SuccessThreshold int   `yaml:"success_threshold"`
	OpenTimeoutMs    int64 `yaml:"open_timeout_ms"`
}

// Default returns the configuration with every spec-mandated default (§6.4)
// applied.
func Default() Config {
	return Config{
		MaxAgents:             10,
		DefaultAgentTimeoutMs: 300000,
		Knowledge: KnowledgeConfig{
			MaxEntries: 10000,
		},
		Scheduler: SchedulerConfig{
			MaxQueueSize: 1000,
		},
		Consensus: ConsensusConfig{
			DefaultType:     "SIMPLE_MAJORITY",
			VotingTimeoutMs: 60000,
		},
		Messaging: MessagingConfig{
			RetentionMs:     86400000,
			MaxMessageSize:  1048576,
			MailboxCapacity: 10000,
		},
		Supervisor: SupervisorConfig{
			HealthCheckIntervalMs: 1000,
			MaxRestartWindowMs:    60000,
			MaxRestarts:           3,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeoutMs:    30000,
		},
		HTTPAddr:               ":8090",
		HousekeepingIntervalMs: 10000,
	}
}

// Load reads a YAML manifest at path and applies it over Default(), so an
// omitted field keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToOrchestratorConfig translates the loaded document into the orchestrator's
// own configuration struct, including the nested breaker and supervisor
// configs it embeds.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxAgents:                  c.MaxAgents,
		DefaultAgentTimeoutMs:      c.DefaultAgentTimeoutMs,
		MailboxCapacity:            c.Messaging.MailboxCapacity,
		RetentionMs:                c.Messaging.RetentionMs,
		HousekeepingIntervalMs:     c.HousekeepingIntervalMs,
		MessageLogCapacityPerAgent: 100,
		Breaker:                    c.ToBreakerConfig(),
		Supervisor:                 c.ToSupervisorConfig(),
	}
}

// ToBreakerConfig translates the circuit breaker section into breaker.Config.
func (c Config) ToBreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		SuccessThreshold: c.Breaker.SuccessThreshold,
		OpenTimeout:      time.Duration(c.Breaker.OpenTimeoutMs) * time.Millisecond,
	}
}

// ToSupervisorConfig translates the supervisor section into supervisor.Config.
// Strategy is always ONE_FOR_ONE; the caller is expected to set ID, which has
// no §6.4 default.
func (c Config) ToSupervisorConfig() supervisor.Config {
	return supervisor.Config{
		HealthCheckIntervalMs: c.Supervisor.HealthCheckIntervalMs,
		MaxRestartWindowMs:    c.Supervisor.MaxRestartWindowMs,
		MaxRestarts:           c.Supervisor.MaxRestarts,
		Strategy:              supervisor.OneForOne,
	}
}
