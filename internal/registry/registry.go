package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/config"
	"github.com/probeworks/smokecore/internal/infrastructure/database"
	"github.com/probeworks/smokecore/internal/infrastructure/kafka"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
	"github.com/probeworks/smokecore/internal/infrastructure/logstore"
	"github.com/probeworks/smokecore/internal/infrastructure/mqtt"
	"github.com/probeworks/smokecore/internal/infrastructure/storage"
)

// Builder constructs an uninitialized client instance from settings.
type Builder func(name string, settings client.Settings, log *logging.Logger) client.Service

// Registry maintains kind→builder mappings and the built client instances.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	log *logging.Logger

	mu        sync.RWMutex
	builders  map[client.Kind]Builder
	instances map[string]client.Service
}

// New creates an empty registry.
func New(log *logging.Logger) *Registry {
	return &Registry{
		log:       log,
		builders:  make(map[client.Kind]Builder),
		instances: make(map[string]client.Service),
	}
}

// Default creates a registry with the standard client kinds registered.
func Default(log *logging.Logger) *Registry {
	r := New(log)
	r.Register(client.KindLogBroker, func(name string, settings client.Settings, log *logging.Logger) client.Service {
		return kafka.New(name, settings, log)
	})
	r.Register(client.KindPubSub, func(name string, settings client.Settings, log *logging.Logger) client.Service {
		return mqtt.New(name, settings, log)
	})
	r.Register(client.KindObjectStore, func(name string, settings client.Settings, log *logging.Logger) client.Service {
		return storage.New(name, settings, log)
	})
	r.Register(client.KindLogStore, func(name string, settings client.Settings, log *logging.Logger) client.Service {
		return logstore.New(name, settings, log)
	})
	return r
}

// Register adds a builder for a client kind, replacing any existing one.
func (r *Registry) Register(kind client.Kind, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

// Kinds returns the registered client kinds.
func (r *Registry) Kinds() []client.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]client.Kind, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Build constructs a client of the given kind, initializes it, and caches it
// under name. A failed Init is not cached; the instance is discarded.
func (r *Registry) Build(ctx context.Context, kind client.Kind, name string, settings client.Settings) (client.Service, error) {
	r.mu.RLock()
	builder, ok := r.builders[kind]
	_, exists := r.instances[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown client kind: %q (registered: %v)", kind, r.Kinds())
	}
	if exists {
		return nil, fmt.Errorf("client %q already built", name)
	}

	svc := builder(name, settings, r.log)
	if err := svc.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing client %q: %w", name, err)
	}

	r.mu.Lock()
	r.instances[name] = svc
	r.mu.Unlock()

	return svc, nil
}

// Get returns the built client registered under name.
func (r *Registry) Get(name string) (client.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.instances[name]
	return svc, ok
}

// Names returns the names of all built clients.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	return names
}

// DestroyAll destroys every built client and clears the instance cache.
// Destroy failures are logged; DestroyAll itself never fails.
func (r *Registry) DestroyAll(ctx context.Context) {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]client.Service)
	r.mu.Unlock()

	for name, svc := range instances {
		if err := svc.Destroy(ctx); err != nil {
			r.log.Warn("destroying client failed", "client", name, "error", err)
		}
	}
}

// FromConfig builds the clients the configuration enables.
//
// The optional store supplies per-client setting overrides, merged over the
// YAML-derived settings. Messaging clients are built when their connection
// settings are present; storage and log-store clients when their sections are
// enabled.
func FromConfig(ctx context.Context, cfg *config.Config, store *database.Store, log *logging.Logger) (*Registry, error) {
	r := Default(log)

	build := func(kind client.Kind, name string, settings client.Settings) error {
		if store != nil {
			override, err := store.Get(ctx, kind, name)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("reading config overrides for %q: %w", name, err)
			}
			settings = merge(settings, override)
		}
		_, err := r.Build(ctx, kind, name, settings)
		return err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := build(client.KindLogBroker, "kafka", kafkaSettings(cfg.Kafka)); err != nil {
			return nil, err
		}
	}
	if cfg.MQTT.URL != "" {
		if err := build(client.KindPubSub, "mqtt", mqttSettings(cfg.MQTT)); err != nil {
			return nil, err
		}
	}
	if cfg.Storage.Enabled {
		if err := build(client.KindObjectStore, "storage", storageSettings(cfg.Storage)); err != nil {
			return nil, err
		}
	}
	if cfg.LogStore.Enabled {
		if err := build(client.KindLogStore, "logstore", logstoreSettings(cfg.LogStore)); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// merge overlays override on top of base without mutating either.
func merge(base, override client.Settings) client.Settings {
	if len(override) == 0 {
		return base
	}
	out := make(client.Settings, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// kafkaSettings converts the kafka config section to client settings.
func kafkaSettings(cfg config.KafkaConfig) client.Settings {
	return client.Settings{
		"brokers":  cfg.Brokers,
		"topics":   cfg.Topics,
		"groupId":  cfg.GroupID,
		"clientId": cfg.ClientID,
		"ssl":      cfg.SSL,
	}
}

// mqttSettings converts the mqtt config section to client settings.
func mqttSettings(cfg config.MQTTConfig) client.Settings {
	return client.Settings{
		"url":              cfg.URL,
		"clientId":         cfg.ClientID,
		"username":         cfg.Username,
		"password":         cfg.Password,
		"qos":              cfg.QoS,
		"reconnectPeriod":  cfg.ReconnectPeriodMs,
		"keepAlive":        time.Duration(cfg.KeepAliveSec) * time.Second,
		"connectTimeout":   cfg.ConnectTimeoutMs,
		"publishTimeout":   cfg.PublishTimeoutMs,
		"subscribeTimeout": cfg.SubscribeTimeoutMs,
		"cleanupTimeout":   cfg.CleanupTimeoutMs,
	}
}

// storageSettings converts the storage config section to client settings.
func storageSettings(cfg config.StorageConfig) client.Settings {
	return client.Settings{
		"bucket":         cfg.Bucket,
		"region":         cfg.Region,
		"endpoint":       cfg.Endpoint,
		"forcePathStyle": cfg.ForcePathStyle,
		"accessKeyId":    cfg.AccessKeyID,
		"secretKey":      cfg.SecretKey,
	}
}

// logstoreSettings converts the logstore config section to client settings.
func logstoreSettings(cfg config.LogStoreConfig) client.Settings {
	return client.Settings{
		"url":    cfg.URL,
		"token":  cfg.Token,
		"org":    cfg.Org,
		"bucket": cfg.Bucket,
	}
}
