package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
)

// Defaults applied when settings omit the corresponding key.
const (
	defaultGroupID     = "smoke-test-group"
	defaultClientID    = "smoke-test-client"
	defaultWaitTimeout = 30 * time.Second
)

// Factory seams for constructor injection in tests.
var (
	newBrokerClient       = sarama.NewClient
	newSyncProducer       = sarama.NewSyncProducerFromClient
	newGroupFromClient    = sarama.NewConsumerGroupFromClient
	newStandaloneGroup    = sarama.NewConsumerGroup
	supportedKafkaVersion = sarama.V2_8_0_0
)

// Client is the log-broker client.
//
// It owns one broker client, one producer, and at most one durable consumer
// group. All handles are created in Init and released in Destroy; a failed
// Init leaves no handles behind.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client.Base
	log *logging.Logger

	// Resolved from settings during Init.
	brokers  []string
	groupID  string
	clientID string
	ssl      bool

	mu       sync.Mutex
	topics   []string // tracked topic set, deduplicated, subscription order
	broker   sarama.Client
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup

	// consumeCancel stops the durable consume loop, when one is running.
	consumeCancel context.CancelFunc
}

// New creates an uninitialized log-broker client from settings.
//
// Recognised settings: brokers ([]string, required), topics ([]string,
// required), groupId, clientId, ssl.
func New(name string, settings client.Settings, log *logging.Logger) *Client {
	return &Client{
		Base: client.NewBase(name, client.KindLogBroker, settings),
		log:  log.With("component", componentClient, "client", name),
	}
}

// Init validates settings, connects the broker client and producer, and
// creates the durable consumer group subscribed to every configured topic.
//
// Initialization failure is terminal for the attempt: nothing is retried
// internally, partial handles are closed, and the client returns to the
// uninitialized state.
func (c *Client) Init(ctx context.Context) error {
	if err := c.BeginInit(); err != nil {
		return err
	}

	err := c.connect(ctx)
	c.FinishInit(err)
	return err
}

// connect performs the protocol-specific part of Init.
func (c *Client) connect(_ context.Context) error {
	settings := c.Settings()

	c.brokers = settings.GetStringSlice("brokers", nil)
	topics := dedupe(settings.GetStringSlice("topics", nil))
	c.groupID = settings.GetString("groupId", defaultGroupID)
	c.clientID = settings.GetString("clientId", defaultClientID)
	c.ssl = settings.GetBool("ssl", false)

	if len(c.brokers) == 0 {
		return errMissingBrokers(c.Name())
	}
	if len(topics) == 0 {
		return errMissingTopics(c.Name())
	}

	broker, err := newBrokerClient(c.brokers, c.saramaConfig())
	if err != nil {
		return errConnection(c.brokers, err)
	}

	producer, err := newSyncProducer(broker)
	if err != nil {
		closeQuietly(broker.Close, c.log, "closing broker client after producer failure")
		return errProducer("", err)
	}

	group, err := newGroupFromClient(c.groupID, broker)
	if err != nil {
		closeQuietly(producer.Close, c.log, "closing producer after consumer failure")
		closeQuietly(broker.Close, c.log, "closing broker client after consumer failure")
		return errConsumer(c.groupID, err)
	}

	c.mu.Lock()
	c.topics = topics
	c.broker = broker
	c.producer = producer
	c.group = group
	c.mu.Unlock()

	return nil
}

// saramaConfig builds the broker configuration shared by the durable client
// and ephemeral consumer groups.
func (c *Client) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = supportedKafkaVersion
	cfg.ClientID = c.clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	// Ephemeral groups have no committed offsets; starting from the oldest
	// record means a message published just before a wait query still matches.
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	if c.ssl {
		cfg.Net.TLS.Enable = true
	}
	return cfg
}

// Topics returns the client's tracked topic set.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// GroupID returns the durable consumer's group id.
func (c *Client) GroupID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// Destroy stops the consume loop and closes the producer, durable consumer
// group, and broker client. It is idempotent and never fails: teardown errors
// are logged and all handles are nulled regardless.
func (c *Client) Destroy(_ context.Context) error {
	if !c.BeginDestroy() {
		return nil
	}

	c.mu.Lock()
	cancel := c.consumeCancel
	producer := c.producer
	group := c.group
	broker := c.broker
	c.consumeCancel = nil
	c.producer = nil
	c.group = nil
	c.broker = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if producer != nil {
		closeQuietly(producer.Close, c.log, "closing producer")
	}
	if group != nil {
		closeQuietly(group.Close, c.log, "closing consumer group")
	}
	if broker != nil {
		closeQuietly(broker.Close, c.log, "closing broker client")
	}

	return nil
}

// closeQuietly runs a teardown step, logging failures instead of propagating
// them so Destroy can never hang a smoke run on cleanup.
func closeQuietly(close func() error, log *logging.Logger, msg string) {
	if err := close(); err != nil {
		log.Warn(msg, "error", err)
	}
}

// dedupe returns values with duplicates removed, preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
