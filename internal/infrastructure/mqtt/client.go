package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
)

// Defaults applied when settings omit the corresponding key.
const (
	defaultReconnectPeriod  = 5 * time.Second
	defaultKeepAlive        = 60 * time.Second
	defaultConnectTimeout   = 120 * time.Second
	defaultPublishTimeout   = 10 * time.Second
	defaultSubscribeTimeout = 10 * time.Second
	defaultCleanupTimeout   = 5 * time.Second
	defaultWaitTimeout      = 30 * time.Second
	defaultQoS              = 1

	// clientIDPrefix is used for the fallback client id when none is
	// configured.
	clientIDPrefix = "smoke-mqtt"
)

// newPahoClient is a factory seam for constructor injection in tests.
var newPahoClient = pahomqtt.NewClient

// Client is the pub/sub broker client.
//
// It manages one physical connection and a registry of per-topic one-shot
// waiters fed by the connection's inbound message dispatch.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client.Base
	log *logging.Logger

	// Resolved from settings during Init.
	url              string
	clientID         string
	username         string
	password         string
	qos              byte
	reconnectPeriod  time.Duration
	keepAlive        time.Duration
	connectTimeout   time.Duration
	publishTimeout   time.Duration
	subscribeTimeout time.Duration
	cleanupTimeout   time.Duration

	mu      sync.Mutex
	conn    pahomqtt.Client
	subs    map[string]struct{}  // broker-side subscriptions, by exact topic
	waiters map[string][]*waiter // one-shot waiters, by exact topic
}

// waiter receives at most one payload for the topic it was registered under.
type waiter struct {
	ch chan []byte
}

// New creates an uninitialized pub/sub client from settings.
//
// Recognised settings: url (required), clientId, username, password, qos,
// reconnectPeriod, keepAlive, connectTimeout, publishTimeout,
// subscribeTimeout, cleanupTimeout. Durations accept time.Duration values,
// duration strings, or bare numbers interpreted as milliseconds.
func New(name string, settings client.Settings, log *logging.Logger) *Client {
	return &Client{
		Base:    client.NewBase(name, client.KindPubSub, settings),
		log:     log.With("component", component, "client", name),
		subs:    make(map[string]struct{}),
		waiters: make(map[string][]*waiter),
	}
}

// Init validates the broker URL and opens the connection, racing the connect
// attempt against the configured connect timeout. Whichever settles first
// wins; a late connect completion has no further effect.
//
// Post-connect, the connection carries passive listeners for connection loss
// and reconnection which only log, and the inbound message handler that feeds
// the waiter registry.
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

	c.url = settings.GetString("url", "")
	if c.url == "" {
		return errMissingURL(c.Name())
	}

	c.clientID = settings.GetString("clientId", "")
	if c.clientID == "" {
		c.clientID = fmt.Sprintf("%s-%d", clientIDPrefix, time.Now().UnixMilli())
	}
	c.username = settings.GetString("username", "")
	c.password = settings.GetString("password", "")
	c.qos = byte(settings.GetInt("qos", defaultQoS))
	c.reconnectPeriod = settings.GetDuration("reconnectPeriod", defaultReconnectPeriod)
	c.keepAlive = settings.GetDuration("keepAlive", defaultKeepAlive)
	c.connectTimeout = settings.GetDuration("connectTimeout", defaultConnectTimeout)
	c.publishTimeout = settings.GetDuration("publishTimeout", defaultPublishTimeout)
	c.subscribeTimeout = settings.GetDuration("subscribeTimeout", defaultSubscribeTimeout)
	c.cleanupTimeout = settings.GetDuration("cleanupTimeout", defaultCleanupTimeout)

	opts := c.buildOptions()
	conn := newPahoClient(opts)

	token := conn.Connect()
	if !token.WaitTimeout(c.connectTimeout) {
		// The loser must not fire later side effects: drop the half-open
		// connection so a late connect completion is discarded.
		conn.Disconnect(0)
		return errTimeout(CodeConnectTimeout, "", c.connectTimeout.Milliseconds())
	}
	if err := token.Error(); err != nil {
		return errConnection(c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// buildOptions creates paho connection options from resolved settings.
func (c *Client) buildOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.url)
	opts.SetClientID(c.clientID)
	if c.username != "" {
		opts.SetUsername(c.username)
		opts.SetPassword(c.password)
	}

	opts.SetCleanSession(true)
	opts.SetKeepAlive(c.keepAlive)
	opts.SetConnectTimeout(c.connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.reconnectPeriod)

	// Passive listeners for the life of the connection: they log and nothing
	// else.
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn("connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.log.Warn("reconnecting", "url", c.url)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.log.Info("connected", "url", c.url)
	})

	// All inbound messages flow through the dispatch handler; subscriptions
	// are made without per-topic callbacks.
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})

	return opts
}

// connHandle returns the live connection under the state guard. Destroy marks
// the client destroyed before it nulls the handle, so a nil error here implies
// a non-nil connection.
func (c *Client) connHandle() (pahomqtt.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	return c.conn, nil
}

// dispatch hands an inbound payload to every waiter registered for exactly
// this topic and removes them: waiters are one-shot. Waiters for other topics
// are unaffected.
func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.Lock()
	fired := c.waiters[topic]
	delete(c.waiters, topic)
	c.mu.Unlock()

	for _, w := range fired {
		// Buffered; the owning WaitForMessage may have timed out already, in
		// which case the payload is dropped with it.
		select {
		case w.ch <- payload:
		default:
		}
	}
}

// Destroy ends the connection with the configured grace period so teardown
// cannot hang. The waiter registry is always cleared and the connection
// handle nulled, regardless of how the disconnect goes. Idempotent.
func (c *Client) Destroy(_ context.Context) error {
	if !c.BeginDestroy() {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.waiters = make(map[string][]*waiter)
	c.subs = make(map[string]struct{})
	c.mu.Unlock()

	if conn != nil {
		// #nosec G115 -- cleanup timeout is a small configured duration.
		conn.Disconnect(uint(c.cleanupTimeout.Milliseconds()))
	}

	return nil
}
