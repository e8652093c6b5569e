package logstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
)

// defaultPingTimeout bounds the connectivity check during Init.
const defaultPingTimeout = 5 * time.Second

// newInfluxClient is a factory seam for constructor injection in tests.
var newInfluxClient = func(url, token string) influxdb2.Client {
	return influxdb2.NewClient(url, token)
}

// Row is one record returned by a query.
type Row struct {
	Time        time.Time
	Measurement string
	Field       string
	Value       any
}

// Client is the log-query client.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client.Base
	log *logging.Logger

	// Resolved from settings during Init.
	url    string
	org    string
	bucket string

	mu       sync.Mutex
	influx   influxdb2.Client
	queryAPI api.QueryAPI
}

// New creates an uninitialized log-query client from settings.
//
// Recognised settings: url (required), token, org, bucket.
func New(name string, settings client.Settings, log *logging.Logger) *Client {
	return &Client{
		Base: client.NewBase(name, client.KindLogStore, settings),
		log:  log.With("component", component, "client", name),
	}
}

// Init resolves settings, creates the client, and verifies connectivity with
// a ping.
func (c *Client) Init(ctx context.Context) error {
	if err := c.BeginInit(); err != nil {
		return err
	}

	err := c.connect(ctx)
	c.FinishInit(err)
	return err
}

func (c *Client) connect(ctx context.Context) error {
	settings := c.Settings()

	c.url = settings.GetString("url", "")
	token := settings.GetString("token", "")
	c.org = settings.GetString("org", "")
	c.bucket = settings.GetString("bucket", "")

	if c.url == "" {
		return errMissingURL(c.Name())
	}

	influx := newInfluxClient(c.url, token)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if ok, err := influx.Ping(pingCtx); err != nil || !ok {
		influx.Close()
		if err == nil {
			err = fmt.Errorf("ping returned not ready")
		}
		return errConnection(c.url, err)
	}

	c.mu.Lock()
	c.influx = influx
	c.queryAPI = influx.QueryAPI(c.org)
	c.mu.Unlock()

	return nil
}

// Query runs a raw Flux query and returns the matching rows.
func (c *Client) Query(ctx context.Context, flux string) ([]Row, error) {
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	if flux == "" {
		return nil, errEmptyQuery(c.Name())
	}

	c.mu.Lock()
	queryAPI := c.queryAPI
	c.mu.Unlock()

	result, err := queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, errQuery(err)
	}

	var rows []Row
	for result.Next() {
		rec := result.Record()
		rows = append(rows, Row{
			Time:        rec.Time(),
			Measurement: rec.Measurement(),
			Field:       rec.Field(),
			Value:       rec.Value(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, errQuery(err)
	}

	return rows, nil
}

// CountSince counts records of a measurement written within the given window.
func (c *Client) CountSince(ctx context.Context, measurement string, window time.Duration) (int64, error) {
	if measurement == "" {
		return 0, errEmptyQuery(c.Name())
	}

	flux := fmt.Sprintf(
		`from(bucket: %q) |> range(start: -%s) |> filter(fn: (r) => r._measurement == %q) |> count()`,
		c.bucket, window.Truncate(time.Second), measurement,
	)

	rows, err := c.Query(ctx, flux)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range rows {
		if n, ok := row.Value.(int64); ok {
			total += n
		}
	}
	return total, nil
}

// Destroy closes the underlying client. Idempotent.
func (c *Client) Destroy(_ context.Context) error {
	if !c.BeginDestroy() {
		return nil
	}

	c.mu.Lock()
	influx := c.influx
	c.influx = nil
	c.queryAPI = nil
	c.mu.Unlock()

	if influx != nil {
		influx.Close()
	}
	return nil
}
