package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/config"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
	"github.com/probeworks/smokecore/internal/serr"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error"}, "test")
}

// Fakes substitute the broker through the package's factory seams. Only the
// methods the client calls are implemented; the embedded interfaces cover the
// rest.

type fakeBroker struct {
	sarama.Client
	closed bool
}

func (f *fakeBroker) Close() error {
	f.closed = true
	return nil
}

type fakeProducer struct {
	sarama.SyncProducer
	sent      []*sarama.ProducerMessage
	partition int32
	offset    int64
	err       error
	closed    bool
}

func (f *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.partition, f.offset, nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

type fakeGroup struct {
	sarama.ConsumerGroup
	records    []*sarama.ConsumerMessage
	consumeErr error
	closed     bool
	onClose    func()
}

func (f *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	if len(f.records) > 0 {
		if err := handler.ConsumeClaim(&fakeSession{}, newFakeClaim(f.records)); err != nil {
			return err
		}
		f.records = nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeGroup) Close() error {
	f.closed = true
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

type fakeSession struct {
	sarama.ConsumerGroupSession
}

func (f *fakeSession) MarkMessage(*sarama.ConsumerMessage, string) {}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(records []*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(records))
	for _, rec := range records {
		ch <- rec
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func (f *fakeClaim) Messages() <-chan *sarama.ConsumerMessage {
	return f.messages
}

// installFakes routes the factory seams to the given fakes and restores the
// real constructors when the test finishes.
func installFakes(t *testing.T, broker *fakeBroker, producer *fakeProducer, group *fakeGroup) {
	t.Helper()

	origBroker := newBrokerClient
	origProducer := newSyncProducer
	origGroup := newGroupFromClient
	t.Cleanup(func() {
		newBrokerClient = origBroker
		newSyncProducer = origProducer
		newGroupFromClient = origGroup
	})

	newBrokerClient = func([]string, *sarama.Config) (sarama.Client, error) {
		return broker, nil
	}
	newSyncProducer = func(sarama.Client) (sarama.SyncProducer, error) {
		return producer, nil
	}
	newGroupFromClient = func(string, sarama.Client) (sarama.ConsumerGroup, error) {
		return group, nil
	}
}

func defaultSettings() client.Settings {
	return client.Settings{
		"brokers": []string{"broker-1:9092"},
		"topics":  []string{"events"},
	}
}

func newInitializedClient(t *testing.T, settings client.Settings) (*Client, *fakeBroker, *fakeProducer, *fakeGroup) {
	t.Helper()

	broker := &fakeBroker{}
	producer := &fakeProducer{}
	group := &fakeGroup{}
	installFakes(t, broker, producer, group)

	c := New("kafka", settings, testLogger())
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy(context.Background()) })
	return c, broker, producer, group
}

func TestInit_MissingBrokers(t *testing.T) {
	c := New("kafka", client.Settings{"topics": []string{"events"}}, testLogger())

	err := c.Init(context.Background())
	if !serr.HasCode(err, DomainValidation, CodeMissingBrokers) {
		t.Fatalf("Init() = %v, want %s/%s", err, DomainValidation, CodeMissingBrokers)
	}
	if c.State() != client.StateUninitialized {
		t.Errorf("State() = %v, want uninitialized after failed init", c.State())
	}
}

func TestInit_MissingTopics(t *testing.T) {
	c := New("kafka", client.Settings{"brokers": []string{"broker-1:9092"}}, testLogger())

	err := c.Init(context.Background())
	if !serr.HasCode(err, DomainValidation, CodeMissingTopics) {
		t.Fatalf("Init() = %v, want %s/%s", err, DomainValidation, CodeMissingTopics)
	}
}

func TestInit_Succeeds(t *testing.T) {
	settings := defaultSettings()
	settings["topics"] = []string{"events", "audit", "events"}
	c, _, _, _ := newInitializedClient(t, settings)

	if c.State() != client.StateInitialized {
		t.Errorf("State() = %v, want initialized", c.State())
	}

	topics := c.Topics()
	if len(topics) != 2 || topics[0] != "events" || topics[1] != "audit" {
		t.Errorf("Topics() = %v, want deduplicated [events audit]", topics)
	}
	if got := c.GroupID(); got != "smoke-test-group" {
		t.Errorf("GroupID() = %q, want default %q", got, "smoke-test-group")
	}
}

func TestInit_ProducerFailureClosesBroker(t *testing.T) {
	broker := &fakeBroker{}
	installFakes(t, broker, &fakeProducer{}, &fakeGroup{})
	newSyncProducer = func(sarama.Client) (sarama.SyncProducer, error) {
		return nil, sarama.ErrOutOfBrokers
	}

	c := New("kafka", defaultSettings(), testLogger())
	err := c.Init(context.Background())

	if !serr.HasCode(err, Domain, CodeProducerFailed) {
		t.Fatalf("Init() = %v, want %s/%s", err, Domain, CodeProducerFailed)
	}
	if !broker.closed {
		t.Error("broker client should be closed after a partial init failure")
	}
	if c.State() != client.StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", c.State())
	}
}

func TestSendMessage_Ack(t *testing.T) {
	c, _, producer, _ := newInitializedClient(t, defaultSettings())
	producer.partition = 0
	producer.offset = 100

	ack, err := c.SendMessage("test-topic", []byte(`{"probe":true}`), "probe-key")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if ack.Topic != "test-topic" {
		t.Errorf("Ack.Topic = %q, want %q", ack.Topic, "test-topic")
	}
	if ack.Partition != 0 {
		t.Errorf("Ack.Partition = %d, want 0", ack.Partition)
	}
	if ack.Offset != 100 {
		t.Errorf("Ack.Offset = %d, want 100", ack.Offset)
	}
	if ack.Timestamp.IsZero() {
		t.Error("Ack.Timestamp should be set")
	}

	if len(producer.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(producer.sent))
	}
	if producer.sent[0].Topic != "test-topic" {
		t.Errorf("sent topic = %q, want %q", producer.sent[0].Topic, "test-topic")
	}
}

func TestSendMessage_EmptyTopicNeverReachesProducer(t *testing.T) {
	c, _, producer, _ := newInitializedClient(t, defaultSettings())

	_, err := c.SendMessage("", []byte("payload"), "")
	if !serr.HasCode(err, DomainValidation, CodeEmptyTopic) {
		t.Fatalf("SendMessage() = %v, want %s/%s", err, DomainValidation, CodeEmptyTopic)
	}
	if len(producer.sent) != 0 {
		t.Error("producer should not be touched when validation fails")
	}
}

func TestSendMessage_SyntheticOffset(t *testing.T) {
	c, _, producer, _ := newInitializedClient(t, defaultSettings())
	producer.offset = -1

	before := time.Now().UnixMilli()
	ack, err := c.SendMessage("events", []byte("payload"), "")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if ack.Offset < before {
		t.Errorf("Ack.Offset = %d, want clock-derived synthetic offset >= %d", ack.Offset, before)
	}
}

func TestSendMessage_ProducerFailure(t *testing.T) {
	c, _, producer, _ := newInitializedClient(t, defaultSettings())
	producer.err = errors.New("broker rejected the record")

	_, err := c.SendMessage("events", []byte("payload"), "")
	if !serr.HasCode(err, Domain, CodeProducerFailed) {
		t.Fatalf("SendMessage() = %v, want %s/%s", err, Domain, CodeProducerFailed)
	}
}

func TestSendMessage_NotInitialized(t *testing.T) {
	c := New("kafka", defaultSettings(), testLogger())

	_, err := c.SendMessage("events", []byte("payload"), "")
	if !serr.HasCode(err, client.Domain, client.CodeNotInitialized) {
		t.Fatalf("SendMessage() = %v, want %s/%s", err, client.Domain, client.CodeNotInitialized)
	}
}

func TestSubscribe_GroupSwitchReplacesThenClosesOld(t *testing.T) {
	var events []string

	broker := &fakeBroker{}
	producer := &fakeProducer{}
	oldGroup := &fakeGroup{onClose: func() { events = append(events, "close-old") }}
	installFakes(t, broker, producer, oldGroup)

	c := New("kafka", defaultSettings(), testLogger())
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer c.Destroy(context.Background())

	newGroup := &fakeGroup{}
	newGroupFromClient = func(groupID string, _ sarama.Client) (sarama.ConsumerGroup, error) {
		events = append(events, "create-new")
		if groupID != "other-group" {
			t.Errorf("new group id = %q, want %q", groupID, "other-group")
		}
		return newGroup, nil
	}

	if err := c.Subscribe([]string{"audit"}, "other-group"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// The replacement handle is created before the old group is touched, so a
	// builder failure cannot strand the client without a consumer.
	if len(events) != 2 || events[0] != "create-new" || events[1] != "close-old" {
		t.Fatalf("events = %v, want [create-new close-old]", events)
	}
	if !oldGroup.closed {
		t.Error("old group should be closed after the switch")
	}
	if got := c.GroupID(); got != "other-group" {
		t.Errorf("GroupID() = %q, want %q", got, "other-group")
	}

	topics := c.Topics()
	if len(topics) != 2 || topics[0] != "events" || topics[1] != "audit" {
		t.Errorf("Topics() = %v, want union [events audit]", topics)
	}
}

func TestSubscribe_GroupSwitchFailureKeepsOldConsumer(t *testing.T) {
	c, _, _, oldGroup := newInitializedClient(t, defaultSettings())

	newGroupFromClient = func(string, sarama.Client) (sarama.ConsumerGroup, error) {
		return nil, sarama.ErrOutOfBrokers
	}

	err := c.Subscribe([]string{"audit"}, "other-group")
	if !serr.HasCode(err, Domain, CodeConsumerFailed) {
		t.Fatalf("Subscribe() = %v, want %s/%s", err, Domain, CodeConsumerFailed)
	}
	if oldGroup.closed {
		t.Error("old group must survive a failed switch")
	}
	if got := c.GroupID(); got != "smoke-test-group" {
		t.Errorf("GroupID() = %q, want unchanged %q", got, "smoke-test-group")
	}

	// The durable consumer must still be usable after the failed switch.
	if err := c.ConsumeMessages(context.Background(), func(Record) {}, 0); err != nil {
		t.Fatalf("ConsumeMessages() after failed switch error = %v", err)
	}
	c.StopConsuming()
}

func TestSubscribe_SameGroupOnlyAddsTopics(t *testing.T) {
	c, _, _, group := newInitializedClient(t, defaultSettings())

	if err := c.Subscribe([]string{"audit", "events"}, ""); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if group.closed {
		t.Error("durable group must not be closed without a group switch")
	}
	if topics := c.Topics(); len(topics) != 2 {
		t.Errorf("Topics() = %v, want 2 deduplicated topics", topics)
	}
}

func TestSubscribe_EmptyTopics(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	err := c.Subscribe(nil, "")
	if !serr.HasCode(err, DomainValidation, CodeMissingTopics) {
		t.Fatalf("Subscribe() = %v, want %s/%s", err, DomainValidation, CodeMissingTopics)
	}
}

func TestConsumeMessages_SecondCallRejected(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	if err := c.ConsumeMessages(context.Background(), func(Record) {}, 0); err != nil {
		t.Fatalf("ConsumeMessages() error = %v", err)
	}
	defer c.StopConsuming()

	err := c.ConsumeMessages(context.Background(), func(Record) {}, 0)
	if !serr.HasCode(err, Domain, CodeConsumeRunning) {
		t.Fatalf("second ConsumeMessages() = %v, want %s/%s", err, Domain, CodeConsumeRunning)
	}
}

func TestConsumeMessages_DeliversRecords(t *testing.T) {
	c, _, _, group := newInitializedClient(t, defaultSettings())
	group.records = []*sarama.ConsumerMessage{
		{Topic: "events", Partition: 1, Offset: 7, Key: []byte("k"), Value: []byte("v"), Timestamp: time.Now()},
		{Topic: "events", Offset: 8, Value: nil}, // empty value is skipped
	}

	got := make(chan Record, 2)
	if err := c.ConsumeMessages(context.Background(), func(rec Record) { got <- rec }, time.Second); err != nil {
		t.Fatalf("ConsumeMessages() error = %v", err)
	}
	defer c.StopConsuming()

	select {
	case rec := <-got:
		if rec.Topic != "events" || rec.Offset != 7 || rec.Key != "k" {
			t.Errorf("record = %+v, want events/7/k", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record delivered")
	}

	select {
	case rec := <-got:
		t.Errorf("unexpected second record: %+v (empty values must be skipped)", rec)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConsumeMessages_RestartAfterStop(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	if err := c.ConsumeMessages(context.Background(), func(Record) {}, time.Second); err != nil {
		t.Fatalf("ConsumeMessages() error = %v", err)
	}
	c.StopConsuming()

	if err := c.ConsumeMessages(context.Background(), func(Record) {}, time.Second); err != nil {
		t.Fatalf("ConsumeMessages() after stop error = %v", err)
	}
	c.StopConsuming()
}

func TestSendMessage_AfterDestroy(t *testing.T) {
	c, _, producer, _ := newInitializedClient(t, defaultSettings())

	if err := c.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	_, err := c.SendMessage("events", []byte("payload"), "")
	if !serr.HasCode(err, client.Domain, client.CodeNotInitialized) {
		t.Fatalf("SendMessage() after destroy = %v, want %s/%s", err, client.Domain, client.CodeNotInitialized)
	}
	if len(producer.sent) != 0 {
		t.Error("producer must not be touched after destroy")
	}
}

func TestDestroy_ClosesAllHandles(t *testing.T) {
	c, broker, producer, group := newInitializedClient(t, defaultSettings())

	if err := c.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if !producer.closed {
		t.Error("producer not closed")
	}
	if !group.closed {
		t.Error("consumer group not closed")
	}
	if !broker.closed {
		t.Error("broker client not closed")
	}

	// Idempotent.
	if err := c.Destroy(context.Background()); err != nil {
		t.Errorf("second Destroy() error = %v", err)
	}
}

func TestWaitForMessage_Match(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	var gotEphemeralID string
	origStandalone := newStandaloneGroup
	t.Cleanup(func() { newStandaloneGroup = origStandalone })
	newStandaloneGroup = func(_ []string, groupID string, _ *sarama.Config) (sarama.ConsumerGroup, error) {
		gotEphemeralID = groupID
		return &fakeGroup{records: []*sarama.ConsumerMessage{
			{Topic: "events", Value: []byte("miss")},
			{Topic: "events", Offset: 42, Value: []byte("payload-123")},
		}}, nil
	}

	rec, err := c.WaitForMessage(context.Background(), func(rec Record) bool {
		return string(rec.Value) == "payload-123"
	}, 2*time.Second)

	if err != nil {
		t.Fatalf("WaitForMessage() error = %v", err)
	}
	if rec == nil {
		t.Fatal("WaitForMessage() = nil, want matching record")
	}
	if rec.Offset != 42 {
		t.Errorf("record offset = %d, want 42", rec.Offset)
	}
	if !strings.HasPrefix(gotEphemeralID, "smoke-test-group-probe-") {
		t.Errorf("ephemeral group id = %q, want durable group id plus probe suffix", gotEphemeralID)
	}
}

func TestWaitForMessage_TimeoutReturnsNil(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	origStandalone := newStandaloneGroup
	t.Cleanup(func() { newStandaloneGroup = origStandalone })
	newStandaloneGroup = func([]string, string, *sarama.Config) (sarama.ConsumerGroup, error) {
		return &fakeGroup{}, nil
	}

	rec, err := c.WaitForMessage(context.Background(), func(Record) bool { return true }, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForMessage() error = %v", err)
	}
	if rec != nil {
		t.Errorf("WaitForMessage() = %+v, want nil on timeout", rec)
	}
}

func TestWaitForMessage_InternalFailureReturnsNil(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	origStandalone := newStandaloneGroup
	t.Cleanup(func() { newStandaloneGroup = origStandalone })
	newStandaloneGroup = func([]string, string, *sarama.Config) (sarama.ConsumerGroup, error) {
		return nil, sarama.ErrOutOfBrokers
	}

	rec, err := c.WaitForMessage(context.Background(), func(Record) bool { return true }, time.Second)
	if err != nil {
		t.Fatalf("WaitForMessage() error = %v, want nil (best-effort query)", err)
	}
	if rec != nil {
		t.Errorf("WaitForMessage() = %+v, want nil", rec)
	}
}

func TestWaitForMessage_ConsumeFailureReturnsNil(t *testing.T) {
	c, _, _, _ := newInitializedClient(t, defaultSettings())

	origStandalone := newStandaloneGroup
	t.Cleanup(func() { newStandaloneGroup = origStandalone })
	newStandaloneGroup = func([]string, string, *sarama.Config) (sarama.ConsumerGroup, error) {
		return &fakeGroup{consumeErr: sarama.ErrOutOfBrokers}, nil
	}

	rec, err := c.WaitForMessage(context.Background(), func(Record) bool { return true }, time.Second)
	if err != nil {
		t.Fatalf("WaitForMessage() error = %v, want nil", err)
	}
	if rec != nil {
		t.Errorf("WaitForMessage() = %+v, want nil", rec)
	}
}

func TestWaitForMessage_NotInitialized(t *testing.T) {
	c := New("kafka", defaultSettings(), testLogger())

	_, err := c.WaitForMessage(context.Background(), func(Record) bool { return true }, time.Second)
	if !serr.HasCode(err, client.Domain, client.CodeNotInitialized) {
		t.Fatalf("WaitForMessage() = %v, want %s/%s", err, client.Domain, client.CodeNotInitialized)
	}
}

func TestDecodeRecord(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Topic:     "events",
		Partition: 2,
		Offset:    11,
		Key:       []byte("key"),
		Value:     []byte("value"),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("trace"), Value: []byte("abc")},
			nil,
		},
	}

	rec, ok := decodeRecord(msg)
	if !ok {
		t.Fatal("decodeRecord() ok = false, want true")
	}
	if rec.Key != "key" || rec.Partition != 2 || rec.Offset != 11 {
		t.Errorf("record = %+v", rec)
	}
	if string(rec.Headers["trace"]) != "abc" {
		t.Errorf("Headers[trace] = %q, want %q", rec.Headers["trace"], "abc")
	}
	if rec.Timestamp.IsZero() {
		t.Error("missing broker timestamp should default to now")
	}

	if _, ok := decodeRecord(&sarama.ConsumerMessage{Topic: "events"}); ok {
		t.Error("decodeRecord() with empty value ok = true, want false")
	}
}
