package source

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"influxrelay/internal/config"
	"influxrelay/internal/logger"
	"influxrelay/internal/record"
	"influxrelay/internal/tlsutil"
)

// Submitter receives decoded records.
type Submitter interface {
	Submit(rec *record.Record) bool
}

// MQTTSource subscribes to the topics the station publishes loop packets
// and archive records to, and submits every decoded record.
type MQTTSource struct {
	cfg      config.MQTTConfig
	logger   *logger.Logger
	sink     Submitter
	conn     mqtt.Client
	matchers []*TopicMatcher

	mu        sync.RWMutex
	connected bool
}

// NewMQTTSource creates the source. It does not connect until Start.
func NewMQTTSource(cfg config.MQTTConfig, sink Submitter, log *logger.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		cfg:    cfg,
		logger: log.With("source", "mqtt"),
		sink:   sink,
	}

	if cfg.LoopTopic != "" {
		s.matchers = append(s.matchers, NewTopicMatcher(cfg.LoopTopic, record.OriginLoop))
	}
	if cfg.ArchiveTopic != "" {
		s.matchers = append(s.matchers, NewTopicMatcher(cfg.ArchiveTopic, record.OriginArchive))
	}
	if len(s.matchers) == 0 {
		return nil, fmt.Errorf("mqtt source: no topics configured")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "influxrelay-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Second * 10).
		SetConnectionLostHandler(s.handleConnectionLost).
		SetOnConnectHandler(s.handleConnected).
		SetKeepAlive(30 * time.Second)

	if tlsutil.Configured(cfg.TLS) {
		tlsConfig, err := tlsutil.NewConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure mqtt TLS: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	s.conn = mqtt.NewClient(opts)
	return s, nil
}

// Start connects to the broker. Subscriptions are made on every
// (re)connect.
func (s *MQTTSource) Start() error {
	if token := s.conn.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}
	s.logger.Info("mqtt source started", "broker", s.cfg.Broker, "topics", len(s.matchers))
	return nil
}

// Stop disconnects from the broker.
func (s *MQTTSource) Stop() {
	s.conn.Disconnect(250)
	s.logger.Info("mqtt source stopped")
}

// IsConnected returns the broker connection status
func (s *MQTTSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MQTTSource) handleConnected(_ mqtt.Client) {
	s.logger.Info("connected to broker", "broker", s.cfg.Broker)

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	if err := s.subscribe(); err != nil {
		s.logger.Error("failed to subscribe to topics after connection", "error", err)
	}
}

func (s *MQTTSource) handleConnectionLost(_ mqtt.Client, err error) {
	s.logger.Error("lost connection to broker",
		"error", err,
		"broker", s.cfg.Broker)

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *MQTTSource) subscribe() error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	}
	for _, m := range s.matchers {
		if token := s.conn.Subscribe(m.Pattern, byte(s.cfg.QoS), handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", m.Pattern, token.Error())
		}
		s.logger.Info("subscribed to topic", "topic", m.Pattern, "origin", m.Origin)
	}
	return nil
}

// originOf returns the origin of the first pattern matching topic.
func (s *MQTTSource) originOf(topic string) (record.Origin, bool) {
	for _, m := range s.matchers {
		if m.Match(topic) {
			return m.Origin, true
		}
	}
	return "", false
}

// handleMessage decodes one message and submits the record. Malformed
// payloads are logged and dropped.
func (s *MQTTSource) handleMessage(topic string, payload []byte) {
	origin, ok := s.originOf(topic)
	if !ok {
		s.logger.Warn("message on unexpected topic", "topic", topic)
		return
	}

	rec, err := record.Decode(payload, origin)
	if err != nil {
		s.logger.Warn("failed to decode record",
			"topic", topic,
			"payloadSize", len(payload),
			"error", err)
		return
	}

	accepted := s.sink.Submit(rec)
	s.logger.Debug("record received",
		"topic", topic,
		"origin", origin,
		"dateTime", rec.DateTime,
		"accepted", accepted)
}
