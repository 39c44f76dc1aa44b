// internal/publish/mqtt.go
package publish

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-scope/internal/config"
	"github.com/tamzrod/modbus-scope/internal/orchestrator"
	"github.com/tamzrod/modbus-scope/internal/register"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectMs   = 250
)

// tokenPublisher is the part of mqtt.Client the publisher uses.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends one JSON payload per cycle to an MQTT topic.
type Publisher struct {
	cli   tokenPublisher
	close func()

	topic string
	qos   byte
	descs []register.Descriptor

	log zerolog.Logger
}

// Connect dials the broker and returns a ready publisher.
// The paho client reconnects on its own after the first successful connect.
func Connect(c cfg.MQTTConfig, descs []register.Descriptor, log zerolog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(c.ClientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetMaxReconnectInterval(5 * time.Second)
	opts.SetWriteTimeout(publishTimeout)

	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", c.Broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("publish: connect %s: timed out", c.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", c.Broker, err)
	}

	p := newPublisher(client, c.Topic, c.QoS, descs, log)
	p.close = func() { client.Disconnect(disconnectMs) }
	return p, nil
}

func newPublisher(cli tokenPublisher, topic string, qos byte, descs []register.Descriptor, log zerolog.Logger) *Publisher {
	d := make([]register.Descriptor, len(descs))
	copy(d, descs)
	return &Publisher{
		cli:   cli,
		close: func() {},
		topic: topic,
		qos:   qos,
		descs: d,
		log:   log,
	}
}

// Publish encodes res and waits for the broker (QoS > 0) or the write.
func (p *Publisher) Publish(res orchestrator.CycleResult) error {
	body, err := NewPayload(res, p.descs).Marshal()
	if err != nil {
		return fmt.Errorf("publish: encode: %w", err)
	}

	tok := p.cli.Publish(p.topic, p.qos, false, body)
	if !tok.WaitTimeout(publishTimeout) {
		return errors.New("publish: timed out")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.log.Debug().Str("topic", p.topic).Int("bytes", len(body)).Msg("cycle published")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.close()
}
