package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// RealPublisher publishes to a broker without blocking the caller on
// delivery; failures are logged when the token completes.
type RealPublisher struct {
	client paho.Client
	topic  string
	bootID string
}

func NewRealPublisher(broker, topic, bootID string) (*RealPublisher, error) {
	clientID := "irrigation-" + bootID
	if len(clientID) > 23 {
		clientID = clientID[:23]
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	log.Info().Str("broker", broker).Str("topic", topic).Msg("MQTT publisher connected")
	return &RealPublisher{client: client, topic: topic, bootID: bootID}, nil
}

func (p *RealPublisher) PublishSample(s model.SensorSample) error {
	payload, err := FormatSample(p.bootID, s)
	if err != nil {
		return fmt.Errorf("format sample payload: %w", err)
	}
	// QoS 0, retained so dashboards show the last reading on subscribe.
	p.watch(SampleTopic(p.topic), p.client.Publish(SampleTopic(p.topic), 0, true, payload))
	return nil
}

func (p *RealPublisher) PublishPumpEvent(e PumpEvent) error {
	payload, err := FormatPumpEvent(p.bootID, e)
	if err != nil {
		return fmt.Errorf("format pump payload: %w", err)
	}
	p.watch(PumpTopic(p.topic), p.client.Publish(PumpTopic(p.topic), 1, false, payload))
	return nil
}

func (p *RealPublisher) watch(topic string, token paho.Token) {
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			log.Warn().Str("topic", topic).Msg("MQTT publish timeout")
			return
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
