package executor

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/stridelabs/stride-platform/e2e/internal/scenario"
)

// defaultSampleRateHz is used when a burst does not set rate_hz
const defaultSampleRateHz = 20.0

// MQTTPlayer publishes IMU samples and raw messages to the broker
type MQTTPlayer struct {
	client mqtt.Client
	logger *log.Logger
}

// NewMQTTPlayer creates a new MQTT player
func NewMQTTPlayer(broker string, logger *log.Logger) (*MQTTPlayer, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("stride-test-player")
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Printf("Connected to MQTT broker at %s", broker)

	return &MQTTPlayer{
		client: client,
		logger: logger,
	}, nil
}

// PublishSampleBurst publishes an IMU event: the sample cycle is
// repeated the configured number of times, spaced at the sample rate.
// Blocks until the whole burst is on the wire.
func (p *MQTTPlayer) PublishSampleBurst(event scenario.SampleEvent, device string) error {
	if event.Device != "" {
		device = event.Device
	}
	if device == "" {
		return fmt.Errorf("no device for IMU event")
	}

	rate := event.RateHz
	if rate <= 0 {
		rate = defaultSampleRateHz
	}
	interval := time.Duration(float64(time.Second) / rate)

	repeat := event.Repeat
	if repeat < 1 {
		repeat = 1
	}

	topic := fmt.Sprintf("motion/raw/imu/%s", device)

	total := 0
	for r := 0; r < repeat; r++ {
		for _, sample := range event.Samples {
			payload := map[string]interface{}{
				"acc":       sample.Acc,
				"gyro":      sample.Gyro,
				"timestamp": time.Now().UnixMilli(),
			}

			payloadBytes, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal sample: %w", err)
			}

			token := p.client.Publish(topic, 0, false, payloadBytes)
			token.Wait()
			if token.Error() != nil {
				return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
			}

			total++
			time.Sleep(interval)
		}
	}

	p.logger.Printf("Published %d samples to %s at %.0f Hz", total, topic, rate)

	return nil
}

// PublishMessage publishes an arbitrary JSON message to a topic
func (p *MQTTPlayer) PublishMessage(topic string, data map[string]interface{}) error {
	payloadBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, false, payloadBytes)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	p.logger.Printf("Published message to %s: %s", topic, string(payloadBytes))

	return nil
}

// Publish sends a raw payload to a topic
func (p *MQTTPlayer) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from MQTT broker
func (p *MQTTPlayer) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Printf("Disconnected from MQTT broker")
	}
}
