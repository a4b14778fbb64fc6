package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the part of an MQTT client the alarm needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTClient wraps a paho client connected to a broker.
type MQTTClient struct {
	client mqtt.Client
}

// NewMQTTClient connects to broker (e.g. "tcp://localhost:1883").
func NewMQTTClient(broker, clientID, username, password string) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}

	return &MQTTClient{client: client}, nil
}

// Publish sends payload and waits for the broker acknowledgement.
func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work.
func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

// MQTTMessage is the payload published on every alarm edge.
type MQTTMessage struct {
	SessionID string `json:"session_id"`
	Alarm     string `json:"alarm"` // "on" or "off"
	Timestamp string `json:"timestamp"`
}

// MQTTDevice publishes alarm edges so a remote buzzer or fleet dashboard can
// react. Messages go to <topic>/<session id> with QoS 1.
type MQTTDevice struct {
	pub   Publisher
	topic string
	now   func() time.Time
}

// NewMQTTDevice creates a device publishing below topic.
func NewMQTTDevice(pub Publisher, topic string) *MQTTDevice {
	return &MQTTDevice{pub: pub, topic: topic, now: time.Now}
}

func (d *MQTTDevice) Activate(ctx context.Context, sessionID string) error {
	return d.publish(sessionID, "on")
}

func (d *MQTTDevice) Deactivate(ctx context.Context, sessionID string) error {
	return d.publish(sessionID, "off")
}

func (d *MQTTDevice) publish(sessionID, state string) error {
	payload, err := json.Marshal(MQTTMessage{
		SessionID: sessionID,
		Alarm:     state,
		Timestamp: d.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return d.pub.Publish(d.topic+"/"+sessionID, 1, false, payload)
}
