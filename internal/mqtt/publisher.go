package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
)

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

type Publisher struct {
	client      client
	topicPrefix string
	enabled     bool
	logger      *zap.Logger

	announced sync.Map // profile ID -> struct{}
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

// NewPublisher connects to the broker. A disabled config yields a
// publisher whose methods are no-ops.
func NewPublisher(cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(c, cfg.TopicPrefix, logger), nil
}

func newPublisher(c client, topicPrefix string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:      c,
		topicPrefix: topicPrefix,
		enabled:     true,
		logger:      logger,
	}
}

func (p *Publisher) topic(profileID, name string) string {
	return fmt.Sprintf("%s/profiles/%s/%s", p.topicPrefix, profileID, name)
}

// PublishChart sends one topic per placement plus the whole chart as a
// retained JSON document. The first chart of each profile also announces
// Home Assistant sensors for it.
func (p *Publisher) PublishChart(profileID, name string, c *chart.Chart) error {
	if !p.enabled {
		return nil
	}

	if _, seen := p.announced.LoadOrStore(profileID, struct{}{}); !seen {
		if err := p.publishDiscovery(profileID, name); err != nil {
			p.announced.Delete(profileID)
			p.logger.Warn("Home Assistant discovery failed", zap.String("profile_id", profileID), zap.Error(err))
		}
	}

	placements := map[string]string{
		"sun":       c.Sun.Sign.String(),
		"moon":      c.Moon.Sign.String(),
		"rising":    signOrUnknown(c.Rising),
		"midheaven": signOrUnknown(c.Midheaven),
	}

	for topicName, value := range placements {
		topic := p.topic(profileID, topicName)
		token := p.client.Publish(topic, 0, true, value)
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn("failed to publish", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}

	chartJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal chart: %w", err)
	}

	token := p.client.Publish(p.topic(profileID, "chart"), 0, true, chartJSON)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish chart: %w", token.Error())
	}

	return nil
}

// discoverySensors are the Home Assistant sensors announced per profile.
var discoverySensors = []struct {
	Name string
	ID   string
	Icon string
}{
	{"Sun Sign", "sun", "mdi:white-balance-sunny"},
	{"Moon Sign", "moon", "mdi:moon-waning-crescent"},
	{"Rising Sign", "rising", "mdi:weather-sunset-up"},
	{"Midheaven", "midheaven", "mdi:arrow-up-bold"},
}

func discoveryTopic(profileID, sensorID string) string {
	return fmt.Sprintf("homeassistant/sensor/nefeli_%s/%s/config", profileID, sensorID)
}

func (p *Publisher) publishDiscovery(profileID, name string) error {
	label := name
	if label == "" {
		label = profileID
	}

	for _, sensor := range discoverySensors {

		config := map[string]interface{}{
			"name":        fmt.Sprintf("%s %s", label, sensor.Name),
			"unique_id":   fmt.Sprintf("nefeli_%s_%s", profileID, sensor.ID),
			"state_topic": p.topic(profileID, sensor.ID),
			"icon":        sensor.Icon,
			"device": map[string]interface{}{
				"identifiers": []string{"nefeli_" + profileID},
				"name":        label,
				"model":       "Birth chart",
			},
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return err
		}
		token := p.client.Publish(discoveryTopic(profileID, sensor.ID), 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
	}

	return nil
}

// ClearProfile removes the retained messages of a deleted profile,
// including its Home Assistant discovery configs.
func (p *Publisher) ClearProfile(profileID string) {
	if !p.enabled {
		return
	}
	p.announced.Delete(profileID)

	topics := []string{p.topic(profileID, "chart")}
	for _, sensor := range discoverySensors {
		topics = append(topics, p.topic(profileID, sensor.ID), discoveryTopic(profileID, sensor.ID))
	}
	for _, topic := range topics {
		token := p.client.Publish(topic, 0, true, []byte{})
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn("failed to clear topic", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}

func signOrUnknown(pl *chart.Placement) string {
	if pl == nil {
		return "unknown"
	}
	return pl.Sign.String()
}
