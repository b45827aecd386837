package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"calmh.dev/hassmqtt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttPublisher publishes each message as JSON and the numeric results as
// Home Assistant sensors.
type mqttPublisher struct {
	cli     *CLI
	sub     *fanoutSub[*received]
	log     *slog.Logger
	metrics map[string]*hassmqtt.Metric
}

func newMQTTPublisher(cli *CLI, messages *fanout[*received], log *slog.Logger) *mqttPublisher {
	if cli.MQTTClientID == "" {
		hn, _ := os.Hostname()
		home, _ := os.UserHomeDir()
		hf := sha256.New()
		fmt.Fprintf(hf, "%s\n%s\n", hn, home)
		cli.MQTTClientID = fmt.Sprintf("a%x", hf.Sum(nil))[:12]
	}
	return &mqttPublisher{
		cli:     cli,
		sub:     messages.Listen(),
		log:     log,
		metrics: make(map[string]*hassmqtt.Metric),
	}
}

func (p *mqttPublisher) connect() (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cli.MQTTBroker)
	opts.SetClientID(p.cli.MQTTClientID)
	if p.cli.MQTTUsername != "" && p.cli.MQTTPassword != "" {
		opts.SetUsername(p.cli.MQTTUsername)
		opts.SetPassword(p.cli.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

func (p *mqttPublisher) Serve(ctx context.Context) error {
	client, err := p.connect()
	if err != nil {
		return fmt.Errorf("mqtt %s: %w", p.cli.MQTTBroker, err)
	}
	defer client.Disconnect(250)
	p.log.Info("Connected to MQTT broker", "broker", p.cli.MQTTBroker)

	for {
		select {
		case rec := <-p.sub.Channel():
			if err := p.publish(client, rec); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *mqttPublisher) publish(client mqtt.Client, rec *received) error {
	bs, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/message", p.cli.MQTTPrefix, rec.Session)
	token := client.Publish(topic, 1, false, bs)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	if !rec.Valid {
		return nil
	}
	device := p.device(rec)
	for _, r := range rec.Results {
		v, ok := numericValue(r.Value)
		if !ok {
			continue
		}
		id := sanitizeString(r.TestName)
		metric, ok := p.metrics[id]
		if !ok {
			metric = &hassmqtt.Metric{
				Device:     device,
				ID:         id,
				DeviceType: "sensor",
				Unit:       r.Units,
				Name:       r.TestName,
			}
			p.metrics[id] = metric
		}
		if err := metric.Publish(client, v); err != nil {
			p.log.Warn("Publish", "test", r.TestName, "error", err)
		}
	}
	return nil
}

func (p *mqttPublisher) device(rec *received) *hassmqtt.Device {
	id, name := "analyzer", "Analyzer"
	if h := rec.Header; h != nil && h.ManufacturerID != "" {
		id = sanitizeString(h.ManufacturerID + " " + h.SerialNumber)
		name = h.Manufacturer + " " + h.ManufacturerID
	}
	return &hassmqtt.Device{
		Namespace: p.cli.MQTTPrefix,
		ClientID:  p.cli.MQTTClientID,
		ID:        id,
		Name:      name,
	}
}

func (p *mqttPublisher) String() string {
	return "mqtt " + p.cli.MQTTBroker
}
