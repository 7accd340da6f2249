// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 250 * time.Millisecond

// Topics names where each kind of telemetry is published.
type Topics struct {
	Frames      string
	Events      string
	Calibration string
}

// Connect dials the broker with the given client id.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt connect %s", broker)
	}
	logrus.Infof("telemetry: connected to MQTT broker at %s", broker)
	return client, nil
}

// MQTTSink publishes JSON payloads. The latest calibration is retained so
// subscribers that join late still see it.
type MQTTSink struct {
	client mqtt.Client
	topics Topics
}

// NewMQTTSink publishes on client.
func NewMQTTSink(client mqtt.Client, topics Topics) *MQTTSink {
	return &MQTTSink{client: client, topics: topics}
}

func (s *MQTTSink) Frame(f Frame) {
	s.publish(s.topics.Frames, false, f)
}

func (s *MQTTSink) Event(e Event) {
	s.publish(s.topics.Events, false, e)
	if e.Kind == KindCalibration && e.Calibration != nil && s.topics.Calibration != "" {
		s.publish(s.topics.Calibration, true, e)
	}
}

func (s *MQTTSink) publish(topic string, retained bool, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		logrus.Warnf("telemetry: json marshal error (%s): %v", topic, err)
		return
	}
	token := s.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		logrus.Debugf("telemetry: MQTT publish to %s still pending", topic)
		return
	}
	if token.Error() != nil {
		logrus.Warnf("telemetry: MQTT publish error (%s): %v", topic, token.Error())
	}
}
