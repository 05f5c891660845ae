// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
)

// subscription pairs a topic with its handler. Subscriptions are replayed
// on every (re)connect.
type subscription struct {
	topic   string
	handler mqtt.MessageHandler
}

// clientID builds a unique id so several instances of one tool can share a broker.
func clientID(prefix, role string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, role, uuid.NewString()[:8])
}

// connectMQTT connects to the broker and subscribes to subs. The client
// reconnects on its own and re-subscribes after each reconnect.
func connectMQTT(cfg config.MQTTConfig, role string, subs ...subscription) (mqtt.Client, error) {
	id := clientID(cfg.ClientIDPrefix, role)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(c mqtt.Client) {
		monitoring.Logf("[MQTT] %s connected to %s", id, cfg.Broker)
		for _, s := range subs {
			token := c.Subscribe(s.topic, cfg.QoS, s.handler)
			if !token.WaitTimeout(5 * time.Second) {
				monitoring.Logf("[MQTT] subscribe timeout for %s", s.topic)
				continue
			}
			if token.Error() != nil {
				monitoring.Logf("[MQTT] subscribe error for %s: %v", s.topic, token.Error())
				continue
			}
			monitoring.Logf("[MQTT] subscribed to %s", s.topic)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		monitoring.Logf("[MQTT] connection lost: %v (will auto-reconnect)", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("MQTT connect to %s timed out", cfg.Broker)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s failed: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// publishClient is the part of mqtt.Client used for publishing.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// publishJSON marshals v and publishes it without waiting for the broker.
// Failures are logged when the token completes.
func publishJSON(c publishClient, topic string, qos byte, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := c.Publish(topic, qos, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			monitoring.Logf("[MQTT] publish to %s failed: %v", topic, err)
		}
	}()
	return nil
}

// publishJSONSync publishes and waits, for producers that may block.
func publishJSONSync(c publishClient, topic string, qos byte, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := c.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// disconnect gives in-flight messages a moment before closing.
func disconnect(c mqtt.Client) {
	if c != nil && c.IsConnected() {
		c.Disconnect(250)
	}
}
