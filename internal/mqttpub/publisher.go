// Package mqttpub mirrors attitude snapshots to an MQTT broker so dashboards
// and loggers can consume telemetry without touching the serial channel.
package mqttpub

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ahrsd/internal/web"
)

type Config struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
	Username string
	Password string
	UseTLS   bool
	// Interval decimates the tick-rate stream; default 100 ms.
	Interval time.Duration
}

type Publisher struct {
	cfg    Config
	bcast  *web.Broadcaster
	client mqtt.Client
}

func New(cfg Config, bcast *web.Broadcaster) *Publisher {
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.Topic == "" {
		cfg.Topic = "ahrsd/attitude"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("ahrsd-%d", time.Now().Unix())
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Publisher{cfg: cfg, bcast: bcast}
}

// Run connects and publishes the latest snapshot at the configured interval
// until ctx is cancelled. Publish failures are absorbed; auto-reconnect
// brings the session back.
func (p *Publisher) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()

	protocol := "tcp"
	if p.cfg.UseTLS {
		protocol = "tls"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", protocol, p.cfg.Broker, p.cfg.Port))
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Printf("mqtt: connected to %s:%d", p.cfg.Broker, p.cfg.Port)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqttpub: connect timeout to %s:%d", p.cfg.Broker, p.cfg.Port)
	}
	if token.Error() != nil {
		return fmt.Errorf("mqttpub: connect failed: %w", token.Error())
	}
	defer p.client.Disconnect(250)

	tick := time.NewTicker(p.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			snap, ok := p.bcast.Last()
			if !ok {
				continue
			}
			b, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			// Fire and forget; the loop must never feel broker pressure.
			p.client.Publish(p.cfg.Topic, 0, false, b)
		}
	}
}
