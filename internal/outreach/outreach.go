// Package outreach delivers crisis notifications to trusted contacts
// through pluggable channel drivers. The built-in drivers post to the
// external notification gateway, which owns the actual telephony and
// email integrations; this package only decides what to send and
// reports whether the gateway accepted it.
package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// ── Driver registry ─────────────────────────────────────────

// ChannelDriver sends one message to one contact over one channel.
type ChannelDriver interface {
	Kind() models.Channel
	Send(ctx context.Context, contact *models.TrustedContact, msg Message) error
}

// Message is the composed payload handed to a driver.
type Message struct {
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body"`
	Severity string         `json:"severity"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dispatcher routes outreach requests to the driver registered for the
// requested channel.
type Dispatcher struct {
	drivers map[models.Channel]ChannelDriver
	drvMu   sync.RWMutex
}

// NewDispatcher creates a Dispatcher with the built-in gateway drivers
// for voice, sms, and email registered.
func NewDispatcher(cfg config.OutreachConfig) *Dispatcher {
	d := &Dispatcher{drivers: make(map[models.Channel]ChannelDriver)}

	client := &http.Client{Timeout: cfg.Timeout}
	d.RegisterDriver(&gatewayDriver{kind: models.ChannelVoice, path: "/v1/calls", baseURL: cfg.GatewayURL, client: client})
	d.RegisterDriver(&gatewayDriver{kind: models.ChannelSMS, path: "/v1/sms", baseURL: cfg.GatewayURL, client: client})
	d.RegisterDriver(&gatewayDriver{kind: models.ChannelEmail, path: "/v1/email", baseURL: cfg.GatewayURL, client: client})
	return d
}

// RegisterDriver adds or replaces the driver for a channel.
func (d *Dispatcher) RegisterDriver(driver ChannelDriver) {
	d.drvMu.Lock()
	defer d.drvMu.Unlock()
	d.drivers[driver.Kind()] = driver
	log.Info().Str("channel", string(driver.Kind())).Msg("Registered outreach channel driver")
}

// GetDriver returns the driver for a channel, or nil.
func (d *Dispatcher) GetDriver(kind models.Channel) ChannelDriver {
	d.drvMu.RLock()
	defer d.drvMu.RUnlock()
	return d.drivers[kind]
}

// Dispatch sends msg to the contact over the given channel. Channel
// selection, including the contact's allowed-channel preferences,
// happens before dispatch; a caller that picked a channel the contact
// never listed still gets the attempt made.
func (d *Dispatcher) Dispatch(ctx context.Context, contact *models.TrustedContact, channel models.Channel, msg Message) error {
	driver := d.GetDriver(channel)
	if driver == nil {
		return fmt.Errorf("no driver registered for channel %s", channel)
	}

	if err := driver.Send(ctx, contact, msg); err != nil {
		log.Warn().Err(err).
			Str("contact_id", contact.ID).
			Str("channel", string(channel)).
			Msg("Outreach dispatch failed")
		return err
	}

	log.Info().
		Str("contact_id", contact.ID).
		Str("channel", string(channel)).
		Msg("Outreach dispatched")
	return nil
}

// ── Gateway driver ──────────────────────────────────────────

// gatewayDriver posts outreach jobs to the notification gateway. One
// instance per channel, differing only in the path it posts to.
type gatewayDriver struct {
	kind    models.Channel
	path    string
	baseURL string
	client  *http.Client
}

// gatewayRequest is the gateway's job payload.
type gatewayRequest struct {
	To       string         `json:"to"`
	Name     string         `json:"name,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body"`
	Severity string         `json:"severity"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (g *gatewayDriver) Kind() models.Channel {
	return g.kind
}

func (g *gatewayDriver) Send(ctx context.Context, contact *models.TrustedContact, msg Message) error {
	addr := contact.AddressFor(g.kind)
	if addr == "" {
		return fmt.Errorf("contact %s has no address for channel %s", contact.ID, g.kind)
	}

	payload := gatewayRequest{
		To:       addr,
		Name:     contact.DisplayName,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Severity: msg.Severity,
		Metadata: msg.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outreach payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+g.path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build outreach request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("outreach gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("outreach gateway HTTP %d on %s", resp.StatusCode, g.path)
	}

	log.Debug().
		Str("channel", string(g.kind)).
		Dur("latency", time.Since(start)).
		Msg("Gateway accepted outreach job")
	return nil
}
