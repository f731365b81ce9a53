// Package push delivers Web Push notifications to a user's saved subscription.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"openfashion/database"

	"github.com/SherClockHolmes/webpush-go"
)

const ttlSeconds = 30

// ErrNoSubscription means the user never subscribed or the endpoint expired.
var ErrNoSubscription = errors.New("no push subscription")

type Notification struct {
	Title string
	Body  string
	URL   string
}

type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

type Sender struct {
	subs       database.PushRepository
	publicKey  string
	privateKey string
	subject    string
	send       func(payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)
}

func NewSender(subs database.PushRepository, publicKey, privateKey, subject string) *Sender {
	return &Sender{
		subs:       subs,
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    subject,
		send:       webpush.SendNotification,
	}
}

// Enabled reports whether VAPID keys are configured.
func (s *Sender) Enabled() bool {
	return s.publicKey != "" && s.privateKey != ""
}

func (s *Sender) PublicKey() string {
	return s.publicKey
}

// Notify sends n to userID. A 404 or 410 from the push service deletes the
// stale subscription.
func (s *Sender) Notify(ctx context.Context, userID string, n Notification) error {
	if !s.Enabled() {
		return nil
	}
	sub, err := s.subs.Get(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNoSubscription
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": n.Title,
		"body":  n.Body,
		"icon":  "/icon-192.png",
		"data": map[string]interface{}{
			"url":       n.URL,
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		return err
	}

	resp, err := s.send(payload, &sub.Sub, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             ttlSeconds,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		if err := s.subs.Delete(ctx, userID); err != nil {
			return err
		}
		return ErrNoSubscription
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
