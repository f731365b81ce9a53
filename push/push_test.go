package push

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"openfashion/database/memdb"
	"openfashion/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSend(status int, got *[]byte) func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
	return func(payload []byte, _ *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		*got = payload
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	require.NoError(t, store.Push.Save(ctx, &models.PushSubscription{UserID: "t@example.com", Sub: webpush.Subscription{Endpoint: "https://push/1"}}))

	var payload []byte
	s := NewSender(store.Push, "pub", "priv", "mailto:a@b.c")
	s.send = stubSend(http.StatusCreated, &payload)

	require.NoError(t, s.Notify(ctx, "t@example.com", Notification{Title: "Analysis ready", URL: "/jobs/1"}))
	assert.Contains(t, string(payload), "Analysis ready")
	assert.Contains(t, string(payload), "/jobs/1")

	assert.ErrorIs(t, s.Notify(ctx, "nobody@example.com", Notification{}), ErrNoSubscription)
}

func TestNotifyDropsExpiredSubscription(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	require.NoError(t, store.Push.Save(ctx, &models.PushSubscription{UserID: "u", Sub: webpush.Subscription{Endpoint: "https://push/2"}}))

	var payload []byte
	s := NewSender(store.Push, "pub", "priv", "mailto:a@b.c")
	s.send = stubSend(http.StatusGone, &payload)

	assert.ErrorIs(t, s.Notify(ctx, "u", Notification{Title: "x"}), ErrNoSubscription)
	_, err := store.Push.Get(ctx, "u")
	assert.Error(t, err)
}

func TestNotifyDisabledWithoutKeys(t *testing.T) {
	s := NewSender(memdb.New().Push, "", "", "")
	assert.False(t, s.Enabled())
	assert.NoError(t, s.Notify(context.Background(), "u", Notification{}))
}
