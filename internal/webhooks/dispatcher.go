package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/models"
	"github.com/Heisenberg1912/filecoin/internal/store"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher delivers signed event notifications to registered
// subscribers. Delivery is fire-and-forget: the triggering caller never
// waits, failures are recorded in counters and the bounded log, and
// nothing is retried.
type Dispatcher struct {
	db     store.Database
	client *http.Client
}

// NewDispatcher initializes a Dispatcher over the given store.
func NewDispatcher(db store.Database) *Dispatcher {
	return &Dispatcher{
		db:     db,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Trigger selects every enabled subscription whose event set includes
// the event's kind and delivers to each in its own goroutine. Errors
// loading subscriptions are logged, never surfaced to the caller.
func (d *Dispatcher) Trigger(event Event) {
	hooks, err := d.db.ListWebhooks(context.Background())
	if err != nil {
		logrus.WithError(err).Error("Failed to load webhooks for dispatch")
		return
	}

	envelope := Envelope{
		Event:     event.Kind(),
		Timestamp: time.Now().UTC(),
		Data:      event,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode event envelope")
		return
	}

	for _, hook := range hooks {
		if !hook.Enabled || !hook.SubscribedTo(string(event.Kind())) {
			continue
		}
		go d.deliver(hook, event.Kind(), body)
	}
}

// deliver posts one envelope to one subscriber and records the outcome.
func (d *Dispatcher) deliver(hook models.Webhook, kind EventKind, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	err := d.post(ctx, hook, kind, body)

	logEntry := models.WebhookLogEntry{
		WebhookID: hook.ID,
		Event:     string(kind),
		Success:   err == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		logEntry.Error = err.Error()
		logrus.WithFields(logrus.Fields{
			"webhook": hook.ID,
			"event":   kind,
			"error":   err.Error(),
		}).Warn("Webhook delivery failed")
	}

	d.record(hook.ID, err == nil)

	if logErr := d.db.AppendWebhookLog(context.Background(), logEntry); logErr != nil {
		logrus.WithError(logErr).Error("Failed to append webhook log entry")
	}
}

func (d *Dispatcher) post(ctx context.Context, hook models.Webhook, kind EventKind, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event", string(kind))
	req.Header.Set("X-Webhook-Id", hook.ID)
	if hook.Secret != "" {
		req.Header.Set("X-Signature", Sign(body, hook.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber returned status %d", resp.StatusCode)
	}
	return nil
}

// record updates the subscription's delivery counters.
func (d *Dispatcher) record(hookID string, success bool) {
	ctx := context.Background()
	hook, err := d.db.GetWebhook(ctx, hookID)
	if err != nil {
		logrus.WithError(err).WithField("webhook", hookID).Error("Failed to load webhook for counter update")
		return
	}

	if success {
		hook.SuccessCount++
	} else {
		hook.FailCount++
	}
	hook.LastTriggeredAt = time.Now().UTC()

	if err := d.db.UpdateWebhook(ctx, hook); err != nil {
		logrus.WithError(err).WithField("webhook", hookID).Error("Failed to update webhook counters")
	}
}

// Sign computes the hex HMAC-SHA256 of the serialized envelope.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
