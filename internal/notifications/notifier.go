package notifications

import (
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"
)

// Notifier sends operator alerts via Shoutrrr. This channel is for the
// humans running the service; subscriber-facing notifications go
// through the webhook dispatcher instead.
type Notifier struct {
	sr *router.ServiceRouter
}

// NewNotifier initializes a new Notifier with the provided Shoutrrr
// URLs. Returns nil when operator alerting is not configured; a nil
// Notifier is safe to call.
func NewNotifier(cfg *NotificationConfig) (*Notifier, error) {
	if len(cfg.ShoutrrrURLs) == 0 {
		return nil, nil
	}
	sr, err := router.New(nil, cfg.ShoutrrrURLs...)
	if err != nil {
		return nil, err
	}
	return &Notifier{sr: sr}, nil
}

// Send sends an alert message to all configured services.
func (n *Notifier) Send(title, message string) {
	if n == nil {
		return
	}
	params := types.Params{
		"title": title,
	}
	errs := n.sr.Send(message, &params)
	for _, err := range errs {
		if err != nil {
			logrus.WithError(err).Error("Failed to send operator alert")
		}
	}
}
