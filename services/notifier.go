package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"eventease/models"
)

// Notifier pushes attendance transitions to live dashboards. Delivery is
// best effort; the check-in path never blocks on it.
type Notifier interface {
	CheckInRecorded(eventID string, p *models.Participant)
	CheckOutRecorded(eventID string, p *models.Participant)
	EventCancelled(eventID string)
}

// PubNubNotifier publishes to the per-event dashboard channel.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (n *PubNubNotifier) publish(eventID string, message map[string]any) {
	channel := fmt.Sprintf("event-%s", eventID)
	if _, _, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute(); err != nil {
		slog.Warn("pubnub publish failed", "channel", channel, "error", err)
	}
}

func (n *PubNubNotifier) CheckInRecorded(eventID string, p *models.Participant) {
	n.publish(eventID, map[string]any{
		"type":           "check_in",
		"participant_id": p.ID,
		"name":           p.FullName(),
	})
}

func (n *PubNubNotifier) CheckOutRecorded(eventID string, p *models.Participant) {
	n.publish(eventID, map[string]any{
		"type":           "check_out",
		"participant_id": p.ID,
		"name":           p.FullName(),
	})
}

func (n *PubNubNotifier) EventCancelled(eventID string) {
	n.publish(eventID, map[string]any{
		"type": "event_cancelled",
	})
}

// NoopNotifier is used in tests and when PubNub keys are not configured.
type NoopNotifier struct{}

func (NoopNotifier) CheckInRecorded(string, *models.Participant)  {}
func (NoopNotifier) CheckOutRecorded(string, *models.Participant) {}
func (NoopNotifier) EventCancelled(string)                        {}
