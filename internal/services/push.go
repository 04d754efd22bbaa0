package services

import (
	"context"
	"fmt"

	"ironup-backend/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// APNsPusher is the part of *apns2.Client used for delivery
type APNsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// PushNotifier sends APNs alerts to group members that registered a device token
type PushNotifier struct {
	client   APNsPusher
	userRepo UserStore
	topic    string
}

// NewPushNotifier loads the .p12 certificate and builds an APNs client
func NewPushNotifier(userRepo UserStore, certFile, certPassword, topic string, production bool) (*PushNotifier, error) {
	cert, err := certificate.FromP12File(certFile, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newPushNotifier(client, userRepo, topic), nil
}

func newPushNotifier(client APNsPusher, userRepo UserStore, topic string) *PushNotifier {
	return &PushNotifier{client: client, userRepo: userRepo, topic: topic}
}

// Publish pushes an alert about event to every recipient with a device token
func (p *PushNotifier) Publish(ctx context.Context, recipients []string, event GroupEvent) {
	title, body, ok := alertFor(event)
	if !ok {
		return
	}

	for _, username := range recipients {
		user, err := p.userRepo.GetByUsername(ctx, username)
		if err != nil || user.PushToken == nil || *user.PushToken == "" {
			continue
		}

		notification := &apns2.Notification{
			DeviceToken: *user.PushToken,
			Topic:       p.topic,
			Payload: payload.NewPayload().
				AlertTitle(title).
				AlertBody(body).
				Sound("default").
				Custom("group_id", event.GroupID),
		}

		res, err := p.client.PushWithContext(ctx, notification)
		switch {
		case err != nil:
			metrics.PushNotifications.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("username", username).Msg("Failed to send push notification")
		case !res.Sent():
			metrics.PushNotifications.WithLabelValues("rejected").Inc()
			log.Warn().
				Str("username", username).
				Int("status", res.StatusCode).
				Str("reason", res.Reason).
				Msg("Push notification rejected")
		default:
			metrics.PushNotifications.WithLabelValues("sent").Inc()
		}
	}
}

func alertFor(event GroupEvent) (title, body string, ok bool) {
	switch event.Type {
	case EventMemberJoined:
		return "New teammate", event.Actor + " joined your challenge", true
	case EventCheckedIn:
		return "Check-in", event.Actor + " completed today's set", true
	}
	return "", "", false
}

// Broadcaster fans an event out to several publishers
type Broadcaster []EventPublisher

// Publish implements EventPublisher
func (b Broadcaster) Publish(ctx context.Context, recipients []string, event GroupEvent) {
	if len(recipients) == 0 {
		return
	}
	for _, p := range b {
		p.Publish(ctx, recipients, event)
	}
}
