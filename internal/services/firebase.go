package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// InitFirebase initializes the Firebase Admin SDK and returns an auth client
func InitFirebase(credPath string) (*auth.Client, error) {
	app, err := newFirebaseApp(credPath)
	if err != nil {
		return nil, err
	}
	return app.Auth(context.Background())
}

// InitMessaging returns an FCM client used for notification push fan-out
func InitMessaging(credPath string) (*messaging.Client, error) {
	app, err := newFirebaseApp(credPath)
	if err != nil {
		return nil, err
	}
	return app.Messaging(context.Background())
}

func newFirebaseApp(credPath string) (*firebase.App, error) {
	opt := option.WithCredentialsFile(credPath)
	return firebase.NewApp(context.Background(), nil, opt)
}

// FCMPusher mirrors in-app notifications to Firebase Cloud Messaging.
// Clients subscribe to their per-user topic after login.
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(client *messaging.Client) *FCMPusher {
	return &FCMPusher{client: client}
}

// SendToRecipient publishes a push message on the recipient's topic.
func (p *FCMPusher) SendToRecipient(ctx context.Context, recipientID uint, title, message string, data map[string]string) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: fmt.Sprintf("user-%d", recipientID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Data: data,
	})
	return err
}
