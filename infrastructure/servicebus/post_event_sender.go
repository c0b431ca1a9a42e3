package servicebus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"
)

// NewClient authenticates against the namespace with the default Azure
// credential chain.
func NewClient(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// PostEventSender sends lifecycle events to a Service Bus queue.
type PostEventSender struct {
	client *azservicebus.Client
	queue  string

	mu     sync.Mutex
	sender *azservicebus.Sender
}

var _ repository.IPostEventPublisher = (*PostEventSender)(nil)

func NewPostEventSender(client *azservicebus.Client, queue string) *PostEventSender {
	return &PostEventSender{client: client, queue: queue}
}

func newMessage(evt model.PostEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	subject := string(evt.Type)
	messageID := evt.ID
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &messageID,
		ApplicationProperties: map[string]any{
			"post_id": evt.PostID,
			"user_id": evt.UserID,
			"status":  string(evt.Status),
		},
	}, nil
}

func (s *PostEventSender) getSender() (*azservicebus.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender != nil {
		return s.sender, nil
	}
	sender, err := s.client.NewSender(s.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	s.sender = sender
	return sender, nil
}

func (s *PostEventSender) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	msg, err := newMessage(evt)
	if err != nil {
		return err
	}
	sender, err := s.getSender()
	if err != nil {
		return err
	}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).WithField("post_id", evt.PostID).Error("Error while sending message.")
		return err
	}
	return nil
}

func (s *PostEventSender) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender == nil {
		return
	}
	if err := s.sender.Close(ctx); err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while closing sender.")
	}
	s.sender = nil
}
