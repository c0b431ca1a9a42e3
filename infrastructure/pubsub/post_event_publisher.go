package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub"

	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"
)

// PostEventPublisher publishes lifecycle events to a Pub/Sub topic, ordered
// per post.
type PostEventPublisher struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

var _ repository.IPostEventPublisher = (*PostEventPublisher)(nil)

func NewPostEventPublisher(client *pubsub.Client, topicName string) *PostEventPublisher {
	return &PostEventPublisher{client: client, topicName: topicName}
}

func (p *PostEventPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}

	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
		if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
			return nil, err
		}
	}
	topic.EnableMessageOrdering = true
	p.topic = topic
	return topic, nil
}

func (p *PostEventPublisher) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data:        payload,
		OrderingKey: evt.PostID,
		Attributes: map[string]string{
			"event_id": evt.ID,
			"type":     string(evt.Type),
			"post_id":  evt.PostID,
		},
	}
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		topic.ResumePublish(evt.PostID)
		return err
	}
	logger.GetLogger().WithField("server_id", serverID).WithField("post_id", evt.PostID).Debug("post event published")
	return nil
}

// Stop flushes pending messages.
func (p *PostEventPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
