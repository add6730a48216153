package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
)

// Publisher is the subset of the SNS client used for dispatch.
type Publisher interface {
	PublishWithContext(ctx aws.Context, input *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error)
}

// SNSDispatcher publishes {"eventId": ...} notifications to a topic.
type SNSDispatcher struct {
	client Publisher
	topic  string
}

var _ Dispatcher = (*SNSDispatcher)(nil)

// NewSNSDispatcher creates a dispatcher for topic in region.
func NewSNSDispatcher(region, topic string) (*SNSDispatcher, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("%w: sns session: %w", ErrUnavailable, err)
	}
	return NewSNSDispatcherWithClient(sns.New(sess), topic), nil
}

// NewSNSDispatcherWithClient creates a dispatcher over an existing client.
func NewSNSDispatcherWithClient(client Publisher, topic string) *SNSDispatcher {
	return &SNSDispatcher{client: client, topic: topic}
}

type notification struct {
	EventID string `json:"eventId"`
}

// Enqueue implements Dispatcher.
func (d *SNSDispatcher) Enqueue(ctx context.Context, eventID string) error {
	body, err := json.Marshal(notification{EventID: eventID})
	if err != nil {
		return err
	}
	_, err = d.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topic),
		Subject:  aws.String("inbound-event"),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", eventID, err)
	}
	return nil
}

// Backend implements Dispatcher.
func (d *SNSDispatcher) Backend() string { return BackendSNS }

// Close implements Dispatcher.
func (d *SNSDispatcher) Close() error { return nil }
