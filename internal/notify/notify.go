// Package notify publishes repository change events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// Operation names a write.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpAppend Operation = "append"
)

// ChangeEvent describes a committed write.
type ChangeEvent struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id,omitempty"`
	Table     string         `json:"table"`
	Operation Operation      `json:"operation"`
	Record    map[string]any `json:"record,omitempty"`
	Keys      map[string]any `json:"keys,omitempty"`
	At        time.Time      `json:"at"`
}

// Notifier receives change events.
type Notifier interface {
	Notify(ctx context.Context, event ChangeEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, ChangeEvent) error { return nil }

// Publisher is the subset of the SNS client used by SNSNotifier.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes each event as a JSON message to one topic.
type SNSNotifier struct {
	client   Publisher
	topicARN string
	now      func() time.Time
}

// NewSNSNotifier creates a notifier for topicARN.
func NewSNSNotifier(client Publisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN, now: time.Now}
}

// NewSNSNotifierFromConfig builds the notifier on an AWS SDK config.
func NewSNSNotifierFromConfig(cfg aws.Config, endpoint *string, topicARN string) *SNSNotifier {
	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return NewSNSNotifier(client, topicARN)
}

func (n *SNSNotifier) Notify(ctx context.Context, event ChangeEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = n.now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"table":     {DataType: aws.String("String"), StringValue: aws.String(event.Table)},
			"operation": {DataType: aws.String("String"), StringValue: aws.String(string(event.Operation))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish change event to %s: %w", n.topicARN, err)
	}
	return nil
}
