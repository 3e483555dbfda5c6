package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNSNotifier_Publish(t *testing.T) {
	fake := &fakePublisher{}
	n := NewSNSNotifier(fake, "arn:aws:sns:eu-west-1:123456789012:changes")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := n.Notify(context.Background(), ChangeEvent{
		Table:     "public.widget",
		Operation: OpCreate,
		Record:    map[string]any{"id": 1, "name": "bolt"},
	})
	require.NoError(t, err)
	require.NotNil(t, fake.input)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:changes", aws.ToString(fake.input.TopicArn))
	assert.Equal(t, "create", aws.ToString(fake.input.MessageAttributes["operation"].StringValue))

	var event ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.Message)), &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "public.widget", event.Table)
	assert.Equal(t, OpCreate, event.Operation)
	assert.Equal(t, "bolt", event.Record["name"])
	assert.Nil(t, event.Keys)
	assert.True(t, event.At.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestSNSNotifier_PublishError(t *testing.T) {
	fake := &fakePublisher{err: errors.New("throttled")}
	err := NewSNSNotifier(fake, "arn:topic").Notify(context.Background(), ChangeEvent{Table: "t", Operation: OpDelete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), ChangeEvent{}))
}
