package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginetl/internal/etlerr"
)

type fakeClient struct {
	in       *sqs.ReceiveMessageInput
	out      *sqs.ReceiveMessageOutput
	err      error
	deadline bool
}

func (f *fakeClient) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.in = in
	_, f.deadline = ctx.Deadline()
	return f.out, f.err
}

func TestReceive_UsesJobParameters(t *testing.T) {
	fc := &fakeClient{out: &sqs.ReceiveMessageOutput{Messages: []types.Message{
		{MessageId: aws.String("m-1"), Body: aws.String(`{"a":1}`), ReceiptHandle: aws.String("rh-1")},
		{MessageId: aws.String("m-2"), Body: aws.String(`{"a":2}`)},
	}}}
	cfg := DefaultConfig()
	cfg.QueueURL = "http://localhost:4566/000000000000/login-queue"

	msgs, err := NewWithClient(fc, cfg, nil).Receive(context.Background())

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, []byte(`{"a":1}`), msgs[0].Body)
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
	assert.Equal(t, "", msgs[1].ReceiptHandle)

	assert.Equal(t, cfg.QueueURL, aws.ToString(fc.in.QueueUrl))
	assert.Equal(t, int32(10), fc.in.MaxNumberOfMessages)
	assert.Equal(t, int32(120), fc.in.VisibilityTimeout)
	assert.Equal(t, int32(0), fc.in.WaitTimeSeconds)
	assert.True(t, fc.deadline, "receive must be bounded")
}

func TestReceive_EmptyQueue(t *testing.T) {
	fc := &fakeClient{out: &sqs.ReceiveMessageOutput{}}

	msgs, err := NewWithClient(fc, DefaultConfig(), nil).Receive(context.Background())

	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReceive_ErrorIsSourceError(t *testing.T) {
	cause := errors.New("AWS.SimpleQueueService.NonExistentQueue")
	fc := &fakeClient{err: cause}

	_, err := NewWithClient(fc, Config{ReceiveTimeout: time.Second}, nil).Receive(context.Background())

	require.ErrorIs(t, err, etlerr.SourceError)
	require.ErrorIs(t, err, cause)
}

func TestReceive_NoTimeoutConfigured(t *testing.T) {
	fc := &fakeClient{out: &sqs.ReceiveMessageOutput{}}

	_, err := NewWithClient(fc, Config{}, nil).Receive(context.Background())

	require.NoError(t, err)
	assert.False(t, fc.deadline)
}
