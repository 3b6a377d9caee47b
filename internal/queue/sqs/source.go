// Package sqs implements queue.Source on Amazon SQS (or a compatible
// endpoint such as LocalStack) with aws-sdk-go-v2.
package sqs

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"loginetl/internal/etlerr"
	"loginetl/internal/queue"
)

// Config holds SQS receive settings.
type Config struct {
	QueueURL string
	// Region is the AWS region of the queue.
	Region string
	// Endpoint is an optional custom endpoint (LocalStack, ElasticMQ).
	Endpoint string

	MaxMessages       int32
	VisibilityTimeout int32 // seconds
	WaitTime          int32 // seconds; 0 returns immediately
	// ReceiveTimeout bounds the whole ReceiveMessage call.
	ReceiveTimeout time.Duration
}

// DefaultConfig returns the receive settings of the login job: up to 10
// messages, 120s visibility, no long polling.
func DefaultConfig() Config {
	return Config{
		Region:            "us-east-1",
		Endpoint:          "http://localhost:4566",
		MaxMessages:       10,
		VisibilityTimeout: 120,
		WaitTime:          0,
		ReceiveTimeout:    10 * time.Second,
	}
}

// ReceiveMessageAPI is the subset of *sqs.Client used by Source.
type ReceiveMessageAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
}

// Source receives messages from one queue.
type Source struct {
	client ReceiveMessageAPI
	cfg    Config
	log    *zap.Logger
}

var _ queue.Source = (*Source)(nil)

// New creates an SQS client from the default AWS credential chain.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindSource, "load AWS config", err)
	}

	var sqsOpts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(sqs.NewFromConfig(awsCfg, sqsOpts...), cfg, log), nil
}

// NewWithClient creates a Source around a pre-configured client.
func NewWithClient(client ReceiveMessageAPI, cfg Config, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{client: client, cfg: cfg, log: log.With(zap.String("component", "sqs"))}
}

// Receive issues a single ReceiveMessage call. Received messages stay on
// the queue and become visible again after the visibility timeout.
func (s *Source) Receive(ctx context.Context) ([]queue.Message, error) {
	if s.cfg.ReceiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReceiveTimeout)
		defer cancel()
	}

	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.cfg.QueueURL),
		MaxNumberOfMessages: s.cfg.MaxMessages,
		VisibilityTimeout:   s.cfg.VisibilityTimeout,
		WaitTimeSeconds:     s.cfg.WaitTime,
	})
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindSource, "receive message", err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, queue.Message{
			ID:            aws.ToString(m.MessageId),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	s.log.Debug("received messages", zap.Int("count", len(msgs)), zap.String("queue_url", s.cfg.QueueURL))
	return msgs, nil
}
