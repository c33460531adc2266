package aws

import (
	"connectwork/src/types"
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends payment events to a queue. The queue URL is resolved on first use.
type SQSPublisher struct {
	client SQSAPI
	queue  string

	mu  sync.Mutex
	url *string
}

func NewSQSPublisher(client SQSAPI, queue string) *SQSPublisher {
	return &SQSPublisher{client: client, queue: queue}
}

func (s *SQSPublisher) Name() string {
	return "sqs:" + s.queue
}

func (s *SQSPublisher) queueURL(ctx context.Context) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.url != nil {
		return s.url, nil
	}
	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(s.queue),
	})
	if err != nil {
		log.Printf("Failed to retrieve queue URL for %s: %s\n", s.queue, err.Error())
		return nil, err
	}
	s.url = out.QueueUrl
	return s.url, nil
}

func (s *SQSPublisher) Publish(ctx context.Context, ev types.PaymentEvent) error {
	qurl, err := s.queueURL(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    qurl,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Type),
			},
		},
	})
	if err != nil {
		log.Printf("[SQS] Error sending message to %s: %s\n", s.queue, err.Error())
		return err
	}
	log.Printf("[SQS] Sent %s for %s: %s\n", ev.Type, ev.CheckoutRequestID, aws.ToString(out.MessageId))
	return nil
}
