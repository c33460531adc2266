package aws

import (
	"connectwork/src/types"
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher broadcasts payment events to a topic so other services can subscribe their own queues.
type SNSPublisher struct {
	client   SNSAPI
	topicArn string
}

func NewSNSPublisher(client SNSAPI, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (s *SNSPublisher) Name() string {
	return "sns"
}

func (s *SNSPublisher) Publish(ctx context.Context, ev types.PaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Type),
			},
		},
	})
	if err != nil {
		log.Printf("[SNS] Error publishing to %s: %s\n", s.topicArn, err.Error())
		return err
	}
	log.Printf("[SNS] Published %s for %s: %s\n", ev.Type, ev.CheckoutRequestID, aws.ToString(out.MessageId))
	return nil
}
