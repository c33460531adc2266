package aws

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CallbackArchive stores raw provider callbacks as-is, one object per delivery.
type CallbackArchive struct {
	client S3API
	bucket string
	now    func() time.Time
}

func NewCallbackArchive(client S3API, bucket string) *CallbackArchive {
	return &CallbackArchive{client: client, bucket: bucket, now: time.Now}
}

func (a *CallbackArchive) key(checkoutRequestID string) string {
	now := a.now().UTC()
	return fmt.Sprintf("mpesa/callbacks/%s/%s-%d.json", now.Format("2006/01/02"), checkoutRequestID, now.UnixNano())
}

func (a *CallbackArchive) Archive(ctx context.Context, checkoutRequestID string, payload []byte) (string, error) {
	key := a.key(checkoutRequestID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Printf("[S3] Could not archive callback %s: %s\n", checkoutRequestID, err.Error())
		return "", err
	}
	return key, nil
}
