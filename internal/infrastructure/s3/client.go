package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-checkin-agent/internal/config"
	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/pkg/id"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Receipt is the archived record of a counted check-in.
type Receipt struct {
	Attendance *domain.Attendance `json:"attendance"`
	Event      *domain.Event      `json:"event,omitempty"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// ReceiptArchive writes attendance receipts to S3.
type ReceiptArchive struct {
	client putObjectAPI
	bucket string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, cfg *config.Config) *s3.Client {
	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...)
}

// NewReceiptArchive creates an archive with the given S3 client and bucket name.
func NewReceiptArchive(client putObjectAPI, bucket string) *ReceiptArchive {
	return &ReceiptArchive{client: client, bucket: bucket}
}

// Upload streams an object to S3 under key and returns the object URL.
func (a *ReceiptArchive) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Archive stores a JSON receipt under receipts/<event id>/<ulid>.json.
func (a *ReceiptArchive) Archive(ctx context.Context, attendance *domain.Attendance, event *domain.Event) (string, error) {
	if attendance == nil {
		return "", fmt.Errorf("receipt without attendance: %w", domain.ErrBadRequest)
	}
	body, err := json.Marshal(Receipt{Attendance: attendance, Event: event, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	eventID := attendance.EventID
	if eventID == "" && event != nil {
		eventID = event.ID
	}
	if eventID == "" {
		eventID = "unknown"
	}
	key := fmt.Sprintf("receipts/%s/%s.json", eventID, id.New())
	return a.Upload(ctx, key, bytes.NewReader(body), "application/json")
}
