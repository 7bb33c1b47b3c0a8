package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"opsboard-backend/internal/documents"
	"opsboard-backend/internal/models"
)

// ObjectPutter is the part of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DetailLoader loads everything printed on a dispatch note.
type DetailLoader func(ctx context.Context, projectID *int, transferID int) (*models.TransferDetail, error)

type Options struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// DispatchArchiver stores a copy of every dispatch note in an S3 compatible
// bucket when the transfer leaves the source.
type DispatchArchiver struct {
	client ObjectPutter
	bucket string
	load   DetailLoader
}

// NewS3Client builds a client for AWS or any S3 compatible endpoint.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("configure s3 client: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewDispatchArchiver(client ObjectPutter, bucket string, load DetailLoader) *DispatchArchiver {
	return &DispatchArchiver{client: client, bucket: bucket, load: load}
}

// ObjectKey is where the note of a transfer is stored.
func ObjectKey(transferNumber string) string {
	return fmt.Sprintf("dispatch-notes/%s.pdf", transferNumber)
}

// Archive renders and uploads the dispatch note of one transfer.
func (a *DispatchArchiver) Archive(ctx context.Context, projectID *int, transferID int) error {
	detail, err := a.load(ctx, projectID, transferID)
	if err != nil {
		return fmt.Errorf("load transfer %d: %w", transferID, err)
	}
	note, err := documents.RenderDispatchNote(detail)
	if err != nil {
		return fmt.Errorf("render dispatch note: %w", err)
	}

	key := ObjectKey(detail.Transfer.TransferNumber)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(note),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.Printf("[Archive] Stored %s (%d bytes)", key, len(note))
	return nil
}

// Listener returns a transition listener that archives on dispatch. The
// upload runs in the background and a failure is only logged.
func (a *DispatchArchiver) Listener() func(ctx context.Context, ev models.TransitionEvent) {
	return func(_ context.Context, ev models.TransitionEvent) {
		if ev.ToStatus != models.TransferStatusDispatched {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Archive(ctx, ev.ProjectID, ev.TransferID); err != nil {
				log.Printf("[Archive] Failed to archive %s: %v", ev.TransferNumber, err)
			}
		}()
	}
}
