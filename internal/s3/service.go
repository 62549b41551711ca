package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
)

const presignExpiry = 30 * time.Minute

// Service stores rendered documents. It is nil when storage is disabled.
type Service interface {
	UploadDocument(ctx context.Context, document *Document) error
	GetDocument(ctx context.Context, id string, docType DocumentType) ([]byte, error)
	GetPresignedUrl(ctx context.Context, id string, docType DocumentType) (string, error)
	Exists(ctx context.Context, id string, docType DocumentType) (bool, error)
}

type service struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewService(cfg *config.Configuration) (Service, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(cfg.S3.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to load aws config").
			Mark(ierr.ErrHTTPClient)
	}

	return &service{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3.Bucket,
		prefix: cfg.S3.KeyPrefix,
	}, nil
}

// objectKey lays documents out as <prefix>/<type>/<id>.pdf
func (s *service) objectKey(id string, docType DocumentType) string {
	key := fmt.Sprintf("%s/%s.pdf", docType, id)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

func contentType(kind DocumentKind) string {
	if kind == DocumentKindPdf {
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (s *service) Exists(ctx context.Context, id string, docType DocumentType) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id, docType)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("failed to check if document exists").
			Mark(ierr.ErrHTTPClient)
	}
	return true, nil
}

func (s *service) GetPresignedUrl(ctx context.Context, id string, docType DocumentType) (string, error) {
	key := s.objectKey(id, docType)
	result, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("failed to get presigned url").
			WithMessagef("bucket:%s, key:%s", s.bucket, key).
			Mark(ierr.ErrHTTPClient)
	}
	return result.URL, nil
}

func (s *service) UploadDocument(ctx context.Context, document *Document) error {
	key := s.objectKey(document.ID, document.Type)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(document.Data),
		ContentType: aws.String(contentType(document.Kind)),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to upload document").
			WithMessagef("bucket:%s, key:%s", s.bucket, key).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

func (s *service) GetDocument(ctx context.Context, id string, docType DocumentType) ([]byte, error) {
	key := s.objectKey(id, docType)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to get document").
			WithMessagef("bucket:%s, key:%s", s.bucket, key).
			Mark(ierr.ErrHTTPClient)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}
