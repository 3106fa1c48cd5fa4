package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config carries the settings for an S3-compatible backend (MinIO in
// development, any S3 endpoint in production).
type S3Config struct {
	Region       string
	User         string
	Password     string
	BaseEndpoint string
	Bucket       string
}

// S3Store stores each blob under vaults/<vault-id>/<blob-id>.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.User,
			cfg.Password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("blob: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func blobKey(vaultID, id string) string {
	return fmt.Sprintf("vaults/%s/%s", vaultID, id)
}

func vaultPrefix(vaultID string) string {
	return fmt.Sprintf("vaults/%s/", vaultID)
}

func (s *S3Store) Put(ctx context.Context, vaultID, id string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey(vaultID, id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("blob: put %s: %w", blobKey(vaultID, id), err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, vaultID, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey(vaultID, id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: get %s: %w", blobKey(vaultID, id), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: reading %s: %w", blobKey(vaultID, id), err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, vaultID, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey(vaultID, id)),
	})
	if err != nil {
		return fmt.Errorf("blob: delete %s: %w", blobKey(vaultID, id), err)
	}
	return nil
}

func (s *S3Store) Usage(ctx context.Context, vaultID string) (int64, error) {
	var total int64

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(vaultPrefix(vaultID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("blob: listing %s: %w", vaultPrefix(vaultID), err)
		}
		for _, obj := range page.Contents {
			if obj.Size != nil {
				total += *obj.Size
			}
		}
	}
	return total, nil
}

func (s *S3Store) DeleteAll(ctx context.Context, vaultID string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(vaultPrefix(vaultID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("blob: listing %s: %w", vaultPrefix(vaultID), err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("blob: bulk delete %s: %w", vaultPrefix(vaultID), err)
		}
	}
	return nil
}
