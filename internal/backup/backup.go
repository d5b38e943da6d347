// Package backup exports vault snapshots to S3-compatible object storage.
// Snapshots carry only the cipher-side record fields; plaintext never leaves
// the process.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/vault"
)

// Seams for testing without AWS.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// Config holds the object-storage settings (MinIO-compatible: custom
// endpoint plus static credentials).
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

type Service struct {
	config Config
	logger logging.Logger
}

func NewService(cfg Config, logger logging.Logger) *Service {
	return &Service{config: cfg, logger: logger}
}

// snapshotRow is the stored form of one entry: the same columns the records
// store persists, ciphertext included, plaintext excluded.
type snapshotRow struct {
	ID       string `json:"id"`
	SiteName string `json:"sitename"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	UserID   string `json:"user_id"`
}

func storageKey(ownerID string) string {
	d := time.Now()
	return fmt.Sprintf("backups/%s/%d/%d/%d/%v.json", ownerID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *Service) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.AccessKey,
			s.config.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.config.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot uploads the cipher-side form of the given entries as one JSON
// object and returns its storage key.
func (s *Service) Snapshot(ctx context.Context, ownerID string, entries []vault.Entry) (string, error) {
	rows := make([]snapshotRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, snapshotRow{
			ID:       e.ID,
			SiteName: e.SiteName,
			URL:      e.URL,
			Username: e.Username,
			Password: e.CipherText,
			UserID:   e.OwnerID,
		})
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("snapshot marshal error: %w", err)
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", fmt.Errorf("storage client error: %w", err)
	}

	bucket := s.config.Bucket
	key := storageKey(ownerID)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("snapshot upload error: %w", err)
	}

	s.logger.Info(ctx, "vault snapshot uploaded", "key", key, "entries", len(rows))
	return key, nil
}
