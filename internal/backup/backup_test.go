package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/vault"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func stubAWS(t *testing.T, put func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error)) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return put(ctx, in)
	}
}

func TestService_Snapshot(t *testing.T) {
	var captured *s3.PutObjectInput
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		captured = in
		return &s3.PutObjectOutput{}, nil
	})

	svc := NewService(Config{Bucket: "vault-backups", Region: "us-east-1"}, testLogger())

	entries := []vault.Entry{
		{
			ID:         "id-1",
			OwnerID:    "u1",
			SiteName:   "github.com",
			URL:        "https://github.com",
			Username:   "bob",
			CipherText: "b64cipher",
			PlainText:  "hunter2",
		},
	}

	key, err := svc.Snapshot(context.Background(), "u1", entries)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "backups/u1/"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".json"))

	require.NotNil(t, captured)
	assert.Equal(t, "vault-backups", *captured.Bucket)
	assert.Equal(t, key, *captured.Key)
	assert.Equal(t, "application/json", *captured.ContentType)

	body, err := io.ReadAll(captured.Body)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b64cipher", rows[0]["password"])
	assert.NotContains(t, string(body), "hunter2", "plaintext must never be uploaded")
}

func TestService_Snapshot_EmptyVault(t *testing.T) {
	var captured *s3.PutObjectInput
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		captured = in
		return &s3.PutObjectOutput{}, nil
	})

	svc := NewService(Config{Bucket: "vault-backups"}, testLogger())

	_, err := svc.Snapshot(context.Background(), "u1", nil)
	require.NoError(t, err)

	body, err := io.ReadAll(captured.Body)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(body))
}

func TestService_Snapshot_UploadError(t *testing.T) {
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, errors.New("access denied")
	})

	svc := NewService(Config{Bucket: "vault-backups"}, testLogger())

	_, err := svc.Snapshot(context.Background(), "u1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot upload error")
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Bucket: "b"}.Enabled())
}
