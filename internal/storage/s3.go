package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Options configures the client. Static keys and a custom endpoint are
// optional; without them the default AWS credential chain is used.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Client wraps the AWS S3 client with transparent encryption support
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
}

// FileMetadata represents metadata about a stored file
type FileMetadata struct {
	OriginalName     string            `json:"original_name"`
	ContentType      string            `json:"content_type"`
	Size             int64             `json:"size"`
	Encrypted        bool              `json:"encrypted"`
	Metadata         map[string]string `json:"metadata"`
	EncryptionFormat string            `json:"encryption_format,omitempty"`
}

// NewS3Client creates a new S3 client
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucketName: opts.Bucket,
	}, nil
}

func (s *S3Client) Bucket() string { return s.bucketName }

// Ping checks that the bucket is reachable with the configured credentials.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}

// DownloadFile fetches an object from bucket (empty means the default
// bucket) and decrypts it when it carries an encryption framing.
func (s *S3Client) DownloadFile(ctx context.Context, bucket, key, password string) ([]byte, *FileMetadata, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	meta := &FileMetadata{Metadata: make(map[string]string)}
	for k, v := range result.Metadata {
		meta.Metadata[strings.ToLower(k)] = v
	}
	meta.OriginalName = meta.Metadata["name"]
	if result.ContentType != nil {
		meta.ContentType = *result.ContentType
	}
	if result.ContentLength != nil {
		meta.Size = *result.ContentLength
	}

	if IsEncrypted(data) {
		plain, format, err := Decrypt(data, password)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
		}
		data = plain
		meta.Encrypted = true
		meta.EncryptionFormat = format
	}

	log.Info().Str("bucket", bucket).Str("key", key).Bool("encrypted", meta.Encrypted).Int("size", len(data)).Msg("downloaded file from S3")
	return data, meta, nil
}

// UploadFile stores data, encrypting it first when password is set, and
// returns the s3:// location.
func (s *S3Client) UploadFile(ctx context.Context, key string, data []byte, password string, meta *FileMetadata) (string, error) {
	body := data
	s3Meta := map[string]string{}
	contentType := "application/octet-stream"
	if meta != nil {
		if meta.OriginalName != "" {
			s3Meta["name"] = meta.OriginalName
		}
		if meta.ContentType != "" {
			contentType = meta.ContentType
		}
		for k, v := range meta.Metadata {
			s3Meta[k] = v
		}
	}
	if password != "" {
		enc, err := Encrypt(data, password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt data: %w", err)
		}
		body = enc
		s3Meta["encrypted"] = "true"
		s3Meta["encryption-format"] = FormatGCM
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    s3Meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	loc := fmt.Sprintf("s3://%s/%s", s.bucketName, key)
	log.Info().Str("location", loc).Int("size", len(body)).Bool("encrypted", password != "").Msg("uploaded file to S3")
	return loc, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(u, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", u)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", u)
	}
	return bucket, key, nil
}
