package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"invsnap/internal/config"
	"invsnap/internal/inv"
)

// s3Client is the subset of the S3 API the vault calls directly.
type s3Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// uploader is satisfied by *manager.Uploader.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Vault stores artifacts as objects in an S3 bucket, optionally under a
// key prefix:
//
//	s3://<bucket>/<prefix>/<artifact name>
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3Client
	uploader uploader
}

// NewS3Vault builds an S3 client from the vault config. Static credentials are
// used when both key fields are set; otherwise the default AWS credential
// chain applies. A custom endpoint switches to path-style addressing so
// S3-compatible services work.
func NewS3Vault(cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3KeyID != "" && cfg.S3Secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3KeyID, cfg.S3Secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client, manager.NewUploader(client)), nil
}

func newS3Vault(name, bucket, prefix string, client s3Client, up uploader) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: up,
	}
}

func (v *S3Vault) key(name string) string {
	if v.prefix == "" {
		return name
	}
	return path.Join(v.prefix, name)
}

// PutArtifact uploads the artifact. The body is buffered so a short reader
// is rejected before anything reaches the bucket.
func (v *S3Vault) PutArtifact(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	_, err = v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(v.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", name, v.bucket, err)
	}
	return nil
}

// GetArtifact downloads the named artifact into w.
func (v *S3Vault) GetArtifact(name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("downloading %s from s3://%s: %w", name, v.bucket, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the artifact names under the vault prefix in
// lexical order. Nested keys are ignored.
func (v *S3Vault) ListArtifacts() ([]string, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(v.bucket)}
	keyPrefix := ""
	if v.prefix != "" {
		keyPrefix = v.prefix + "/"
		in.Prefix = aws.String(keyPrefix)
	}

	names := []string{}
	p := s3.NewListObjectsV2Paginator(v.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(context.Background())
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s: %w", v.bucket, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup checks that the bucket exists and the credentials can reach it.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, inv.EncryptedSuffix) {
		return "application/octet-stream"
	}
	return "application/json"
}

var _ inv.Vault = (*S3Vault)(nil)
