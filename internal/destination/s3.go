package destination

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"victory-go/internal/config"
	"victory-go/internal/victory"
)

// S3Scheme prefixes the identifier of an S3 backend.
const S3Scheme = "s3://"

// S3API is the subset of the S3 client used by S3Destination.
type S3API interface {
	manager.UploadAPIClient
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Destination is a victory.Destination over the objects below a bucket
// prefix. S3 lists keys in lexicographic order, so the listing cursor is the
// ListObjectsV2 continuation token plus the unconsumed part of the last page.
type S3Destination struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   victory.Logger

	pending   []string
	token     *string
	exhausted bool
}

// NewS3Destination creates a backend for bucket/prefix. prefix may be empty.
func NewS3Destination(client S3API, bucket, prefix string, logger victory.Logger) *S3Destination {
	if logger == nil {
		logger = victory.NewNopLogger()
	}
	return &S3Destination{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logger,
	}
}

// NewS3Client builds an S3 client from the configured region, endpoint and
// static credentials. Empty credentials use the default AWS chain.
func NewS3Client(cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// ParseS3Identifier splits s3://bucket/prefix into bucket and prefix.
func ParseS3Identifier(id string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(id, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 identifier: %q", id)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 identifier %q has no bucket", id)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// ListFilesNext returns up to count objects, fetching pages as needed.
// Keys ending in "/" are directory markers and skipped.
func (d *S3Destination) ListFilesNext(count int) ([]*victory.FileRecord, error) {
	files := make([]*victory.FileRecord, 0, max(count, 0))
	for len(files) < count {
		if len(d.pending) == 0 {
			if d.exhausted {
				break
			}
			if err := d.fetchPage(); err != nil {
				if len(files) > 0 {
					d.logger.Warn("listing page failed", "root", d.Name(), "error", err)
					return files, nil
				}
				return nil, err
			}
			continue
		}

		files = append(files, victory.NewFileRecord(d.pending[0]))
		d.pending = d.pending[1:]
	}
	return files, nil
}

func (d *S3Destination) fetchPage() error {
	input := &s3.ListObjectsV2Input{
		Bucket:            aws.String(d.bucket),
		ContinuationToken: d.token,
	}
	if d.prefix != "" {
		input.Prefix = aws.String(d.prefix + "/")
	}

	out, err := d.client.ListObjectsV2(context.Background(), input)
	if err != nil {
		return fmt.Errorf("listing s3://%s/%s: %w", d.bucket, d.prefix, err)
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if strings.HasSuffix(key, "/") {
			continue
		}
		rel := d.relativePath(key)
		if rel == "" {
			continue
		}
		d.pending = append(d.pending, rel)
	}

	if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
		d.token = out.NextContinuationToken
	} else {
		d.exhausted = true
	}
	return nil
}

// ReadFile downloads the object for rec. Failures load empty content and log
// a warning.
func (d *S3Destination) ReadFile(rec *victory.FileRecord) error {
	data, err := d.download(rec.RelativePath)
	if err != nil {
		d.logger.Warn("reading file failed, using empty content", "root", d.Name(), "path", rec.RelativePath, "error", err)
		data = []byte{}
	}
	rec.LoadContents(data)
	return nil
}

func (d *S3Destination) download(rel string) ([]byte, error) {
	out, err := d.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(rel)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// WriteFile uploads the record's content. S3 has no directories to create.
func (d *S3Destination) WriteFile(rec *victory.FileRecord) error {
	contents, err := rec.ContentsOrError()
	if err != nil {
		return err
	}

	_, err = d.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(rec.RelativePath)),
		Body:   bytes.NewReader(contents),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", rec.RelativePath, err)
	}
	return nil
}

// Name returns s3://bucket/prefix, or s3://bucket when there is no prefix.
func (d *S3Destination) Name() string {
	if d.prefix == "" {
		return S3Scheme + d.bucket
	}
	return S3Scheme + d.bucket + "/" + d.prefix
}

func (d *S3Destination) key(rel string) string {
	if d.prefix == "" {
		return rel
	}
	return d.prefix + "/" + rel
}

func (d *S3Destination) relativePath(key string) string {
	if d.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, d.prefix+"/")
}

// Compile-time check that S3Destination implements victory.Destination
var _ victory.Destination = (*S3Destination)(nil)
