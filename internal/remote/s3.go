package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Mangusthvile/talevox/internal/vox"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
const multipartUploadPartSize = 5 * 1024 * 1024

// S3Config holds configuration for the S3 remote.
type S3Config struct {
	Bucket          string
	Prefix          string // key prefix acting as the backend root
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// S3Remote implements the RemoteStore interface for AWS S3 and
// S3-compatible storage.
//
// S3 has no real folders, so the folder model maps onto the keyspace:
// a folder ID is a key prefix ending in "/", a file ID is a full object
// key. Folders exist implicitly and carry no marker objects; listing
// uses a delimiter so nested prefixes surface as folders.
type S3Remote struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	basePrefix string // normalized: empty, or ends in "/"
	logger     vox.Logger
}

// NewS3Remote creates a new S3Remote with the given configuration and
// verifies bucket access.
func NewS3Remote(ctx context.Context, cfg S3Config, logger vox.Logger) (*S3Remote, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if logger == nil {
		logger = vox.NewNopLogger()
	}

	// Build AWS config options
	var optFuncs []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		optFuncs = append(optFuncs, awsconfig.WithRegion(cfg.Region))
	}

	// Set custom credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with optional custom endpoint
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	// Verify bucket access with a HEAD request
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	basePrefix := strings.Trim(cfg.Prefix, "/")
	if basePrefix != "" {
		basePrefix += "/"
	}

	logger.Info("S3 remote initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"prefix", basePrefix,
	)

	return &S3Remote{
		client:     client,
		uploader:   uploader,
		bucket:     cfg.Bucket,
		basePrefix: basePrefix,
		logger:     logger,
	}, nil
}

// Name identifies the backend.
func (s *S3Remote) Name() string {
	return "s3"
}

// folderKey resolves a folder ID to its key prefix. An empty ID means
// the backend root.
func (s *S3Remote) folderKey(parentID string) (string, error) {
	if parentID == "" {
		return s.basePrefix, nil
	}
	if !strings.HasSuffix(parentID, "/") {
		return "", fmt.Errorf("folder ID %q does not end in /", parentID)
	}
	return parentID, nil
}

// validateName rejects names that would break the key mapping.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name not allowed")
	}
	if strings.ContainsRune(name, '\x00') {
		return fmt.Errorf("null bytes not allowed in name")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("name must not contain /")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("relative path elements not allowed")
	}
	return nil
}

// EnsureFolder returns the folder's prefix-ID. Folders are implicit in
// the keyspace, so there is nothing to create.
func (s *S3Remote) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", newRemoteError("EnsureFolder", name, err)
	}
	parent, err := s.folderKey(parentID)
	if err != nil {
		return "", newRemoteError("EnsureFolder", parentID, err)
	}
	return parent + name + "/", nil
}

// List returns the immediate children of a folder. Object keys under a
// deeper prefix are folded into folder entries via the "/" delimiter.
func (s *S3Remote) List(ctx context.Context, parentID string) ([]vox.RemoteFile, error) {
	prefix, err := s.folderKey(parentID)
	if err != nil {
		return nil, newRemoteError("List", parentID, err)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []vox.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newRemoteError("List", prefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			out = append(out, vox.RemoteFile{
				ID:       *cp.Prefix,
				Name:     path.Base(strings.TrimSuffix(*cp.Prefix, "/")),
				ParentID: prefix,
				IsFolder: true,
			})
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == prefix {
				continue
			}
			f := vox.RemoteFile{
				ID:       *obj.Key,
				Name:     path.Base(*obj.Key),
				ParentID: prefix,
			}
			if obj.Size != nil {
				f.Size = *obj.Size
			}
			if obj.LastModified != nil {
				f.ModifiedAt = *obj.LastModified
			}
			out = append(out, f)
		}
	}

	return out, nil
}

// Upload creates or replaces the object at parentID/name. The object key
// is the file ID, so replacement is a plain put.
func (s *S3Remote) Upload(ctx context.Context, parentID, name string, r io.Reader, size int64) (string, error) {
	if err := validateName(name); err != nil {
		return "", newRemoteError("Upload", name, err)
	}
	prefix, err := s.folderKey(parentID)
	if err != nil {
		return "", newRemoteError("Upload", parentID, err)
	}
	key := prefix + name

	// Use multipart upload manager for streaming upload (no memory exhaustion)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}); err != nil {
		return "", newRemoteError("Upload", key, err)
	}

	s.logger.Debug("object stored in S3", "key", key, "size", size)
	return key, nil
}

// Delete removes an object by key.
func (s *S3Remote) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return newRemoteError("Delete", fileID, fmt.Errorf("empty file ID"))
	}

	// S3 doesn't error on delete of non-existent objects by default
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	}); err != nil {
		return newRemoteError("Delete", fileID, err)
	}

	s.logger.Debug("object deleted from S3", "key", fileID)
	return nil
}

// Fetch retrieves an object by key and writes it to w.
func (s *S3Remote) Fetch(ctx context.Context, fileID string, w io.Writer) error {
	if fileID == "" {
		return newRemoteError("Fetch", fileID, fmt.Errorf("empty file ID"))
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return newRemoteError("Fetch", fileID, fmt.Errorf("not found: %w", err))
		}
		return newRemoteError("Fetch", fileID, err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(w, result.Body); err != nil {
		return newRemoteError("Fetch", fileID, err)
	}
	return nil
}

// Compile-time check that S3Remote implements vox.RemoteStore
var _ vox.RemoteStore = (*S3Remote)(nil)
