package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/probeworks/smokecore/internal/client"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
)

// API is the subset of the S3 API the client uses. Tests substitute a fake.
type API interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3aws.GetObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3aws.HeadObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3aws.ListObjectsV2Input, optFns ...func(*s3aws.Options)) (*s3aws.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3aws.DeleteObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.DeleteObjectOutput, error)
}

// Client is the object-storage client.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client.Base
	log *logging.Logger

	// Resolved from settings during Init.
	bucket         string
	region         string
	endpoint       string
	forcePathStyle bool
	accessKeyID    string
	secretKey      string

	mu  sync.Mutex
	api API
}

// New creates an uninitialized object-storage client from settings.
//
// Recognised settings: bucket (required), region (required), endpoint,
// forcePathStyle, accessKeyId, secretKey. Credentials fall back to the
// ambient AWS credential chain when not set.
func New(name string, settings client.Settings, log *logging.Logger) *Client {
	return &Client{
		Base: client.NewBase(name, client.KindObjectStore, settings),
		log:  log.With("component", component, "client", name),
	}
}

// Init resolves settings and constructs the S3 client.
func (c *Client) Init(ctx context.Context) error {
	if err := c.BeginInit(); err != nil {
		return err
	}

	err := c.connect(ctx)
	c.FinishInit(err)
	return err
}

func (c *Client) connect(ctx context.Context) error {
	settings := c.Settings()

	c.bucket = settings.GetString("bucket", "")
	c.region = settings.GetString("region", "")
	c.endpoint = settings.GetString("endpoint", "")
	c.forcePathStyle = settings.GetBool("forcePathStyle", false)
	c.accessKeyID = settings.GetString("accessKeyId", "")
	c.secretKey = settings.GetString("secretKey", "")

	if c.bucket == "" || c.region == "" {
		return errMissingBucket(c.Name())
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.region),
	}
	if c.accessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.accessKeyID, c.secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return errConnection(c.bucket, err)
	}

	api := s3aws.NewFromConfig(awsCfg, func(o *s3aws.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
		o.UsePathStyle = c.forcePathStyle
	})

	c.mu.Lock()
	c.api = api
	c.mu.Unlock()

	return nil
}

// SetAPI replaces the underlying S3 API. Intended for tests.
func (c *Client) SetAPI(api API) {
	c.mu.Lock()
	c.api = api
	c.mu.Unlock()
}

func (c *Client) currentAPI() API {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// Upload writes an object under key.
func (c *Client) Upload(ctx context.Context, key string, body []byte) error {
	if err := c.EnsureInitialized(); err != nil {
		return err
	}
	if key == "" {
		return errEmptyKey(c.Name())
	}

	_, err := c.currentAPI().PutObject(ctx, &s3aws.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return errOperation("put", c.bucket, key, err)
	}
	return nil
}

// Download reads the object stored under key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, errEmptyKey(c.Name())
	}

	out, err := c.currentAPI().GetObject(ctx, &s3aws.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errOperation("get", c.bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errOperation("get", c.bucket, key, err)
	}
	return body, nil
}

// Exists reports whether an object is stored under key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.EnsureInitialized(); err != nil {
		return false, err
	}
	if key == "" {
		return false, errEmptyKey(c.Name())
	}

	_, err := c.currentAPI().HeadObject(ctx, &s3aws.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, errOperation("head", c.bucket, key, err)
	}
	return true, nil
}

// List returns the keys stored under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}

	out, err := c.currentAPI().ListObjectsV2(ctx, &s3aws.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, errOperation("list", c.bucket, prefix, err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

// Delete removes the object stored under key. Deleting a missing object is
// not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.EnsureInitialized(); err != nil {
		return err
	}
	if key == "" {
		return errEmptyKey(c.Name())
	}

	_, err := c.currentAPI().DeleteObject(ctx, &s3aws.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errOperation("delete", c.bucket, key, err)
	}
	return nil
}

// Destroy releases the API handle. Idempotent; the S3 client holds no
// long-lived connection that needs closing.
func (c *Client) Destroy(_ context.Context) error {
	if !c.BeginDestroy() {
		return nil
	}

	c.mu.Lock()
	c.api = nil
	c.mu.Unlock()
	return nil
}
