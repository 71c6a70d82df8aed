package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/opentuf/idxclient/transport"
)

// S3Mirror serves repository content out of an S3 bucket, upgrading
// the aws-sdk-go v1 client the wider codebase historically used to the
// v2 client generation, in line with how this stack now issues
// requests elsewhere.
type S3Mirror struct {
	bucket string
	prefix string
	client *s3.Client
}

// NewS3Mirror builds a mirror backed by bucket, prefixed with prefix
// (e.g. "repository"). Credentials and region are resolved the normal
// SDK way (environment, shared config, IMDS).
func NewS3Mirror(ctx context.Context, bucket, prefix, region string) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("remote: loading aws config: %w", err)
	}
	return &S3Mirror{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: s3.NewFromConfig(cfg),
	}, nil
}

// NewS3MirrorWithCredentials builds a mirror the same way as NewS3Mirror
// but pins a static access key/secret/session token instead of letting
// the SDK resolve credentials from its default chain, for deployments
// that inject repository credentials out of band rather than through
// the environment or an instance role.
func NewS3MirrorWithCredentials(ctx context.Context, bucket, prefix, region, accessKeyID, secretAccessKey, sessionToken string) (*S3Mirror, error) {
	provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region), awsconfig.WithCredentialsProvider(provider))
	if err != nil {
		return nil, fmt.Errorf("remote: loading aws config: %w", err)
	}
	return &S3Mirror{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: s3.NewFromConfig(cfg),
	}, nil
}

func (m *S3Mirror) Base() string { return "s3://" + m.bucket + "/" + m.prefix }

func (m *S3Mirror) key(uri string) string {
	uri = strings.TrimPrefix(uri, "/")
	if m.prefix == "" {
		return uri
	}
	return m.prefix + "/" + uri
}

func (m *S3Mirror) Get(ctx context.Context, _ transport.RequestHeaders, uri string) (transport.ResponseHeaders, io.ReadCloser, error) {
	key := m.key(uri)
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return transport.ResponseHeaders{}, nil, transport.RemoteError{URI: m.Base() + "/" + key, Err: err}
	}
	return transport.ResponseHeaders{AcceptRangesBytes: true}, out.Body, nil
}

func (m *S3Mirror) GetRange(ctx context.Context, _ transport.RequestHeaders, uri string, from, to int64) (transport.ResponseHeaders, io.ReadCloser, error) {
	key := m.key(uri)
	rng := fmt.Sprintf("bytes=%d-%d", from, to-1)
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return transport.ResponseHeaders{}, nil, transport.RemoteError{URI: m.Base() + "/" + key, Err: err}
	}
	return transport.ResponseHeaders{AcceptRangesBytes: true}, out.Body, nil
}
