// utils/r2.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"hunt-publish-system/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// R2Prober checks whether step media exists in the Cloudflare R2 bucket.
type R2Prober struct {
	client *s3.Client
	bucket string
}

func NewR2Prober(ctx context.Context, cfg config.R2Config) (*R2Prober, error) {
	if !cfg.Enabled() {
		return nil, errors.New("r2 prober needs CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL())
		o.UsePathStyle = true
	})
	return &R2Prober{client: client, bucket: cfg.Bucket}, nil
}

// Exists issues a HeadObject. A missing object is (false, nil); anything else that fails
// is returned so the caller can record the key as unknown.
func (p *R2Prober) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}
