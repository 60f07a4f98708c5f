// Package cloudtest stages CI artifact buckets on a local S3-compatible
// endpoint (moto) for integration tests.
//
// Tests using this package are tagged with //go:build cloudintegration:
//
//	func TestArtifacts(t *testing.T) {
//	    b := cloudtest.NewBucket(t)
//	    b.Put(t, map[string]string{"logs/job/1/cir.json": `{"provider":"aws"}`})
//	    p, err := s3.New(ctx, b.ProviderConfig())
//	}
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3provider "github.com/3leaps/prowscope/pkg/provider/s3"
)

// moto accepts any static credentials.
const (
	accessKeyID     = "testing"
	secretAccessKey = "testing"
)

var (
	// Endpoint is the moto server, overridable with MOTO_ENDPOINT.
	Endpoint = envOr("MOTO_ENDPOINT", "http://localhost:5555")

	// Region is the region buckets are created in, overridable with MOTO_REGION.
	Region = envOr("MOTO_REGION", "us-east-1")

	clientOnce sync.Once
	client     *s3.Client
	clientErr  error
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Available reports whether the moto server answers.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func sharedClient(t *testing.T) *s3.Client {
	t.Helper()
	clientOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		)
		if err != nil {
			clientErr = fmt.Errorf("load moto config: %w", err)
			return
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
			o.UsePathStyle = true
		})
	})
	if clientErr != nil {
		t.Fatal(clientErr)
	}
	return client
}

// Bucket is a results bucket staged for one test.
type Bucket struct {
	Name   string
	client *s3.Client
}

// NewBucket skips t when moto is not running, otherwise creates a bucket
// named after the test and empties and removes it when t ends.
func NewBucket(t *testing.T) *Bucket {
	t.Helper()
	if !Available() {
		t.Skipf("moto server not available at %s", Endpoint)
	}

	name := strings.NewReplacer("/", "-", "_", "-").Replace(strings.ToLower(t.Name()))
	if len(name) > 50 {
		name = name[:50]
	}
	b := &Bucket{
		Name:   fmt.Sprintf("%s-%d", name, time.Now().UnixNano()%100000),
		client: sharedClient(t),
	}

	ctx := context.Background()
	if _, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.Name)}); err != nil {
		t.Fatalf("create bucket %s: %v", b.Name, err)
	}
	t.Cleanup(func() { b.remove(t) })
	return b
}

// Put uploads artifacts keyed by object path.
func (b *Bucket) Put(t *testing.T, artifacts map[string]string) {
	t.Helper()
	for key, body := range artifacts {
		_, err := b.client.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String(b.Name),
			Key:    aws.String(key),
			Body:   strings.NewReader(body),
		})
		if err != nil {
			t.Fatalf("put %s/%s: %v", b.Name, key, err)
		}
	}
}

// ProviderConfig returns the artifact provider configuration reading b.
func (b *Bucket) ProviderConfig() s3provider.Config {
	return s3provider.Config{
		Bucket:          b.Name,
		Endpoint:        Endpoint,
		Region:          Region,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		ForcePathStyle:  true,
	}
}

func (b *Bucket) remove(t *testing.T) {
	ctx := context.Background()
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{Bucket: aws.String(b.Name)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			t.Logf("list %s: %v", b.Name, err)
			return
		}
		for _, obj := range page.Contents {
			if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.Name), Key: obj.Key}); err != nil {
				t.Logf("delete %s: %v", aws.ToString(obj.Key), err)
			}
		}
	}
	if _, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(b.Name)}); err != nil {
		t.Logf("delete bucket %s: %v", b.Name, err)
	}
}
