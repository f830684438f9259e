package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/sweep/internal/probe"
	"github.com/yairfalse/sweep/pkg/resource"
)

// Public-access posture of a bucket.
const (
	PosturePrivate      = "Private"
	PosturePublic       = "Potentially Public"
	PostureUnconfigured = "Potentially Public (Unconfigured)"
)

const codeNoPublicAccessBlock = "NoSuchPublicAccessBlockConfiguration"

// probeObjectStorage lists S3 buckets and resolves each bucket's home region
// and public-access posture. Enrichment failures keep the record and mark
// the attribute unknown.
func (p *Provider) probeObjectStorage(ctx context.Context, region resource.Region) ([]resource.Record, error) {
	client := p.clients.S3(string(region))

	buckets, err := listBuckets(ctx, client)
	if err != nil {
		return nil, err
	}

	reporter := probe.ReporterFrom(ctx)
	records := make([]resource.Record, len(buckets))
	clients := newBucketClients(p.clients, region, client)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.enrichConcurrency)

	for i, bucket := range buckets {
		g.Go(func() error {
			records[i] = enrichBucket(gctx, clients, region, bucket, reporter)
			return nil
		})
	}
	_ = g.Wait()

	// Enrichment cut short by the caller leaves unknown attributes behind.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enrich buckets: %w", err)
	}

	return records, nil
}

// bucketClients hands out one S3 client per bucket home region. Bucket-level
// calls must go to the bucket's own region.
type bucketClients struct {
	factory  ClientFactory
	mu       sync.Mutex
	byRegion map[string]S3API
}

func newBucketClients(factory ClientFactory, anchor resource.Region, client S3API) *bucketClients {
	return &bucketClients{
		factory:  factory,
		byRegion: map[string]S3API{string(anchor): client},
	}
}

func (c *bucketClients) forRegion(region string) S3API {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.byRegion[region]; ok {
		return client
	}
	client := c.factory.S3(region)
	c.byRegion[region] = client
	return client
}

func listBuckets(ctx context.Context, client S3API) ([]s3types.Bucket, error) {
	var buckets []s3types.Bucket
	var token *string

	for {
		output, err := client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}

		buckets = append(buckets, output.Buckets...)

		if aws.ToString(output.ContinuationToken) == "" {
			break
		}
		token = output.ContinuationToken
	}

	return buckets, nil
}

func enrichBucket(ctx context.Context, clients *bucketClients, region resource.Region, bucket s3types.Bucket, reporter probe.Reporter) resource.Record {
	name := aws.ToString(bucket.Name)
	r := resource.NewRecord(name).
		Set("name", name).
		Set("created", formatTime(bucket.CreationDate)).
		Set("objects", resource.NotAvailable)

	partial := func(what string, err error) {
		f := Classify(err)
		f.Kind = resource.PartialField
		f.Region = region
		f.Service = resource.ObjectStorage
		f.Resource = name
		f.Message = fmt.Sprintf("%s: %s", what, f.Message)
		reporter.Report(f)
	}

	anchor := clients.forRegion(string(region))
	location, err := bucketLocation(ctx, anchor, name)
	if err != nil {
		partial("get bucket location", err)
		location = resource.Unknown
	}
	r.Set("region", location)

	home := anchor
	if location != resource.Unknown {
		home = clients.forRegion(location)
	}
	posture, err := bucketPosture(ctx, home, name)
	if err != nil {
		partial("get public access block", err)
		posture = resource.Unknown
	}
	r.Set("type", posture)

	return r
}

// bucketLocation resolves the bucket's home region. An empty constraint
// means us-east-1 and the legacy "EU" constraint means eu-west-1.
func bucketLocation(ctx context.Context, client S3API, bucket string) (string, error) {
	output, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", err
	}

	switch output.LocationConstraint {
	case "":
		return "us-east-1", nil
	case s3types.BucketLocationConstraintEu:
		return "eu-west-1", nil
	default:
		return string(output.LocationConstraint), nil
	}
}

func bucketPosture(ctx context.Context, client S3API, bucket string) (string, error) {
	output, err := client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil {
		if hasCode(err, codeNoPublicAccessBlock) {
			return PostureUnconfigured, nil
		}
		return "", err
	}
	return ClassifyPosture(output.PublicAccessBlockConfiguration), nil
}

// ClassifyPosture is Private only when all four blocking controls are on.
func ClassifyPosture(cfg *s3types.PublicAccessBlockConfiguration) string {
	if cfg == nil {
		return PostureUnconfigured
	}
	if aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.RestrictPublicBuckets) {
		return PosturePrivate
	}
	return PosturePublic
}
