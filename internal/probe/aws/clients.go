package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Config holds AWS settings for the probes.
type Config struct {
	Profile         string
	BootstrapRegion string
}

// SDKMaxAttempts is how many attempts the SDK makes per API call, retries
// included. Discovery retries a whole throttled probe on top of this.
const SDKMaxAttempts = 3

// SDKFactory builds real SDK clients from one loaded aws.Config.
type SDKFactory struct {
	cfg aws.Config
}

// NewSDKFactory loads credentials from the default chain (env, shared
// config, instance role). Credentials are never read or stored by Sweep.
func NewSDKFactory(ctx context.Context, cfg Config) (*SDKFactory, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.BootstrapRegion),
		config.WithRetryMode(aws.RetryModeAdaptive),
		config.WithRetryMaxAttempts(SDKMaxAttempts),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SDKFactory{cfg: awsCfg}, nil
}

// forRegion copies the base config so clients never share mutable state.
func (f *SDKFactory) forRegion(region string) aws.Config {
	cfg := f.cfg.Copy()
	cfg.Region = region
	return cfg
}

// EC2 returns an EC2 client bound to region.
func (f *SDKFactory) EC2(region string) EC2API {
	return ec2.NewFromConfig(f.forRegion(region))
}

// S3 returns an S3 client bound to region.
func (f *SDKFactory) S3(region string) S3API {
	return s3.NewFromConfig(f.forRegion(region))
}

// Lambda returns a Lambda client bound to region.
func (f *SDKFactory) Lambda(region string) LambdaAPI {
	return lambda.NewFromConfig(f.forRegion(region))
}

// RDS returns an RDS client bound to region.
func (f *SDKFactory) RDS(region string) RDSAPI {
	return rds.NewFromConfig(f.forRegion(region))
}

// STS returns an STS client bound to region.
func (f *SDKFactory) STS(region string) STSAPI {
	return sts.NewFromConfig(f.forRegion(region))
}
