package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// mockAPIError implements smithy.APIError.
type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.code, e.message)
}

func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func apiError(code string) error {
	return &mockAPIError{code: code, message: code + " for test"}
}

// mockEC2Client implements EC2API for testing.
type mockEC2Client struct {
	DescribeInstancesFunc func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVpcsFunc      func(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeRegionsFunc   func(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if m.DescribeVpcsFunc != nil {
		return m.DescribeVpcsFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeVpcsOutput{}, nil
}

func (m *mockEC2Client) DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if m.DescribeRegionsFunc != nil {
		return m.DescribeRegionsFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeRegionsOutput{}, nil
}

// mockS3Client implements S3API for testing.
type mockS3Client struct {
	ListBucketsFunc          func(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocationFunc    func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetPublicAccessBlockFunc func(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
}

func (m *mockS3Client) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if m.ListBucketsFunc != nil {
		return m.ListBucketsFunc(ctx, params, optFns...)
	}
	return &s3.ListBucketsOutput{}, nil
}

func (m *mockS3Client) GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	if m.GetBucketLocationFunc != nil {
		return m.GetBucketLocationFunc(ctx, params, optFns...)
	}
	return &s3.GetBucketLocationOutput{}, nil
}

func (m *mockS3Client) GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	if m.GetPublicAccessBlockFunc != nil {
		return m.GetPublicAccessBlockFunc(ctx, params, optFns...)
	}
	return &s3.GetPublicAccessBlockOutput{}, nil
}

// mockLambdaClient implements LambdaAPI for testing.
type mockLambdaClient struct {
	ListFunctionsFunc func(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

func (m *mockLambdaClient) ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	if m.ListFunctionsFunc != nil {
		return m.ListFunctionsFunc(ctx, params, optFns...)
	}
	return &lambda.ListFunctionsOutput{}, nil
}

// mockRDSClient implements RDSAPI for testing.
type mockRDSClient struct {
	DescribeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if m.DescribeDBInstancesFunc != nil {
		return m.DescribeDBInstancesFunc(ctx, params, optFns...)
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

// mockSTSClient implements STSAPI for testing.
type mockSTSClient struct {
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return &sts.GetCallerIdentityOutput{}, nil
}

// mockFactory hands out the same mock for every region, unless a region has
// its own S3 mock, and records which regions were asked for.
type mockFactory struct {
	ec2    *mockEC2Client
	s3     *mockS3Client
	lambda *mockLambdaClient
	rds    *mockRDSClient
	sts    *mockSTSClient

	s3ByRegion map[string]*mockS3Client

	mu      sync.Mutex
	regions []string
}

func newMockFactory() *mockFactory {
	return &mockFactory{
		ec2:    &mockEC2Client{},
		s3:     &mockS3Client{},
		lambda: &mockLambdaClient{},
		rds:    &mockRDSClient{},
		sts:    &mockSTSClient{},
	}
}

func (f *mockFactory) record(region string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = append(f.regions, region)
}

func (f *mockFactory) EC2(region string) EC2API {
	f.record(region)
	return f.ec2
}

func (f *mockFactory) S3(region string) S3API {
	f.record(region)
	if c, ok := f.s3ByRegion[region]; ok {
		return c
	}
	return f.s3
}

func (f *mockFactory) Lambda(region string) LambdaAPI {
	f.record(region)
	return f.lambda
}

func (f *mockFactory) RDS(region string) RDSAPI {
	f.record(region)
	return f.rds
}

func (f *mockFactory) STS(region string) STSAPI {
	f.record(region)
	return f.sts
}
