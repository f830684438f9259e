package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweep/internal/probe"
	"github.com/yairfalse/sweep/pkg/resource"
)

// ══════════════════════════════════════════════════════════════════════════════
// Probe table
// ══════════════════════════════════════════════════════════════════════════════

func TestProvider_Probes(t *testing.T) {
	table := New(newMockFactory()).Probes()

	require.NoError(t, table.Validate())
	assert.Equal(t, resource.AllKinds(), table.Kinds())

	for _, p := range table {
		if p.Kind == resource.ObjectStorage {
			assert.Equal(t, probe.Global, p.Scope)
		} else {
			assert.Equal(t, probe.Regional, p.Scope, p.Kind.String())
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Compute
// ══════════════════════════════════════════════════════════════════════════════

func TestProbeCompute(t *testing.T) {
	launched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	factory := newMockFactory()
	factory.ec2.DescribeInstancesFunc = func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
		return &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{{
					InstanceId:       aws.String("i-0abc"),
					InstanceType:     ec2types.InstanceTypeT3Micro,
					State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
					Placement:        &ec2types.Placement{AvailabilityZone: aws.String("us-east-1a")},
					PrivateIpAddress: aws.String("10.0.0.5"),
					LaunchTime:       &launched,
					Tags:             []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("web")}},
				}},
			}},
		}, nil
	}

	records, err := New(factory).probeCompute(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "i-0abc", r.ID)
	assert.Equal(t, "web", r.Attrs["name"])
	assert.Equal(t, "t3.micro", r.Attrs["type"])
	assert.Equal(t, "running", r.Attrs["state"])
	assert.Equal(t, "us-east-1a", r.Attrs["az"])
	assert.Equal(t, "10.0.0.5", r.Attrs["private_ip"])
	assert.Equal(t, resource.NotAvailable, r.Attrs["public_ip"])
	assert.Equal(t, "2024-03-01T12:00:00Z", r.Attrs["launched"])
	assert.Equal(t, []string{"us-east-1"}, factory.regions)
}

func TestProbeCompute_Pagination(t *testing.T) {
	factory := newMockFactory()
	calls := 0
	factory.ec2.DescribeInstancesFunc = func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
		calls++
		if params.NextToken == nil {
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{InstanceId: aws.String("i-1")}}}},
				NextToken:    aws.String("page2"),
			}, nil
		}
		assert.Equal(t, "page2", aws.ToString(params.NextToken))
		return &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{InstanceId: aws.String("i-2")}}}},
		}, nil
	}

	records, err := New(factory).probeCompute(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, records, 2)
	assert.Equal(t, "i-1", records[0].ID)
	assert.Equal(t, "i-2", records[1].ID)
}

func TestProbeCompute_ErrorDiscardsPages(t *testing.T) {
	factory := newMockFactory()
	factory.ec2.DescribeInstancesFunc = func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
		if params.NextToken == nil {
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{InstanceId: aws.String("i-1")}}}},
				NextToken:    aws.String("page2"),
			}, nil
		}
		return nil, apiError("UnauthorizedOperation")
	}

	records, err := New(factory).probeCompute(context.Background(), "us-east-1")
	require.Error(t, err)
	assert.Nil(t, records)

	f := Classify(err)
	assert.Equal(t, resource.ExpectedLocal, f.Kind)
	assert.Equal(t, resource.CauseAuthorization, f.Cause)
}

func TestProbeCompute_Empty(t *testing.T) {
	records, err := New(newMockFactory()).probeCompute(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

// ══════════════════════════════════════════════════════════════════════════════
// Network
// ══════════════════════════════════════════════════════════════════════════════

func TestProbeNetworks(t *testing.T) {
	factory := newMockFactory()
	factory.ec2.DescribeVpcsFunc = func(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
		return &ec2.DescribeVpcsOutput{
			Vpcs: []ec2types.Vpc{
				{VpcId: aws.String("vpc-default"), CidrBlock: aws.String("172.31.0.0/16"), IsDefault: aws.Bool(true), State: ec2types.VpcStateAvailable},
				{VpcId: aws.String("vpc-app"), CidrBlock: aws.String("10.0.0.0/16"), State: ec2types.VpcStateAvailable,
					Tags: []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("app")}}},
			},
		}, nil
	}

	records, err := New(factory).probeNetworks(context.Background(), "eu-west-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "vpc-default", records[0].ID)
	assert.Equal(t, true, records[0].Attrs["isDefault"])
	assert.Equal(t, resource.NotAvailable, records[0].Attrs["name"])
	assert.Equal(t, "app", records[1].Attrs["name"])
	assert.Equal(t, false, records[1].Attrs["isDefault"])
	assert.Equal(t, "10.0.0.0/16", records[1].Attrs["cidr"])
	assert.Equal(t, "available", records[1].Attrs["state"])
}

func TestNetworks_Pagination(t *testing.T) {
	factory := newMockFactory()
	factory.ec2.DescribeVpcsFunc = func(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
		if params.NextToken == nil {
			return &ec2.DescribeVpcsOutput{
				Vpcs:      []ec2types.Vpc{{VpcId: aws.String("vpc-1")}},
				NextToken: aws.String("page2"),
			}, nil
		}
		assert.Equal(t, "page2", aws.ToString(params.NextToken))
		return &ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-2")}}}, nil
	}

	records, err := New(factory).probeNetworks(context.Background(), "eu-west-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "vpc-1", records[0].ID)
	assert.Equal(t, "vpc-2", records[1].ID)
}

// ══════════════════════════════════════════════════════════════════════════════
// Functions
// ══════════════════════════════════════════════════════════════════════════════

func TestProbeFunctions(t *testing.T) {
	factory := newMockFactory()
	factory.lambda.ListFunctionsFunc = func(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
		if params.Marker == nil {
			return &lambda.ListFunctionsOutput{
				Functions: []lambdatypes.FunctionConfiguration{{
					FunctionName: aws.String("resize"),
					FunctionArn:  aws.String("arn:aws:lambda:us-east-1:123456789012:function:resize"),
					Runtime:      lambdatypes.RuntimePython312,
					MemorySize:   aws.Int32(128),
					Timeout:      aws.Int32(30),
				}},
				NextMarker: aws.String("m2"),
			}, nil
		}
		return &lambda.ListFunctionsOutput{
			Functions: []lambdatypes.FunctionConfiguration{{
				FunctionName: aws.String("image-fn"),
			}},
		}, nil
	}

	records, err := New(factory).probeFunctions(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "resize", records[0].ID)
	assert.Equal(t, "python3.12", records[0].Attrs["runtime"])
	assert.Equal(t, int64(128), records[0].Attrs["memory"])
	assert.Equal(t, int64(30), records[0].Attrs["timeout"])

	assert.Equal(t, "image-fn", records[1].ID)
	assert.Equal(t, resource.NotAvailable, records[1].Attrs["runtime"])
	assert.Equal(t, resource.NotAvailable, records[1].Attrs["memory"])
	assert.Equal(t, resource.NotAvailable, records[1].Attrs["timeout"])
}

// ══════════════════════════════════════════════════════════════════════════════
// Databases
// ══════════════════════════════════════════════════════════════════════════════

func TestProbeDatabases(t *testing.T) {
	factory := newMockFactory()
	factory.rds.DescribeDBInstancesFunc = func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
		return &rds.DescribeDBInstancesOutput{
			DBInstances: []rdstypes.DBInstance{{
				DBInstanceIdentifier: aws.String("orders"),
				Engine:               aws.String("postgres"),
				EngineVersion:        aws.String("16.2"),
				DBInstanceClass:      aws.String("db.t4g.micro"),
				DBInstanceStatus:     aws.String("available"),
				Endpoint:             &rdstypes.Endpoint{Address: aws.String("orders.abc.us-east-1.rds.amazonaws.com")},
				MultiAZ:              aws.Bool(true),
			}},
		}, nil
	}

	records, err := New(factory).probeDatabases(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "orders", r.ID)
	assert.Equal(t, "postgres", r.Attrs["engine"])
	assert.Equal(t, "db.t4g.micro", r.Attrs["instanceClass"])
	assert.Equal(t, "orders.abc.us-east-1.rds.amazonaws.com", r.Attrs["endpoint"])
	assert.Equal(t, true, r.Attrs["multi_az"])
}

func TestDatabases_Pagination(t *testing.T) {
	factory := newMockFactory()
	factory.rds.DescribeDBInstancesFunc = func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
		if params.Marker == nil {
			return &rds.DescribeDBInstancesOutput{
				DBInstances: []rdstypes.DBInstance{{DBInstanceIdentifier: aws.String("orders")}},
				Marker:      aws.String("m2"),
			}, nil
		}
		assert.Equal(t, "m2", aws.ToString(params.Marker))
		return &rds.DescribeDBInstancesOutput{
			DBInstances: []rdstypes.DBInstance{{DBInstanceIdentifier: aws.String("billing")}},
		}, nil
	}

	records, err := New(factory).probeDatabases(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "orders", records[0].ID)
	assert.Equal(t, "billing", records[1].ID)
}

func TestProbeDatabases_CreatingInstanceHasNoEndpoint(t *testing.T) {
	factory := newMockFactory()
	factory.rds.DescribeDBInstancesFunc = func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
		return &rds.DescribeDBInstancesOutput{
			DBInstances: []rdstypes.DBInstance{{
				DBInstanceIdentifier: aws.String("new-db"),
				DBInstanceStatus:     aws.String("creating"),
			}},
		}, nil
	}

	records, err := New(factory).probeDatabases(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resource.NotAvailable, records[0].Attrs["endpoint"])
}
