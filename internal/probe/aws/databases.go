package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/sweep/pkg/resource"
)

// probeDatabases lists RDS DB instances.
func (p *Provider) probeDatabases(ctx context.Context, region resource.Region) ([]resource.Record, error) {
	client := p.clients.RDS(string(region))

	var records []resource.Record
	var marker *string

	for {
		output, err := client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			records = append(records, convertDBInstance(instance))
		}

		if aws.ToString(output.Marker) == "" {
			break
		}
		marker = output.Marker
	}

	return records, nil
}

func convertDBInstance(instance rdstypes.DBInstance) resource.Record {
	endpoint := ""
	if instance.Endpoint != nil {
		endpoint = aws.ToString(instance.Endpoint.Address)
	}

	return resource.NewRecord(aws.ToString(instance.DBInstanceIdentifier)).
		Set("engine", aws.ToString(instance.Engine)).
		Set("engine_version", aws.ToString(instance.EngineVersion)).
		Set("instanceClass", aws.ToString(instance.DBInstanceClass)).
		Set("status", aws.ToString(instance.DBInstanceStatus)).
		Set("endpoint", endpoint).
		Set("multi_az", aws.ToBool(instance.MultiAZ))
}
