package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/sweep/pkg/resource"
)

// probeCompute lists EC2 instances.
func (p *Provider) probeCompute(ctx context.Context, region resource.Region) ([]resource.Record, error) {
	client := p.clients.EC2(string(region))

	var records []resource.Record
	var nextToken *string

	for {
		output, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				records = append(records, convertInstance(instance))
			}
		}

		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return records, nil
}

func convertInstance(instance ec2types.Instance) resource.Record {
	state := ""
	if instance.State != nil {
		state = string(instance.State.Name)
	}
	az := ""
	if instance.Placement != nil {
		az = aws.ToString(instance.Placement.AvailabilityZone)
	}

	return resource.NewRecord(aws.ToString(instance.InstanceId)).
		Set("name", extractNameTag(instance.Tags)).
		Set("type", string(instance.InstanceType)).
		Set("state", state).
		Set("az", az).
		Set("private_ip", aws.ToString(instance.PrivateIpAddress)).
		Set("public_ip", aws.ToString(instance.PublicIpAddress)).
		Set("launched", formatTime(instance.LaunchTime))
}
