package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/sweep/pkg/resource"
)

// probeNetworks lists VPCs.
func (p *Provider) probeNetworks(ctx context.Context, region resource.Region) ([]resource.Record, error) {
	client := p.clients.EC2(string(region))

	var records []resource.Record
	var nextToken *string

	for {
		output, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe vpcs: %w", err)
		}

		for _, vpc := range output.Vpcs {
			records = append(records, convertVPC(vpc))
		}

		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return records, nil
}

func convertVPC(vpc ec2types.Vpc) resource.Record {
	return resource.NewRecord(aws.ToString(vpc.VpcId)).
		Set("name", extractNameTag(vpc.Tags)).
		Set("cidr", aws.ToString(vpc.CidrBlock)).
		Set("isDefault", aws.ToBool(vpc.IsDefault)).
		Set("state", string(vpc.State))
}
