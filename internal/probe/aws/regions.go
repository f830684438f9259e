package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/sweep/pkg/resource"
)

// RegionLister enumerates the regions enabled for the account by querying
// the bootstrap region.
type RegionLister struct {
	clients   ClientFactory
	bootstrap string
}

// NewRegionLister creates a lister anchored at bootstrap (e.g. "us-east-1").
func NewRegionLister(clients ClientFactory, bootstrap string) *RegionLister {
	return &RegionLister{clients: clients, bootstrap: bootstrap}
}

// ListRegions returns regions in provider order. Any failure is fatal:
// the returned error is a *resource.Failure of kind Fatal.
func (l *RegionLister) ListRegions(ctx context.Context) ([]resource.Region, error) {
	client := l.clients.EC2(l.bootstrap)

	output, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		f := Classify(err)
		f.Kind = resource.Fatal
		f.Message = fmt.Sprintf("list regions: %s", f.Message)
		return nil, f
	}

	regions := make([]resource.Region, 0, len(output.Regions))
	for _, r := range output.Regions {
		name := aws.ToString(r.RegionName)
		if name == "" {
			return nil, malformed("region entry without a name")
		}
		regions = append(regions, resource.Region(name))
	}
	if len(regions) == 0 {
		return nil, malformed("provider returned no regions")
	}

	return regions, nil
}

func malformed(msg string) *resource.Failure {
	return &resource.Failure{
		Kind:    resource.Fatal,
		Cause:   resource.CauseMalformed,
		Message: "list regions: " + msg,
		Err:     errors.New(msg),
	}
}

// AccountLabel resolves the caller's account ID for display. It is never
// used for authorization or filtering.
func AccountLabel(ctx context.Context, clients ClientFactory, region string) (string, error) {
	output, err := clients.STS(region).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return resource.NotAvailable, fmt.Errorf("get caller identity: %w", err)
	}
	if account := aws.ToString(output.Account); account != "" {
		return account, nil
	}
	return resource.NotAvailable, nil
}
