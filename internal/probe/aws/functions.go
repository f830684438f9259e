package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/yairfalse/sweep/pkg/resource"
)

// probeFunctions lists Lambda functions.
func (p *Provider) probeFunctions(ctx context.Context, region resource.Region) ([]resource.Record, error) {
	client := p.clients.Lambda(string(region))

	var records []resource.Record
	var marker *string

	for {
		output, err := client.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}

		for _, fn := range output.Functions {
			records = append(records, convertFunction(fn))
		}

		if aws.ToString(output.NextMarker) == "" {
			break
		}
		marker = output.NextMarker
	}

	return records, nil
}

func convertFunction(fn lambdatypes.FunctionConfiguration) resource.Record {
	r := resource.NewRecord(aws.ToString(fn.FunctionName)).
		Set("name", aws.ToString(fn.FunctionName)).
		Set("runtime", string(fn.Runtime)).
		Set("arn", aws.ToString(fn.FunctionArn)).
		Set("state", string(fn.State))

	// Image-based functions have no runtime and the API may omit sizing.
	if fn.MemorySize != nil {
		r.Set("memory", int64(aws.ToInt32(fn.MemorySize)))
	} else {
		r.Set("memory", resource.NotAvailable)
	}
	if fn.Timeout != nil {
		r.Set("timeout", int64(aws.ToInt32(fn.Timeout)))
	} else {
		r.Set("timeout", resource.NotAvailable)
	}
	return r
}
