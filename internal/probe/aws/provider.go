// Package aws implements the AWS probes and region lister for Sweep.
package aws

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/sweep/internal/probe"
	"github.com/yairfalse/sweep/pkg/resource"
)

const defaultEnrichConcurrency = 8

// Provider builds the AWS probe table on top of a ClientFactory.
type Provider struct {
	clients           ClientFactory
	enrichConcurrency int
}

// Option configures a Provider.
type Option func(*Provider)

// WithEnrichConcurrency bounds the per-bucket lookups the object storage probe runs at once.
func WithEnrichConcurrency(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.enrichConcurrency = n
		}
	}
}

// New creates a Provider.
func New(clients ClientFactory, opts ...Option) *Provider {
	p := &Provider{
		clients:           clients,
		enrichConcurrency: defaultEnrichConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probes returns the dispatch table. Object storage is account-global: the
// listing is invoked against one region, so it is scoped Global.
func (p *Provider) Probes() probe.Table {
	return probe.Table{
		{Kind: resource.Compute, Scope: probe.Regional, Run: p.probeCompute},
		{Kind: resource.ObjectStorage, Scope: probe.Global, Run: p.probeObjectStorage},
		{Kind: resource.Function, Scope: probe.Regional, Run: p.probeFunctions},
		{Kind: resource.Database, Scope: probe.Regional, Run: p.probeDatabases},
		{Kind: resource.Network, Scope: probe.Regional, Run: p.probeNetworks},
	}
}

func extractNameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
