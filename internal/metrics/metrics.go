// Package metrics publishes render telemetry to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names
const (
	RenderDuration = "RenderDuration"
	ArtifactBytes  = "ArtifactBytes"
	RenderFailure  = "RenderFailure"
	UploadFailure  = "UploadFailure"
	// OutputDrain is the time from renderer exit until its output closed
	OutputDrain = "OutputDrain"
)

// Unit of a datum
type Unit string

const (
	UnitMilliseconds Unit = "Milliseconds"
	UnitBytes        Unit = "Bytes"
	UnitCount        Unit = "Count"
)

// Datum is one metric observation
type Datum struct {
	Name  string
	Value float64
	Unit  Unit
}

// Publisher sends metric data somewhere
type Publisher interface {
	Publish(ctx context.Context, data ...Datum) error
}

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher writes data points under a namespace with an
// Environment dimension
type CloudWatchPublisher struct {
	client      CloudWatchAPI
	namespace   string
	environment string
	now         func() time.Time
}

// NewCloudWatchPublisher creates a publisher using client
func NewCloudWatchPublisher(client CloudWatchAPI, namespace, environment string) *CloudWatchPublisher {
	return &CloudWatchPublisher{
		client:      client,
		namespace:   namespace,
		environment: environment,
		now:         time.Now,
	}
}

// NewCloudWatchPublisherFromConfig loads AWS configuration and builds a publisher
func NewCloudWatchPublisherFromConfig(ctx context.Context, region, namespace, environment string) (*CloudWatchPublisher, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewCloudWatchPublisher(cloudwatch.NewFromConfig(cfg), namespace, environment), nil
}

// Publish implements Publisher
func (p *CloudWatchPublisher) Publish(ctx context.Context, data ...Datum) error {
	if len(data) == 0 {
		return nil
	}

	ts := p.now()
	dims := []types.Dimension{{
		Name:  aws.String("Environment"),
		Value: aws.String(p.environment),
	}}

	datums := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		datums = append(datums, types.MetricDatum{
			MetricName: aws.String(d.Name),
			Value:      aws.Float64(d.Value),
			Unit:       types.StandardUnit(d.Unit),
			Timestamp:  aws.Time(ts),
			Dimensions: dims,
		})
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: datums,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

// NopPublisher discards everything
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(ctx context.Context, data ...Datum) error {
	return nil
}

// Recorder keeps published data in memory
type Recorder struct {
	mu   sync.Mutex
	data []Datum
}

// Publish implements Publisher
func (r *Recorder) Publish(ctx context.Context, data ...Datum) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data...)
	return nil
}

// Data returns everything recorded so far
func (r *Recorder) Data() []Datum {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Datum(nil), r.data...)
}

// Find returns the first recorded datum named name
func (r *Recorder) Find(name string) (Datum, bool) {
	for _, d := range r.Data() {
		if d.Name == name {
			return d, true
		}
	}
	return Datum{}, false
}
