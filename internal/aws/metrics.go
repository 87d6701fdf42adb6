package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes custom metrics to a CloudWatch namespace.
type Metrics struct {
	CW        CloudWatchAPI
	Namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics recorder for namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{CW: cw, Namespace: namespace, nowFunc: time.Now}
}

// Count records value occurrences of name.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dims map[string]string) error {
	return m.put(ctx, name, value, cwtypes.StandardUnitCount, dims)
}

// Amount records a unitless value (order totals in major currency units).
func (m *Metrics) Amount(ctx context.Context, name string, value float64, dims map[string]string) error {
	return m.put(ctx, name, value, cwtypes.StandardUnitNone, dims)
}

func (m *Metrics) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) error {
	if m == nil || m.CW == nil {
		return nil
	}
	ts := m.nowFunc()
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       unit,
		Timestamp:  &ts,
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(dims[k]),
		})
	}

	_, err := m.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(m.Namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}
