package metrics

import (
	"errors"
	"os"

	"github.com/kilianp07/hpcdemand/core/factory"
	coremetrics "github.com/kilianp07/hpcdemand/core/metrics"
)

// InfluxConfig configures the influx sink. An empty token falls back to
// the INFLUX_TOKEN environment variable.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Validate checks that the endpoint is addressable.
func (c InfluxConfig) Validate() error {
	if c.URL == "" || c.Bucket == "" || c.Org == "" {
		return errors.New("influx sink needs url, org and bucket")
	}
	return nil
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.Token == "" {
		c.Token = os.Getenv("INFLUX_TOKEN")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func newPromFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c struct {
		// Textfile receives the registry in node-exporter format on Flush.
		Textfile string `json:"textfile"`
	}
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return NewPromSink(c.Textfile)
}

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink("prometheus", newPromFromConf)
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxFromConf)
}
