// Package factory instantiates pluggable modules from configuration. A module
// is named by a type string and carries a raw settings map that its factory
// decodes into a typed struct.
//
// Metrics sinks are built this way:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("prometheus", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ Textfile string `json:"textfile"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewPromSink(c.Textfile)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "prometheus", Conf: map[string]any{"textfile": "hpc.prom"}})
package factory
