// Package inference simulates a variable-latency anomaly model.
//
// There is no model behind the simulator. Each prediction draws a latency
// uniformly from the configured window, suspends the calling goroutine for
// that long, then draws an anomaly score uniformly from [0, 1). The two
// values are written to the metric gauges and published as a
// prediction.completed event.
package inference
