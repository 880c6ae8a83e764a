// Package metrics defines the pipeline's standard metric emissions.
package metrics

import (
	"time"

	obserrors "github.com/owt-mfg/erpsync/internal/observability/errors"
	"github.com/owt-mfg/erpsync/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DeliveryMetric captures one worker delivery outcome for metric emission.
type DeliveryMetric struct {
	Result   string
	Duration time.Duration
	Err      error
}

// EmitDelivery emits standardised delivery lifecycle metrics.
func EmitDelivery(sink statsd.Sink, in DeliveryMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("delivery.attempt", 1, tags)
	if in.Duration > 0 {
		sink.Timing("delivery.duration", in.Duration, CloneTags(tags))
	}
}

// FetchCycleMetric captures one fetch cycle outcome for metric emission.
type FetchCycleMetric struct {
	Result   string
	Fetched  int
	Stored   int
	Queued   int
	Invalid  int
	Duration time.Duration
	Err      error
}

// EmitFetchCycle emits standardised fetch cycle metrics.
func EmitFetchCycle(sink statsd.Sink, in FetchCycleMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("fetch.cycle", 1, tags)
	if in.Result == ResultSuccess {
		sink.Count("fetch.records", int64(in.Fetched), nil)
		sink.Count("fetch.stored", int64(in.Stored), nil)
		sink.Count("fetch.queued", int64(in.Queued), nil)
		sink.Count("fetch.invalid", int64(in.Invalid), nil)
	}
	if in.Duration > 0 {
		sink.Timing("fetch.duration", in.Duration, CloneTags(tags))
	}
}

// EmitReap emits the count of jobs rescued by one reaper pass.
func EmitReap(sink statsd.Sink, requeued int64) {
	if sink == nil {
		return
	}
	sink.Count("reaper.requeued", requeued, nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty maps.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
