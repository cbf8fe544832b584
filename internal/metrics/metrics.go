package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalDecodedTokens atomic.Int64

var (
	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_forward_step_duration_seconds",
		Help:    "Duration of one segment-level forward step",
		Buckets: prometheus.DefBuckets,
	})

	StepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_forward_steps_total",
		Help: "Total number of forward steps executed",
	})

	TrainLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scribe_train_loss",
		Help: "Most recent per-term training loss",
	}, []string{"term"})

	DecodedTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_decoded_tokens_total",
		Help: "Total number of tokens produced by greedy decoding",
	})

	DecodeDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "scribe_decode_segment_duration_seconds",
		Help: "Duration of decoding one segment",
	})

	DecodeEOSPosition = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_decode_eos_position",
		Help:    "Text position at which the first EOS was produced",
		Buckets: []float64{1, 3, 5, 8, 12, 16, 20, 24, 32},
	})

	DatastoreAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_datastore_appends_total",
		Help: "Total number of key/value records appended to the datastore",
	})

	DatastoreOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_datastore_offset",
		Help: "Current monotonic write offset of the datastore",
	})

	DatastoreExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_datastore_exports_total",
		Help: "Total datastore record batches exported over Flight",
	}, []string{"status"})

	PoolMemoryBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_pool_memory_bytes",
		Help: "Current bytes held by the device scratch pool",
	})

	VocabEncodeUnknownTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_vocab_unknown_tokens_total",
		Help: "Count of words mapped to UNK during encoding",
	})

	SegmentSequenceLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_segment_sequence_length",
		Help:    "Number of segments per collated video",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	})

	CaptionRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scribe_caption_request_duration_seconds",
		Help:    "HTTP caption request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)

func RecordStep(duration time.Duration) {
	StepsTotal.Inc()
	StepDuration.Observe(duration.Seconds())
}

// RecordLoss publishes the weighted loss terms of one Forward call.
func RecordLoss(total, caption, future, sensor float64) {
	TrainLoss.WithLabelValues("total").Set(total)
	TrainLoss.WithLabelValues("caption").Set(caption)
	TrainLoss.WithLabelValues("future").Set(future)
	TrainLoss.WithLabelValues("sensor").Set(sensor)
}

func RecordDecode(tokens int, duration time.Duration) {
	DecodedTokensTotal.Add(float64(tokens))
	totalDecodedTokens.Add(int64(tokens))
	DecodeDuration.Observe(duration.Seconds())
}

func RecordEOSPosition(pos int) {
	DecodeEOSPosition.Observe(float64(pos))
}

func RecordDatastoreAppend(records int, offset int64) {
	DatastoreAppendsTotal.Add(float64(records))
	DatastoreOffset.Set(float64(offset))
}

func RecordDatastoreExport(ok bool) {
	if ok {
		DatastoreExportsTotal.WithLabelValues("ok").Inc()
	} else {
		DatastoreExportsTotal.WithLabelValues("error").Inc()
	}
}

func RecordPoolMemory(bytes int64) {
	PoolMemoryBytes.Set(float64(bytes))
}

func RecordVocabUnknown(count int) {
	if count > 0 {
		VocabEncodeUnknownTotal.Add(float64(count))
	}
}

func RecordSegmentSequence(steps int) {
	SegmentSequenceLength.Observe(float64(steps))
}

func RecordCaptionRequest(status string, duration time.Duration) {
	CaptionRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// TotalDecodedTokens returns the process-lifetime decoded token count.
func TotalDecodedTokens() int64 {
	return totalDecodedTokens.Load()
}
