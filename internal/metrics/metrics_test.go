package metrics

import (
	"testing"
	"time"
)

func TestMetricsExistence(t *testing.T) {
	// Verify our exported metrics functions exist and don't panic
	RecordStep(10 * time.Millisecond)
	RecordPoolMemory(1024 * 1024)
	RecordDecode(10, 100*time.Millisecond)
	// Functions exist and work - no assertion needed
}

func TestRecordStepMultiple(t *testing.T) {
	RecordStep(5 * time.Millisecond)
	RecordStep(10 * time.Millisecond)
	RecordStep(30 * time.Millisecond)

	// Counter should accumulate - just verify no panic
}

func TestRecordLossTerms(t *testing.T) {
	RecordLoss(3.2, 2.9, 0.2, 0.1)
	RecordLoss(2.8, 2.5, 0.2, 0.1) // gauges should update
	// Just verify no panic
}

func TestRecordEOSPositionHistogram(t *testing.T) {
	RecordEOSPosition(1)
	RecordEOSPosition(8)
	RecordEOSPosition(19)

	// Histogram should have observations - just verify no panic
}

func TestRecordDatastoreAppend(t *testing.T) {
	RecordDatastoreAppend(4, 4)
	RecordDatastoreAppend(4, 8) // offset gauge should follow the cursor
}

func TestRecordDatastoreExport(t *testing.T) {
	RecordDatastoreExport(true)
	RecordDatastoreExport(false)
}

func TestRecordPoolMemoryChanges(t *testing.T) {
	RecordPoolMemory(1024 * 1024 * 1024) // 1GB
	RecordPoolMemory(512 * 1024 * 1024)  // 512MB - gauge should update
	// Just verify no panic
}

func TestRecordVocabUnknown(t *testing.T) {
	RecordVocabUnknown(0) // no-op
	RecordVocabUnknown(3)
}

func TestRecordSegmentSequence(t *testing.T) {
	RecordSegmentSequence(1)
	RecordSegmentSequence(3)
	RecordSegmentSequence(12)
}

func TestRecordCaptionRequest(t *testing.T) {
	RecordCaptionRequest("ok", 20*time.Millisecond)
	RecordCaptionRequest("error", 2*time.Millisecond)
}

func TestTotalDecodedTokensAtomic(t *testing.T) {
	// Test atomic operations
	initial := TotalDecodedTokens()
	RecordDecode(1, time.Millisecond)
	after := TotalDecodedTokens()
	if after != initial+1 {
		t.Errorf("Expected decoded total to increment by 1, got %d -> %d", initial, after)
	}
}
