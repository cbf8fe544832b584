package dstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

type failSink struct{}

func (failSink) Send(ctx context.Context, rec arrow.Record) error {
	return errors.New("service unavailable")
}

func (failSink) Close() error { return nil }

func exportStore(t *testing.T, records int) *Store {
	t.Helper()
	s, err := Create(t.TempDir(), 10, 3, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	for i := 0; i < records; i++ {
		if err := s.Append(fillRow(3, float32(i)+1), fillRow(2, float32(i)+0.5)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	return s
}

func TestExportRoundTrip(t *testing.T) {
	s := exportStore(t, 5)
	sink := NewMemorySink()
	if err := s.Export(context.Background(), sink, 2); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if got := sink.Batches(); got != 3 {
		t.Fatalf("Batches = %d, want 3", got)
	}
	if got := sink.Records(); got != 5 {
		t.Fatalf("Records = %d, want 5", got)
	}

	id, key, val := sink.Record(3)
	if id != 3 {
		t.Fatalf("record 3 id = %d", id)
	}
	wantKey := fillRow(3, 4)
	for i := range key {
		if key[i] != wantKey[i] {
			t.Fatalf("key[%d] = %v, want %v", i, key[i], wantKey[i])
		}
	}
	wantVal := fillRow(2, 3.5)
	for i := range val {
		if val[i] != wantVal[i] {
			t.Fatalf("val[%d] = %v, want %v", i, val[i], wantVal[i])
		}
	}

	schema := sink.Schema()
	if schema == nil {
		t.Fatal("no schema received")
	}
	if schema.Field(0).Name != "id" || schema.Field(1).Name != "key" || schema.Field(2).Name != "value" {
		t.Fatalf("unexpected schema fields: %v", schema)
	}
	keyType, ok := schema.Field(1).Type.(*arrow.FixedSizeListType)
	if !ok || keyType.Len() != 3 {
		t.Fatalf("key column type = %v", schema.Field(1).Type)
	}
	valType, ok := schema.Field(2).Type.(*arrow.FixedSizeListType)
	if !ok || valType.Len() != 2 {
		t.Fatalf("value column type = %v", schema.Field(2).Type)
	}
}

func TestExportEmpty(t *testing.T) {
	s := exportStore(t, 0)
	sink := NewMemorySink()
	if err := s.Export(context.Background(), sink, 4); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if sink.Batches() != 0 || sink.Records() != 0 {
		t.Fatalf("empty store produced %d batches, %d records", sink.Batches(), sink.Records())
	}
}

func TestExportBatchSize(t *testing.T) {
	s := exportStore(t, 1)
	if err := s.Export(context.Background(), NewMemorySink(), 0); err == nil {
		t.Fatal("zero batch size accepted")
	}
}

func TestExportSinkError(t *testing.T) {
	s := exportStore(t, 3)
	err := s.Export(context.Background(), failSink{}, 2)
	if err == nil || !strings.Contains(err.Error(), "record 0") {
		t.Fatalf("sink error not surfaced: %v", err)
	}
}

func TestExportCanceled(t *testing.T) {
	s := exportStore(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Export(ctx, NewMemorySink(), 2); err == nil {
		t.Fatal("canceled export succeeded")
	}
}

func TestMemorySinkClosed(t *testing.T) {
	s := exportStore(t, 1)
	sink := NewMemorySink()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Export(context.Background(), sink, 1); err == nil {
		t.Fatal("send after close succeeded")
	}
}
