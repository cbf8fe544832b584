package dstore

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

// Flight descriptor path announced on DoPut.
const flightPath = "dstore"

// Sink receives record batches during export. The production
// implementation speaks Arrow Flight DoPut; tests use MemorySink.
type Sink interface {
	Send(ctx context.Context, rec arrow.Record) error
	Close() error
}

// ExportSchema describes one exported batch: a running record id plus
// the key and value vectors as fixed-width float32 lists.
func ExportSchema(keyDim, valDim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "key", Type: arrow.FixedSizeListOf(int32(keyDim), arrow.PrimitiveTypes.Float32)},
		{Name: "value", Type: arrow.FixedSizeListOf(int32(valDim), arrow.PrimitiveTypes.Float32)},
	}, nil)
}

// Export streams the records written so far to sink in batches of
// batchSize rows. A batch either lands whole or aborts the export.
func (s *Store) Export(ctx context.Context, sink Sink, batchSize int) error {
	if batchSize <= 0 {
		return fmt.Errorf("export batch size must be positive, got %d", batchSize)
	}

	bld := array.NewRecordBuilder(memory.DefaultAllocator, ExportSchema(s.keyDim, s.valDim))
	defer bld.Release()

	ids := bld.Field(0).(*array.Int64Builder)
	keys := bld.Field(1).(*array.FixedSizeListBuilder)
	keyItems := keys.ValueBuilder().(*array.Float32Builder)
	vals := bld.Field(2).(*array.FixedSizeListBuilder)
	valItems := vals.ValueBuilder().(*array.Float32Builder)

	batches := 0
	for start := int64(0); start < s.offset; start += int64(batchSize) {
		end := start + int64(batchSize)
		if end > s.offset {
			end = s.offset
		}
		for i := start; i < end; i++ {
			ids.Append(i)
			keys.Append(true)
			keyItems.AppendValues(s.Key(i), nil)
			vals.Append(true)
			valItems.AppendValues(s.Val(i), nil)
		}

		rec := bld.NewRecord()
		err := sink.Send(ctx, rec)
		rec.Release()
		metrics.RecordDatastoreExport(err == nil)
		if err != nil {
			return fmt.Errorf("send batch starting at record %d: %w", start, err)
		}
		batches++
	}

	s.log.Info("datastore exported",
		"records", s.offset,
		"batches", batches)
	return nil
}

// FlightSink streams record batches to an Arrow Flight service over one
// DoPut call. The connection uses insecure transport credentials, same
// as the retrieval services it feeds run inside the cluster.
type FlightSink struct {
	client flight.Client
	stream flight.FlightService_DoPutClient
	writer *flight.Writer
}

// NewFlightSink dials addr and opens the DoPut stream carrying schema.
func NewFlightSink(ctx context.Context, addr string, schema *arrow.Schema) (*FlightSink, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect flight service %s: %w", addr, err)
	}

	stream, err := client.DoPut(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open DoPut stream: %w", err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(schema))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{flightPath},
	})

	return &FlightSink{client: client, stream: stream, writer: writer}, nil
}

func (f *FlightSink) Send(ctx context.Context, rec arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.writer.Write(rec)
}

// Close finishes the IPC stream, drains the server's acknowledgements
// and tears down the connection.
func (f *FlightSink) Close() error {
	err := f.writer.Close()
	if cerr := f.stream.CloseSend(); err == nil {
		err = cerr
	}
	for {
		if _, rerr := f.stream.Recv(); rerr != nil {
			break
		}
	}
	if cerr := f.client.Close(); err == nil {
		err = cerr
	}
	return err
}
