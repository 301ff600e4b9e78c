package report

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/multierr"

	"tocscan/selection"
	"tocscan/toc"
)

// EntryParquet is the Parquet row for one file summary
type EntryParquet struct {
	Location   string `parquet:"location"`
	Hint       string `parquet:"hint"`
	ExampleEIN string `parquet:"example_ein"`
	PlanName   string `parquet:"plan_name"`
	PlanIDType string `parquet:"plan_id_type"`
	PlanID     string `parquet:"plan_id"`
	Tier       string `parquet:"tier"`
}

func entryRow(e selection.Entry) EntryParquet {
	return EntryParquet{
		Location:   e.Location,
		Hint:       string(e.Hint),
		ExampleEIN: e.ExampleEIN,
		PlanName:   e.PlanName,
		PlanIDType: e.PlanIDType,
		PlanID:     e.PlanID,
		Tier:       e.Tier.String(),
	}
}

const (
	writeBatchRows = 1024
	rowGroupRows   = 128 * writeBatchRows
)

// rowWriter buffers rows and hands them to the Parquet encoder in batches.
// A new row group starts every rowGroupRows rows.
type rowWriter[T any] struct {
	file    *os.File
	encoder *parquet.GenericWriter[T]
	batch   []T
	rows    int
}

func createRowWriter[T any](path string, opts ...parquet.WriterOption) (*rowWriter[T], error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}
	opts = append([]parquet.WriterOption{parquet.Compression(&parquet.Snappy)}, opts...)
	return &rowWriter[T]{
		file:    file,
		encoder: parquet.NewGenericWriter[T](file, opts...),
		batch:   make([]T, 0, writeBatchRows),
	}, nil
}

func (rw *rowWriter[T]) append(row T) error {
	rw.batch = append(rw.batch, row)
	rw.rows++
	if len(rw.batch) < writeBatchRows {
		return nil
	}
	if err := rw.drain(); err != nil {
		return err
	}
	if rw.rows%rowGroupRows == 0 {
		if err := rw.encoder.Flush(); err != nil {
			return fmt.Errorf("failed to flush parquet row group: %w", err)
		}
	}
	return nil
}

func (rw *rowWriter[T]) drain() error {
	if len(rw.batch) == 0 {
		return nil
	}
	if _, err := rw.encoder.Write(rw.batch); err != nil {
		return fmt.Errorf("failed to write %d parquet rows: %w", len(rw.batch), err)
	}
	rw.batch = rw.batch[:0]
	return nil
}

// close writes any buffered rows and the footer. The file is closed even
// when encoding fails.
func (rw *rowWriter[T]) close() error {
	err := rw.drain()
	if cerr := rw.encoder.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close parquet writer: %w", cerr))
	}
	return multierr.Append(err, rw.file.Close())
}

// ParquetWriter writes file summaries as Snappy-compressed Parquet rows. The
// TOC metadata is stored as key/value pairs in the file footer.
type ParquetWriter struct {
	rows *rowWriter[EntryParquet]
	path string
}

// NewParquetWriter creates path and prepares it for entries from the TOC
// described by meta.
func NewParquetWriter(path string, meta toc.Metadata) (*ParquetWriter, error) {
	var opts []parquet.WriterOption
	for _, kv := range [][2]string{
		{"reporting_entity_name", meta.ReportingEntityName},
		{"reporting_entity_type", meta.ReportingEntityType},
		{"last_updated_on", meta.LastUpdatedOn},
		{"version", meta.Version},
	} {
		if kv[1] != "" {
			opts = append(opts, parquet.KeyValueMetadata(kv[0], kv[1]))
		}
	}

	rows, err := createRowWriter[EntryParquet](path, opts...)
	if err != nil {
		return nil, err
	}
	return &ParquetWriter{rows: rows, path: path}, nil
}

// Write appends one entry.
func (pw *ParquetWriter) Write(e selection.Entry) error {
	return pw.rows.append(entryRow(e))
}

// WriteAll appends entries in order.
func (pw *ParquetWriter) WriteAll(entries []selection.Entry) error {
	for _, e := range entries {
		if err := pw.Write(e); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (pw *ParquetWriter) Close() error {
	return pw.rows.close()
}

// Count returns the number of entries written so far, buffered ones included.
func (pw *ParquetWriter) Count() int {
	return pw.rows.rows
}

func (pw *ParquetWriter) Path() string {
	return pw.path
}
