// Package export appends consolidated rows to the per-year and all-years
// CSV extracts.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/consolidate"
	"parcelscraper/internal/dates"
	"parcelscraper/internal/scrapers/auditor"
)

const (
	report_export_widened_header = "export.widened-header"
	report_export_rows           = "rows"
)

// AllHomesFile is the cumulative extract of every year.
const AllHomesFile = "All Homes.csv"

// YearFile is the name of the extract of a single year.
func YearFile(year int) string {
	return fmt.Sprintf("%d Homes.csv", year)
}

// Writer appends tables to CSV files. A file is only ever truncated when
// Overwrite is set, and then only on its first write of the run.
type Writer struct {
	dir       string
	overwrite bool
	tel       telemetry.API

	mutex     sync.Mutex
	truncated map[string]bool
}

func NewWriter(dir string, overwrite bool, tel telemetry.API) *Writer {
	assert.NotEmptyStr(dir)
	assert.NotNil(tel)
	return &Writer{
		dir:       dir,
		overwrite: overwrite,
		tel:       telemetry.NewScopedAPI("export", tel),
		truncated: map[string]bool{},
	}
}

// readHeader returns the header of an existing extract, or nil if the file is
// missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return header, nil
}

// align reorders the rows of a table onto an existing header. Columns the
// header lacks are returned as missing, header columns the table lacks are
// left blank.
func align(header []string, table consolidate.Table) (rows [][]string, missing []string) {
	index := make(map[string]int, len(table.Columns))
	for i, c := range table.Columns {
		index[c] = i
	}
	inHeader := make(map[string]bool, len(header))
	for _, h := range header {
		inHeader[h] = true
	}
	for _, c := range table.Columns {
		if !inHeader[c] {
			missing = append(missing, c)
		}
	}

	rows = make([][]string, len(table.Rows))
	for r, row := range table.Rows {
		out := make([]string, len(header))
		for i, h := range header {
			j, ok := index[h]
			if ok && j < len(row) {
				out[i] = row[j]
			}
		}
		rows[r] = out
	}
	return rows, missing
}

func writeTable(out io.Writer, columns []string, rows [][]string) error {
	bufw := bufio.NewWriter(out)
	cw := csv.NewWriter(bufw)
	if columns != nil {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return bufw.Flush()
}

// widen rewrites an extract under the union of its header and the columns
// of table it lacks, then appends the rows of table. The file is replaced by
// renaming a temporary file so a failed rewrite leaves the old extract.
func (w *Writer) widen(path, name string, header, missing []string, table consolidate.Table) error {
	existing, err := Read(path)
	if err != nil {
		return err
	}
	union := make([]string, 0, len(header)+len(missing))
	union = append(union, header...)
	union = append(union, missing...)

	rows, _ := align(union, existing)
	added, _ := align(union, table)
	rows = append(rows, added...)

	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeTable(tmp, union, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	w.tel.ReportWarning(report_export_widened_header, name, missing)
	return nil
}

// Append writes the rows of a table to the file name in the writer's
// directory, writing the header first when the file is new or empty. Rows
// are aligned to an existing header, which is widened when the table brings
// columns it lacks.
func (w *Writer) Append(name string, table consolidate.Table) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, name)

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	var header []string
	if w.overwrite && !w.truncated[path] {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	} else {
		var err error
		header, err = readHeader(path)
		if err != nil {
			return err
		}
	}

	rows := table.Rows
	if header != nil {
		var missing []string
		rows, missing = align(header, table)
		if len(missing) > 0 {
			w.truncated[path] = true
			return w.widen(path, name, header, missing, table)
		}
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w.truncated[path] = true

	var columns []string
	if header == nil {
		columns = table.Columns
	}
	if err := writeTable(f, columns, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Sync()
}

// Sink consolidates the scrape of an accepted range and appends it to both
// the year's extract and the cumulative one.
type Sink struct {
	consolidator consolidate.Consolidator
	writer       *Writer
	tel          telemetry.API
}

func NewSink(consolidator consolidate.Consolidator, writer *Writer, tel telemetry.API) Sink {
	assert.NotNil(writer)
	assert.NotNil(tel)
	return Sink{
		consolidator: consolidator,
		writer:       writer,
		tel:          telemetry.NewScopedAPI("export", tel),
	}
}

func (s Sink) Persist(ctx context.Context, year int, r dates.Range, result auditor.Result) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	table := s.consolidator.Consolidate(result)
	if len(table.Rows) == 0 {
		return 0, nil
	}
	for _, name := range []string{YearFile(year), AllHomesFile} {
		if err := s.writer.Append(name, table); err != nil {
			return 0, fmt.Errorf("persist %s: %w", r, err)
		}
	}
	s.tel.ReportCount(report_export_rows, int64(len(table.Rows)))
	return len(table.Rows), nil
}

// Read loads an extract written by the Writer.
func Read(path string) (consolidate.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return consolidate.Table{}, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return consolidate.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return consolidate.Table{}, nil
	}
	table := consolidate.Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make([]string, len(table.Columns))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Write replaces path with the table, used for derived extracts.
func Write(path string, table consolidate.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeTable(f, table.Columns, table.Rows); err != nil {
		return err
	}
	return f.Sync()
}
