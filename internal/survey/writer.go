// Writer implementations for the survey output file, adapting the
// teacher's dual CSVLogger/SQLiteLogger pattern (one default plain-text
// writer, one SQLite-backed alternative sharing the same interface).
package survey

import (
	"bufio"
	"compress/gzip"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Writer persists Rows to the configured output, per spec.md section 6:
// a tab-delimited file with one row per (survey, age-band, measure,
// value) tuple, optionally gzip-compressed.
type Writer interface {
	WriteRows(rows []Row) error
	Close() error
}

// TabWriter is the default tab-delimited Writer, optionally gzip
// compressed, mirroring the teacher's CSVLogger append-to-file pattern
// (csv_logger.go) but with a shared underlying file handle instead of a
// per-channel path, since survey output is a single table.
type TabWriter struct {
	f      *os.File
	gz     *gzip.Writer
	bw     *bufio.Writer
}

// NewTabWriter creates a TabWriter at path, gzip-compressing if compress
// is true (spec.md section 6 --compress-output).
func NewTabWriter(path string, compress bool) (*TabWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "survey: create output file")
	}
	w := &TabWriter{f: f}
	if compress {
		w.gz = gzip.NewWriter(f)
		w.bw = bufio.NewWriter(w.gz)
	} else {
		w.bw = bufio.NewWriter(f)
	}
	return w, nil
}

// WriteRows appends rows as tab-delimited lines:
// survey<TAB>ageBand<TAB>cohort<TAB>measure<TAB>value
func (w *TabWriter) WriteRows(rows []Row) error {
	for _, r := range rows {
		_, err := fmt.Fprintf(w.bw, "%d\t%d\t%d\t%s\t%g\n", r.SurveyIndex, r.AgeBand, r.CohortID, r.Measure, r.Value)
		if err != nil {
			return errors.Wrap(err, "survey: write row")
		}
	}
	return nil
}

// Close flushes and closes the writer, in gzip-then-file order.
func (w *TabWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return err
		}
	}
	return w.f.Close()
}

// SQLiteWriter is the alternative Writer backed by a single SQLite table,
// adapting the teacher's sqlite_logger.go one-table-per-channel pattern to
// a single "survey_rows" table.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (creating if necessary) a SQLite database at path
// and ensures the survey_rows table exists.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "survey: open sqlite output")
	}
	const createStmt = `
	create table if not exists survey_rows (
		survey_index integer,
		age_band integer,
		cohort_id integer,
		measure text,
		value real
	);`
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "survey: create survey_rows table")
	}
	return &SQLiteWriter{db: db}, nil
}

// WriteRows inserts rows into the survey_rows table inside a single
// transaction.
func (w *SQLiteWriter) WriteRows(rows []Row) error {
	tx, err := w.db.Begin()
	if err != nil {
		return errors.Wrap(err, "survey: begin sqlite transaction")
	}
	stmt, err := tx.Prepare(`insert into survey_rows (survey_index, age_band, cohort_id, measure, value) values (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "survey: prepare sqlite insert")
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.SurveyIndex, r.AgeBand, r.CohortID, string(r.Measure), r.Value); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "survey: insert row")
		}
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
