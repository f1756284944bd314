// Package datarecording persists simulation records into SQLite.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrInvalidEntry is returned for records that cannot be stored as a row.
var ErrInvalidEntry = errors.New("datarecording: entry is invalid")

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers entry for the table. Entries must have the same
	// type as the table's sample entry.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables created so far.
	ListTables() []string

	// Flush writes all buffered entries.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteWriter buffers entries in memory and writes them in batches.
type SQLiteWriter struct {
	*sql.DB

	lock      sync.Mutex
	dbName    string
	tables    map[string]*table
	order     []string
	batchSize int
	buffered  int
}

// New creates a SQLite recorder at path + ".sqlite3". An empty path picks a
// unique name. Buffered entries are flushed when the program exits through
// atexit.
func New(path string) (*SQLiteWriter, error) {
	w := NewSQLiteWriter(path)
	if err := w.Init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewSQLiteWriter creates a writer without opening the database.
func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{
		dbName:    path,
		batchSize: 10000,
		tables:    make(map[string]*table),
	}
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB) *SQLiteWriter {
	w := NewSQLiteWriter("")
	w.DB = db

	return w
}

// WithBatchSize sets how many entries are buffered before an automatic
// flush.
func (w *SQLiteWriter) WithBatchSize(n int) *SQLiteWriter {
	w.batchSize = n
	return w
}

// Filename returns the database file name.
func (w *SQLiteWriter) Filename() string {
	return w.dbName + ".sqlite3"
}

// Init opens the database. It refuses to overwrite an existing file.
func (w *SQLiteWriter) Init() error {
	if w.dbName == "" {
		w.dbName = "gossip_recording_" + xid.New().String()
	}

	filename := w.Filename()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("datarecording: file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("datarecording: opening %s: %w", filename, err)
	}

	w.DB = db

	return nil
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func columns(sampleEntry any) ([]string, error) {
	t := reflect.TypeOf(sampleEntry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry,
			sampleEntry)
	}

	names := structs.Names(sampleEntry)
	cols := make([]string, 0, len(names))

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		sqlType, ok := columnType(field.Type.Kind())
		if !ok || !field.IsExported() {
			return nil, fmt.Errorf("%w: field %s of type %s",
				ErrInvalidEntry, field.Name, field.Type)
		}

		cols = append(cols, names[i]+" "+sqlType)
	}

	return cols, nil
}

// CreateTable creates a table whose columns mirror the fields of
// sampleEntry. Only flat structs of numbers, booleans, and strings are
// accepted.
func (w *SQLiteWriter) CreateTable(tableName string, sampleEntry any) error {
	cols, err := columns(sampleEntry)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		return fmt.Errorf("datarecording: table %s already exists", tableName)
	}

	stmt := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(cols, ",\n\t") + "\n);"
	if _, err := w.Exec(stmt); err != nil {
		return fmt.Errorf("datarecording: creating table %s: %w",
			tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
	w.order = append(w.order, tableName)

	return nil
}

// InsertData buffers entry and flushes once the batch is full.
func (w *SQLiteWriter) InsertData(tableName string, entry any) error {
	w.lock.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.lock.Unlock()
		return fmt.Errorf("datarecording: table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		w.lock.Unlock()
		return fmt.Errorf("%w: %T does not match table %s", ErrInvalidEntry,
			entry, tableName)
	}

	t.entries = append(t.entries, entry)
	w.buffered++
	full := w.buffered >= w.batchSize

	w.lock.Unlock()

	if full {
		return w.Flush()
	}

	return nil
}

// ListTables returns table names in creation order.
func (w *SQLiteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	return append([]string(nil), w.order...)
}

// Flush writes every buffered entry in one transaction.
func (w *SQLiteWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.buffered == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return fmt.Errorf("datarecording: begin: %w", err)
	}

	for _, name := range w.order {
		if err := w.flushTable(tx, name, w.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datarecording: commit: %w", err)
	}

	w.buffered = 0

	return nil
}

func (w *SQLiteWriter) flushTable(tx *sql.Tx, name string, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", t.structType.NumField()), ", ")

	stmt, err := tx.Prepare(
		"INSERT INTO " + name + " VALUES (" + placeholders + ")")
	if err != nil {
		return fmt.Errorf("datarecording: preparing insert into %s: %w",
			name, err)
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("datarecording: inserting into %s: %w",
				name, err)
		}
	}

	t.entries = nil

	return nil
}

// Close flushes the buffer and closes the database.
func (w *SQLiteWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.DB.Close()
}

var _ DataRecorder = (*SQLiteWriter)(nil)
