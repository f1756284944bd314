package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// QueryParams narrows a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as
	// "Scope = ? AND Round > ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero returns every row.
	Limit int

	// Offset skips rows. It only applies together with Limit.
	Offset int
}

func (p QueryParams) where() string {
	if p.Where == "" {
		return ""
	}

	return " WHERE " + p.Where
}

func (p QueryParams) tail() string {
	var b strings.Builder

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY " + p.OrderBy)
	}

	if p.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(p.Limit))

		if p.Offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(p.Offset))
		}
	}

	return b.String()
}

// DataReader reads back the tables a DataRecorder wrote.
type DataReader interface {
	// MapTable declares the struct type rows of tableName are scanned into.
	MapTable(tableName string, sampleEntry any)

	// Query returns pointers to the matching rows, plus how many rows match
	// regardless of Limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the reader.
	Close() error
}

// SQLiteReader reads a recording from its SQLite file.
type SQLiteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens the recording at filename read-only.
func NewReader(filename string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("datarecording: opening %s: %w", filename, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("datarecording: opening %s: %w", filename, err)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a reader on an open database.
func NewReaderWithDB(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

// MapTable records the struct type of the rows of tableName.
func (r *SQLiteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

// Tables lists the tables of the recording.
func (r *SQLiteReader) Tables(ctx context.Context) ([]string, error) {
	return r.scanStrings(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
}

// Distinct returns the distinct values of column in tableName, in order.
// The recorders use it to list the runs stored in one file.
func (r *SQLiteReader) Distinct(
	ctx context.Context,
	tableName, column string,
	params QueryParams,
) ([]string, error) {
	query := "SELECT DISTINCT " + column + " FROM " + tableName +
		params.where() + " ORDER BY " + column

	return r.scanStrings(ctx, query, params.Args...)
}

func (r *SQLiteReader) scanStrings(
	ctx context.Context,
	query string,
	args ...any,
) ([]string, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, rows.Err()
}

// Query runs a SELECT on a mapped table.
func (r *SQLiteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("datarecording: table %s is not mapped",
			tableName)
	}

	var total int

	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+params.where(),
		params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.QueryContext(ctx,
		"SELECT * FROM "+tableName+params.where()+params.tail(),
		params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := scanRows(rows, structType)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// scanRows fills one new structType value per row. Columns without a field
// of the same name are skipped.
func scanRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any
	for rows.Next() {
		ptr := reflect.New(structType)
		targets := make([]any, len(columns))

		for i, col := range columns {
			if field := ptr.Elem().FieldByName(col); field.IsValid() {
				targets[i] = field.Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

var _ DataReader = (*SQLiteReader)(nil)
