// Package loader reads a project directory into a dataset: metadata.json,
// the data dictionary CSV it names, and the data table CSVs with cell types
// resolved per the dictionary.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/isaric/isaricdata/internal/dataset"
	"github.com/isaric/isaricdata/internal/schema"
)

// DefaultEncoding is used for files whose metadata does not name one.
const DefaultEncoding = "utf-8"

// MetadataFile is the required entry point of every project directory.
const MetadataFile = "metadata.json"

// Loader reads one project directory. Metadata must be loaded before the
// dictionary, and both before any data table, since the metadata names the
// files and the dictionary drives the cell types.
type Loader struct {
	path     string
	encoding string
	logger   zerolog.Logger

	metadata   map[string]any
	dictionary *schema.Dictionary
}

// Config adjusts loader behavior.
type Config struct {
	// Encoding is the default text encoding for JSON and CSV files.
	// Supported: utf-8, latin-1 (iso-8859-1), windows-1252.
	Encoding string

	Logger zerolog.Logger
}

// New creates a loader bound to a project directory.
func New(path string, cfg *Config) (*Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if _, err := newDecoder(encoding); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("project path %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", path)
	}

	logger := cfg.Logger.With().Str("component", "loader").Logger()
	logger.Info().Str("path", path).Msg("set project path")
	return &Loader{path: path, encoding: encoding, logger: logger}, nil
}

// LoadMetadata reads and parses metadata.json. If the metadata carries a
// "path" key it must resolve to the loader's own directory.
func (l *Loader) LoadMetadata() (map[string]any, error) {
	metadataPath := filepath.Join(l.path, MetadataFile)
	r, closeFn, err := l.openDecoded(metadataPath, l.encoding)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var metadata map[string]any
	if err := json.NewDecoder(r).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", metadataPath, err)
	}

	if declared, ok := metadata["path"].(string); ok && declared != "" {
		declaredAbs, err := filepath.Abs(declared)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve metadata path %s: %w", declared, err)
		}
		ownAbs, err := filepath.Abs(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project path %s: %w", l.path, err)
		}
		if declaredAbs != ownAbs {
			return nil, fmt.Errorf("metadata path %s does not match project path %s", declared, l.path)
		}
	}

	l.metadata = metadata
	l.logger.Info().Msg("loaded project metadata")
	return metadata, nil
}

// LoadDictionary reads the project data dictionary CSV named by the
// metadata (files.data_dictionary.filename, default data_dictionary.csv).
func (l *Loader) LoadDictionary() (*schema.Dictionary, error) {
	if l.metadata == nil {
		return nil, fmt.Errorf("metadata must be loaded first")
	}

	fileMeta := l.fileMetadata("data_dictionary")
	filename, err := stringKey(fileMeta, "filename", "data_dictionary.csv")
	if err != nil {
		return nil, err
	}
	encoding, err := stringKey(fileMeta, "encoding", l.encoding)
	if err != nil {
		return nil, err
	}

	header, records, err := l.readCSV(filepath.Join(l.path, filename), encoding)
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["field_name"]; !ok {
		return nil, fmt.Errorf("data dictionary %s has no field_name column", filename)
	}

	cell := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	rows := make([]schema.Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, schema.Row{
			FieldName:       cell(record, "field_name"),
			FieldLabel:      cell(record, "field_label"),
			FieldType:       schema.ParseFieldType(cell(record, "field_type")),
			FieldUnit:       cell(record, "field_unit"),
			FieldOptions:    cell(record, "field_options"),
			FieldSkipLogic:  cell(record, "field_skip_logic"),
			ParentFieldName: cell(record, "parent_field_name"),
			Section:         cell(record, "section"),
			TableName:       cell(record, "table_name"),
			Phase:           cell(record, "phase"),
		})
	}

	l.dictionary = &schema.Dictionary{Rows: rows}
	l.logger.Info().Int("fields", len(rows)).Msg("loaded project data dictionary")
	return l.dictionary, nil
}

// LoadTable reads one data table CSV, with cell types resolved from the
// dictionary: categorical and freetext columns are strings with the empty
// string as missing; datetime, numeric and boolean columns are coerced, with
// unparseable values becoming missing; undeclared columns stay raw strings.
//
// A table the metadata does not list is not an error: LoadTable logs and
// returns nil.
func (l *Loader) LoadTable(name string) (*dataset.Table, error) {
	if l.metadata == nil {
		return nil, fmt.Errorf("metadata must be loaded first")
	}
	if l.dictionary == nil {
		return nil, fmt.Errorf("data dictionary must be loaded first")
	}

	fileMeta := l.fileMetadata(name)
	if len(fileMeta) == 0 {
		fileMeta = l.eventFileMetadata(name)
	}
	if len(fileMeta) == 0 {
		l.logger.Warn().Str("table", name).Msg("table is not listed in metadata, skipping")
		return nil, nil
	}

	filename, err := stringKey(fileMeta, "filename", name+".csv")
	if err != nil {
		return nil, err
	}
	encoding, err := stringKey(fileMeta, "encoding", l.encoding)
	if err != nil {
		return nil, err
	}

	header, records, err := l.readCSV(filepath.Join(l.path, filename), encoding)
	if err != nil {
		return nil, err
	}

	types := make(map[string]schema.FieldType)
	for _, row := range l.dictionary.Rows {
		if row.TableName == name {
			types[row.FieldName] = row.FieldType
		}
	}

	table := dataset.NewTable(header...)
	for _, record := range records {
		values := make(map[string]dataset.Cell, len(header))
		for i, columnName := range header {
			raw := ""
			if i < len(record) {
				raw = record[i]
			}
			values[columnName] = parseCell(raw, types[columnName])
		}
		table.AppendRow(values)
	}

	l.logger.Info().Str("table", name).Int("rows", table.NumRows()).Msg("loaded project table")
	return table, nil
}

// LoadProject loads a full project directory into a validated dataset:
// metadata, dictionary, the required presentation and outcome tables, and
// the optional daily table and event tables.
func LoadProject(path string, cfg *Config) (*dataset.Dataset, error) {
	l, err := New(path, cfg)
	if err != nil {
		return nil, err
	}
	metadata, err := l.LoadMetadata()
	if err != nil {
		return nil, err
	}
	dictionary, err := l.LoadDictionary()
	if err != nil {
		return nil, err
	}

	presentation, err := l.LoadTable(dataset.PresentationName)
	if err != nil {
		return nil, err
	}
	outcome, err := l.LoadTable(dataset.OutcomeName)
	if err != nil {
		return nil, err
	}
	daily, err := l.LoadTable(dataset.DailyName)
	if err != nil {
		return nil, err
	}

	var events map[string]*dataset.Table
	if eventsMeta, ok := mapKey(l.metadata, "files", "events"); ok && len(eventsMeta) > 0 {
		events = make(map[string]*dataset.Table, len(eventsMeta))
		for name := range eventsMeta {
			table, err := l.LoadTable(name)
			if err != nil {
				return nil, err
			}
			events[name] = table
		}
	}

	return dataset.New(metadata, dictionary, presentation, outcome, daily, events)
}

// fileMetadata returns metadata["files"][name] as a map, or nil.
func (l *Loader) fileMetadata(name string) map[string]any {
	m, ok := mapKey(l.metadata, "files", name)
	if !ok {
		return nil
	}
	return m
}

// eventFileMetadata returns metadata["files"]["events"][name] as a map, or nil.
func (l *Loader) eventFileMetadata(name string) map[string]any {
	m, ok := mapKey(l.metadata, "files", "events", name)
	if !ok {
		return nil
	}
	return m
}

func mapKey(m map[string]any, path ...string) (map[string]any, bool) {
	cur := m
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// stringKey returns m[key] as a string, the fallback when absent, and an
// error when present but not string-valued.
func stringKey(m map[string]any, key, fallback string) (string, error) {
	v, ok := m[key]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("metadata key %q must be string-valued if it exists", key)
	}
	return s, nil
}

// readCSV reads a whole CSV file through the named encoding, returning the
// header row and the data records.
func (l *Loader) readCSV(path, encoding string) ([]string, [][]string, error) {
	r, closeFn, err := l.openDecoded(path, encoding)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return header, records, nil
}

// openDecoded opens a file wrapped in a decoder for the named encoding.
func (l *Loader) openDecoded(path, encoding string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	closeFn := func() { _ = f.Close() }

	dec, err := newDecoder(encoding)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if dec == nil {
		return f, closeFn, nil
	}
	return transform.NewReader(f, dec), closeFn, nil
}

// newDecoder returns the transformer for an encoding name, nil for UTF-8,
// or an error for encodings the loader does not support.
func newDecoder(encoding string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported text encoding %q", encoding)
	}
}

// datetimeLayouts are tried in order when coercing datetime cells.
var datetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
}

// parseCell coerces one raw CSV value per the field's dictionary type.
func parseCell(raw string, fieldType schema.FieldType) dataset.Cell {
	switch fieldType {
	case schema.Categorical, schema.Freetext:
		if raw == "" {
			return dataset.Missing()
		}
		return dataset.String(raw)
	case schema.Datetime:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return dataset.Time(t)
			}
		}
		return dataset.Missing()
	case schema.Numeric:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return dataset.Missing()
		}
		return dataset.Number(f)
	case schema.Boolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "1":
			return dataset.Bool(true)
		case "false", "no", "0":
			return dataset.Bool(false)
		default:
			return dataset.Missing()
		}
	default:
		// Undeclared and "other" columns stay raw strings; an empty
		// string here is a value, not the missing marker.
		return dataset.String(raw)
	}
}
