// Package importer reads member rosters kept in spreadsheets into member create params.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

var ErrNoHeader = errors.New("no roster header found: expected at least a name column")

type field int

const (
	fieldName field = iota
	fieldPhone
	fieldAddress
	fieldStatus
	fieldJoinDate
	fieldMonthlyDues
)

// aliases lists the header spellings accepted for each field, already normalised.
var aliases = map[string]field{
	"name":         fieldName,
	"member":       fieldName,
	"member name":  fieldName,
	"phone":        fieldPhone,
	"mobile":       fieldPhone,
	"contact":      fieldPhone,
	"address":      fieldAddress,
	"status":       fieldStatus,
	"join date":    fieldJoinDate,
	"joined":       fieldJoinDate,
	"joining date": fieldJoinDate,
	"monthly dues": fieldMonthlyDues,
	"dues":         fieldMonthlyDues,
	"amount":       fieldMonthlyDues,
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006", "02-01-2006"}

// RowError describes a data row that could not be turned into a member.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

type Result struct {
	Charset  string
	Members  []member.CreateParams
	Rejected []RowError
}

type Service struct {
	defaultDues int64
}

// NewService returns an importer that fills in defaultDues when a row leaves dues empty.
func NewService(defaultDues int64) *Service {
	return &Service{defaultDues: defaultDues}
}

// Members parses a roster CSV. Rows that cannot be read are reported in Result.Rejected
// and do not stop the import. Join dates left empty stay zero so the member service
// applies today's date.
func (s *Service) Members(r io.Reader) (*Result, error) {
	utf8r, charset, err := decodeUTF8(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	decimalComma := reader.Comma == ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := readRecords(reader)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols, headerIdx := detectHeader(rows)
	if cols == nil {
		return nil, ErrNoHeader
	}

	res := &Result{Charset: charset}

	for _, rec := range rows[headerIdx+1:] {
		if blank(rec.fields) {
			continue
		}

		params, err := s.parseRow(cols, rec.fields, decimalComma)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: rec.line, Err: err})
			continue
		}

		res.Members = append(res.Members, params)
	}

	slog.Debug("roster parsed", "charset", charset, "members", len(res.Members), "rejected", len(res.Rejected))

	return res, nil
}

// detectDelimiter picks ';' when the first line has more semicolons than commas.
// Spreadsheets set to locales with decimal commas export that way, so amounts in a
// semicolon file are read with a decimal comma.
func detectDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))

	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}

	return ','
}

type record struct {
	line   int
	fields []string
}

func readRecords(reader *csv.Reader) ([]record, error) {
	var rows []record

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, record{line: line, fields: fields})
	}
}

type colIndex map[field]int

func detectHeader(rows []record) (colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row.fields {
			if f, ok := aliases[normalise(cell)]; ok {
				if _, seen := cols[f]; !seen {
					cols[f] = i
				}
			}
		}

		if _, ok := cols[fieldName]; ok {
			return cols, rowIdx
		}
	}

	return nil, 0
}

func normalise(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)

	return strings.Join(strings.Fields(h), " ")
}

func (s *Service) parseRow(cols colIndex, row []string, decimalComma bool) (member.CreateParams, error) {
	cell := func(f field) string {
		i, ok := cols[f]
		if !ok || i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	params := member.CreateParams{
		Name:        cell(fieldName),
		Status:      member.StatusActive,
		MonthlyDues: s.defaultDues,
	}

	if params.Name == "" {
		return params, errors.New("missing name")
	}

	if v := cell(fieldPhone); v != "" {
		params.Phone = &v
	}

	if v := cell(fieldAddress); v != "" {
		params.Address = &v
	}

	if v := cell(fieldStatus); v != "" {
		switch st := member.Status(strings.ToLower(v)); st {
		case member.StatusActive, member.StatusInactive:
			params.Status = st
		default:
			return params, fmt.Errorf("unknown status %q", v)
		}
	}

	if v := cell(fieldJoinDate); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return params, err
		}

		params.JoinDate = d
	}

	if v := cell(fieldMonthlyDues); v != "" {
		dues, err := parseAmount(v, decimalComma)
		if err != nil {
			return params, fmt.Errorf("monthly dues: %w", err)
		}

		params.MonthlyDues = dues
	}

	return params, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
