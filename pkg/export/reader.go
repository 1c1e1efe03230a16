package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Format identifies a tabular file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPDF  = "application/pdf"
)

// ErrUnsupportedFormat is returned when uploaded bytes are not a readable table.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// ContentType returns the MIME type served for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return MIMEXLSX
	case FormatPDF:
		return MIMEPDF
	default:
		return MIMECSV
	}
}

// ParseFormat normalises a query value, defaulting to CSV.
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatCSV):
		return FormatCSV, true
	case string(FormatXLSX):
		return FormatXLSX, true
	case string(FormatPDF):
		return FormatPDF, true
	default:
		return "", false
	}
}

// Detect sniffs the payload and returns the readable format with its bare MIME type.
// Plain text is treated as CSV since short single-column files are not recognised as CSV.
func Detect(data []byte) (Format, string, error) {
	detected := mimetype.Detect(data)
	mediaType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		mediaType = detected.String()
	}
	switch {
	case detected.Is(MIMEXLSX), detected.Is("application/zip"):
		return FormatXLSX, MIMEXLSX, nil
	case detected.Is(MIMECSV), detected.Is("text/plain"):
		return FormatCSV, MIMECSV, nil
	default:
		return "", mediaType, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
}

// ReadTable decodes a CSV or XLSX payload into rows of cells. The first sheet is used
// for workbooks. Short rows are padded to the widest row so trailing blanks survive.
func ReadTable(format Format, data []byte) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(data)
	case FormatXLSX:
		rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return padRows(rows), nil
}

// readCSV keeps blank lines as empty rows so row indexes match what a spreadsheet shows.
func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var rows [][]string
	lastLine := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		start, _ := reader.FieldPos(0)
		for line := lastLine + 1; line < start; line++ {
			rows = append(rows, nil)
		}
		rows = append(rows, record)
		end, _ := reader.FieldPos(len(record) - 1)
		lastLine = end + strings.Count(record[len(record)-1], "\n")
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func padRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}
