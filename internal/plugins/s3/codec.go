// Codecs for decoding an S3 object's body into individual record payloads.
// Both are thin stdlib wrappers: the original Java implementation
// (original_source/.../codec/CSVCodec.java,
// original_source/.../codec/NewlineDelimitedConfig.java) uses nothing but
// the JDK's own CSV/line splitting (OpenCSV is not part of this pack), so
// encoding/csv and bufio.Scanner are the direct equivalents here — no
// third-party library in the examples does either job better.
package s3

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

type codec interface {
	decode(r io.Reader) ([]string, error)
}

func codecFor(name string) (codec, error) {
	switch name {
	case "", "newline":
		return newlineCodec{}, nil
	case "csv":
		return csvCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown s3 codec %q", name)
	}
}

// newlineCodec splits the object body into one line per record, matching
// NewlineDelimitedConfig.java's plain line splitting.
type newlineCodec struct{}

func (newlineCodec) decode(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// csvCodec parses the object body as CSV, re-joining each record's fields
// with a comma so downstream plugins see one flattened string per row,
// matching CSVCodec.java's row-to-record mapping.
type csvCodec struct{}

func (csvCodec) decode(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, strings.Join(row, ","))
	}
	return out, nil
}
