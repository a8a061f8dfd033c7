package codebook

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/qvcompress/feature"
)

const commentPrefix = "#"

// WriteText writes the text form of c to w.
func (c *Codebook) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%s%s\n", commentPrefix, c.schema); err != nil {
		return err
	}

	fields := make([]string, c.schema.Len())
	for i := 0; i < c.Len(); i++ {
		for j, v := range c.centroids.Row(i) {
			fields[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadText parses the text form. The header may be written as "#A,B" or
// "# A,B"; later comment lines and blank lines are skipped.
func ReadText(r io.Reader) (*Codebook, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		schema feature.Schema
		rows   [][]float64
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())

		if schema == nil {
			header, ok := strings.CutPrefix(text, commentPrefix)
			if !ok {
				return nil, &FormatError{Line: line, Reason: "missing header"}
			}
			s, err := feature.ParseSchema(header)
			if err != nil {
				return nil, &FormatError{Line: line, Reason: err.Error()}
			}
			schema = s
			continue
		}

		if text == "" || strings.HasPrefix(text, commentPrefix) {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) != schema.Len() {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("%d values, header names %d features", len(fields), schema.Len())}
		}
		row := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, &FormatError{Line: line, Reason: fmt.Sprintf("invalid value %q", f)}
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("codebook: read: %w", err)
	}

	if schema == nil {
		return nil, &FormatError{Reason: "missing header"}
	}
	if len(rows) == 0 {
		return nil, &FormatError{Line: line, Reason: "no centroids"}
	}
	return New(schema, feature.MatrixFromRows(rows))
}

// Save writes c to path, replacing any existing file.
func (c *Codebook) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("codebook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return c.WriteText(f)
}

// Load reads a codebook file.
func Load(path string) (*Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codebook: %w", err)
	}
	defer f.Close()
	return ReadText(f)
}
