package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

const maxLineBytes = 4 << 20

type jsonlRecord struct {
	Ref       string    `json:"ref"`
	Embedding []float32 `json:"embedding"`
}

type msgpackBundle struct {
	Refs       []string    `msgpack:"refs"`
	Embeddings [][]float32 `msgpack:"embeddings"`
}

// loadResult holds the normalised entries and a tally of rejected rows.
type loadResult struct {
	Entries  []domcohort.Entry
	Skipped  int
	FirstErr error
}

func (l *loadResult) add(ref string, values []float32, dim int) {
	v, err := embedding.New(values, dim)
	if err != nil {
		if l.FirstErr == nil {
			l.FirstErr = fmt.Errorf("%s: %w", ref, err)
		}
		l.Skipped++
		return
	}
	l.Entries = append(l.Entries, domcohort.Entry{Ref: ref, Vector: v})
}

// loadEntries reads a cohort file, L2-normalising each vector. Rows that are not
// valid dim-sized embeddings are skipped. limit > 0 caps the number of rows read.
func loadEntries(path string, dim, limit int) (*loadResult, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		return parseJSONL(data, stem, dim, limit)
	case ".msgpack", ".mpk":
		return parseMsgpack(data, stem, dim, limit)
	default:
		return nil, fmt.Errorf("unsupported cohort file extension %q (want .jsonl or .msgpack)", ext)
	}
}

func parseJSONL(data []byte, stem string, dim, limit int) (*loadResult, error) {
	res := &loadResult{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	row := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if limit > 0 && row >= limit {
			break
		}
		var rec jsonlRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", row+1, err)
		}
		if rec.Ref == "" {
			rec.Ref = defaultRef(stem, row)
		}
		res.add(rec.Ref, rec.Embedding, dim)
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return res, nil
}

func parseMsgpack(data []byte, stem string, dim, limit int) (*loadResult, error) {
	var b msgpackBundle
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse msgpack: %w", err)
	}
	if len(b.Refs) > 0 && len(b.Refs) != len(b.Embeddings) {
		return nil, fmt.Errorf("msgpack bundle has %d refs for %d embeddings", len(b.Refs), len(b.Embeddings))
	}

	n := len(b.Embeddings)
	if limit > 0 {
		n = min(n, limit)
	}
	res := &loadResult{Entries: make([]domcohort.Entry, 0, n)}
	for i := range n {
		ref := defaultRef(stem, i)
		if len(b.Refs) > 0 && b.Refs[i] != "" {
			ref = b.Refs[i]
		}
		res.add(ref, b.Embeddings[i], dim)
	}
	return res, nil
}

func defaultRef(stem string, i int) string {
	return fmt.Sprintf("%s-%06d", stem, i)
}
