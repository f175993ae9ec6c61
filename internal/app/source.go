package app

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"mail2mem/internal/uploader"
)

// maxLineBytes bounds a single input line. Payloads travel base64- or
// JSON-encoded inside the line, so 16MB covers records well past common
// message size limits.
const maxLineBytes = 16 * 1024 * 1024

type sourceRecord struct {
	ID       string            `json:"id"`
	Payload  json.RawMessage   `json:"payload"`
	Metadata map[string]string `json:"metadata"`
}

// ReadRecords loads upload records from a JSONL file, one JSON object per
// line. Files ending in .gz are decompressed on the fly. Blank lines are
// skipped; a malformed line aborts the load with its line number.
func ReadRecords(path string) ([]uploader.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip input: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var records []uploader.Record
	line := 0

	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var src sourceRecord
		if err := json.Unmarshal(data, &src); err != nil {
			return nil, fmt.Errorf("line %d: invalid record: %w", line, err)
		}
		if src.ID == "" {
			return nil, fmt.Errorf("line %d: record id is required", line)
		}

		records = append(records, uploader.Record{
			ID:       src.ID,
			Payload:  []byte(src.Payload),
			Metadata: src.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return records, nil
}
