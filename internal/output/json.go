/*
PURPOSE:
  Writes analysis artifacts (latency maps, correlation reports, batch report)
  as indented JSON documents.

REQUIREMENTS:
  User-specified:
  - Outputs are overwritten wholesale each run.

  Implementation-discovered:
  - encoding/json sorts map keys, so identical inputs give byte-identical files.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine

ERROR HANDLING:
  - Returns error on encode or write failure.
  - Documents are encoded in memory first; a value that cannot be encoded
    (NaN, Inf) leaves the previous file untouched.

USAGE:
  w, err := output.NewJSONWriter("function_latency_map.json")
  w.Write(latencyMap)
  w.Close()
*/

package output

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
)

// JSONWriter collects indented JSON documents and writes them to its path on Close.
type JSONWriter struct {
	path string
	buf  bytes.Buffer
	mu   sync.Mutex
}

// NewJSONWriter returns a writer for path. The file is replaced on Close.
func NewJSONWriter(path string) (*JSONWriter, error) {
	return &JSONWriter{path: path}, nil
}

// Write encodes v. Nothing is buffered when encoding fails.
func (jw *JSONWriter) Write(v interface{}) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	var doc bytes.Buffer
	enc := json.NewEncoder(&doc)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := jw.buf.Write(doc.Bytes())
	return err
}

// Close writes the buffered documents to the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return os.WriteFile(jw.path, jw.buf.Bytes(), 0o644)
}

// WriteJSONFile writes v to path as a single document. The file is only
// touched once v has been encoded.
func WriteJSONFile(path string, v interface{}) error {
	w, err := NewJSONWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(v); err != nil {
		return err
	}
	return w.Close()
}
