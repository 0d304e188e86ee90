package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// decodeLines gunzips an archive object and unmarshals each NDJSON line
// into T. Export pipelines occasionally truncate a trailing line; malformed
// lines are skipped with a log entry rather than failing the whole object.
func decodeLines[T any](key string, blob []byte) ([]T, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", key, err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	// Archive rows with full calldata run long.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	out := make([]T, 0)
	skipped := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			skipped++
			continue
		}
		out = append(out, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}
	if skipped > 0 {
		log.Printf("archive: skipped %d malformed lines in %s", skipped, key)
	}
	return out, nil
}

// flexBig unmarshals archive numerics that arrive as strings, numbers, or
// null. Nil means absent.
type flexBig struct {
	v *big.Int
}

func (f *flexBig) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		f.v = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		f.v = nil
		return nil
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		f.v = n
		return nil
	}
	// Some exports wrote tallies in decimal notation.
	if fl, ok := new(big.Float).SetString(s); ok {
		f.v, _ = fl.Int(nil)
		return nil
	}
	return fmt.Errorf("parse archive numeric %q", s)
}

func (f flexBig) Big() *big.Int { return f.v }
