package archive

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func gzipLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, line := range lines {
		if _, err := gz.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeLinesSkipsMalformed(t *testing.T) {
	blob := gzipLines(t,
		`{"id":"1"}`,
		`{"id":"2"`, // truncated export line
		``,
		`{"id":"3"}`,
	)
	rows, err := decodeLines[json.RawMessage]("test.ndjson.gz", blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestDecodeLinesBadGzip(t *testing.T) {
	if _, err := decodeLines[json.RawMessage]("test.ndjson.gz", []byte("not gzip")); err == nil {
		t.Fatal("expected gunzip error")
	}
}

func TestFlexBig(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantNil bool
		wantErr bool
	}{
		{"string integer", `"12345"`, "12345", false, false},
		{"bare number", `12345`, "12345", false, false},
		{"null", `null`, "", true, false},
		{"empty string", `""`, "", true, false},
		{"wei scale", `"1000000000000000000000000000"`, "1000000000000000000000000000", false, false},
		{"scientific notation", `"1e3"`, "1000", false, false},
		{"garbage", `"abc"`, "", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f flexBig
			err := json.Unmarshal([]byte(tc.in), &f)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if tc.wantNil {
				if f.Big() != nil {
					t.Fatalf("expected nil, got %s", f.Big())
				}
				return
			}
			if f.Big().String() != tc.want {
				t.Fatalf("got %s, want %s", f.Big(), tc.want)
			}
		})
	}
}

func TestNormalizeProposalDefaults(t *testing.T) {
	raw := json.RawMessage(`{"id":"7","proposalNumber":"7","startBlock":"100"}`)
	var row proposalRow
	if err := json.Unmarshal(raw, &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p := normalizeProposal(row, raw)
	if p.Type != "STANDARD" {
		t.Errorf("untyped archive rows default to STANDARD, got %s", p.Type)
	}
	if p.Number != 7 {
		t.Errorf("number = %d", p.Number)
	}
	if p.StartBlock == nil || p.StartBlock.Int64() != 100 {
		t.Errorf("start block = %v", p.StartBlock)
	}
	if p.EndBlock != nil {
		t.Errorf("absent end block must stay nil, got %v", p.EndBlock)
	}
	if len(p.Raw) == 0 {
		t.Error("raw row must be preserved")
	}
}

func TestArchiveKeys(t *testing.T) {
	if got := proposalsKey("optimism"); got != "optimism/proposals.ndjson.gz" {
		t.Errorf("proposals key = %s", got)
	}
	if got := votesKey("optimism", "0xABcD"); got != "optimism/votes/0xabcd.ndjson.gz" {
		t.Errorf("votes key must lowercase the delegate, got %s", got)
	}
	if got := nonVotersKey("ens", "42"); got != "ens/non-voters/42.ndjson.gz" {
		t.Errorf("non-voters key = %s", got)
	}
}
