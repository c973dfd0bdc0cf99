package resultformat

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/halsted/mftsearch/internal/mftypes"
)

func sampleResponse() *Response {
	return &Response{
		Query: "chrome",
		Hits: []mftypes.SearchHit{
			{Path: `C:\Users\x\chrome_notes.txt`, Priority: mftypes.PriorityDefault, Drive: 'C', FileID: 1},
			{Path: `C:\Program Files\Chrome\chrome.exe`, Priority: mftypes.PriorityExe, Drive: 'C', FileID: 0},
		},
		TotalFound: 2,
		SearchTime: 5 * time.Millisecond,
	}
}

func TestFormatOutputTable(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatOutput(&buf, sampleResponse(), "table"); err != nil {
		t.Fatalf("FormatOutput: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "chrome.exe") || !strings.Contains(out, "chrome_notes.txt") {
		t.Fatalf("table output missing expected paths: %s", out)
	}
	exeIdx := strings.Index(out, "chrome.exe")
	notesIdx := strings.Index(out, "chrome_notes.txt")
	if exeIdx == -1 || notesIdx == -1 || exeIdx > notesIdx {
		t.Fatalf("expected higher-priority hit (chrome.exe) before lower-priority hit, got: %s", out)
	}
}

func TestFormatOutputEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	resp := &Response{Query: "nope"}
	if err := FormatOutput(&buf, resp, "table"); err != nil {
		t.Fatalf("FormatOutput: %v", err)
	}
	if !strings.Contains(buf.String(), "No files found") {
		t.Fatalf("expected no-results message, got: %s", buf.String())
	}
}

func TestFormatOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatOutput(&buf, sampleResponse(), "json"); err != nil {
		t.Fatalf("FormatOutput: %v", err)
	}
	var decoded Response
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding JSON output: %v", err)
	}
	if decoded.Query != "chrome" || decoded.TotalFound != 2 {
		t.Fatalf("unexpected decoded response: %+v", decoded)
	}
}

func TestFormatOutputYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatOutput(&buf, sampleResponse(), "yaml"); err != nil {
		t.Fatalf("FormatOutput: %v", err)
	}
	if !strings.Contains(buf.String(), "query: chrome") {
		t.Fatalf("yaml output missing query field: %s", buf.String())
	}
}

func TestFormatOutputUnsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatOutput(&buf, sampleResponse(), "xml"); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
