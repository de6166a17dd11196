package pipeline_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yorozuya-cybersecurity/bome/internal/cmdlogger"
	"github.com/yorozuya-cybersecurity/bome/internal/pipeline"
	"github.com/yorozuya-cybersecurity/bome/internal/sbom"
	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

// staticProvider returns the same fragment for every path
type staticProvider struct {
	fragment string
	calls    int
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Fragment(path string) (schema.BOM, error) {
	p.calls++
	if _, err := os.Stat(path); err != nil {
		return schema.BOM{}, err
	}
	var bom schema.BOM
	err := json.Unmarshal([]byte(p.fragment), &bom)

	return bom, err
}

const leftPadFragment = `{
	"app_dependencies": [{"name": "left-pad", "version": "1.0"}],
	"vulnerabilities": [{"id": "CVE-X", "score": 7.5, "severity": "high", "description": "d", "url": "http://x", "created": "2024-01-01"}]
}`

func newDriver(p *staticProvider) pipeline.Driver {
	return pipeline.Driver{
		Provider: p,
		Logger:   slog.New(cmdlogger.New(io.Discard, io.Discard)),
	}
}

func report(t *testing.T, dir string) string {
	t.Helper()

	p := filepath.Join(dir, "snyk.json")
	if err := os.WriteFile(p, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	return p
}

func readJSON(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		t.Fatalf("Compact(%s): %v", path, err)
	}

	return compact.String()
}

func TestRun_FreshStartWithOneFragment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "output.json")

	_, err := newDriver(&staticProvider{fragment: leftPadFragment}).Run(pipeline.Options{
		SnykTest:   report(t, dir),
		OutputFile: out,
		Pretty:     true,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := `{"bomFormat":"CycloneDX","specVersion":"1.6","version":1,"metadata":{},` +
		`"components":[{"name":"left-pad","version":"1.0"}],` +
		`"vulnerabilities":[{"id":"CVE-X","rating":[{"score":7.5,"severity":"high"}],"description":"d","source":{"url":"http://x"},"created":"2024-01-01"}]}`

	if diff := cmp.Diff(want, readJSON(t, out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_VersionMonotonicAcrossUpdates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bomPath := filepath.Join(dir, "bome.json")
	out := filepath.Join(dir, "sbom.json")
	provider := &staticProvider{fragment: leftPadFragment}
	d := newDriver(provider)

	res, err := d.Run(pipeline.Options{SnykTest: report(t, dir), OutputFile: out, SaveBOM: bomPath})
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if res.Document.Version != 1 {
		t.Fatalf("first run version = %d, want 1", res.Document.Version)
	}

	for want := 2; want <= 4; want++ {
		res, err = d.Run(pipeline.Options{UpdateBOM: bomPath, SnykTest: report(t, dir), OutputFile: out, SaveBOM: bomPath})
		if err != nil {
			t.Fatalf("update Run() error: %v", err)
		}
		if res.Document.Version != want {
			t.Errorf("version after update = %d, want %d", res.Document.Version, want)
		}
		// re-merging the same fragment must not duplicate anything
		if len(res.Document.Components) != 1 || len(res.Document.Vulnerabilities) != 1 {
			t.Errorf("update %d: %d components, %d vulnerabilities; want 1, 1",
				want, len(res.Document.Components), len(res.Document.Vulnerabilities))
		}
	}
	if provider.calls != 4 {
		t.Errorf("provider called %d times, want 4", provider.calls)
	}
}

func TestRun_UpdateWithoutVersionStartsAtOne(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bomPath := filepath.Join(dir, "bome.yaml")
	if err := os.WriteFile(bomPath, []byte("os_dependencies:\n  - name: musl\n"), 0600); err != nil {
		t.Fatal(err)
	}

	res, err := newDriver(&staticProvider{}).Run(pipeline.Options{UpdateBOM: bomPath, OutputFile: filepath.Join(dir, "o.json")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.BOM.Version != 1 {
		t.Errorf("version = %d, want 1", res.BOM.Version)
	}
	if diff := cmp.Diff(`{"name":"musl","type":"operating-system"}`, mustJSON(t, res.Document.Components[0])); diff != "" {
		t.Errorf("loaded os dependency was not stamped (-want +got):\n%s", diff)
	}
}

func TestRun_AuthorsAndPrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bomPath := filepath.Join(dir, "bome.json")
	if err := os.WriteFile(bomPath, []byte(`{"version":1,"metadata":{"date":"2024-01-01","authors":[{"name":"old"}]}}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		precedence string
		want       string
	}{
		{"existing", `[{"name":"old"}]`},
		{"fragment", `[{"name":"Jane Doe","email":"jane@example.com"}]`},
	}

	for _, tt := range tests {
		res, err := newDriver(&staticProvider{}).Run(pipeline.Options{
			UpdateBOM:  bomPath,
			OutputFile: filepath.Join(dir, tt.precedence+".json"),
			Precedence: tt.precedence,
			Authors:    []string{"Jane Doe <jane@example.com>"},
		})
		if err != nil {
			t.Fatalf("Run(%s) error: %v", tt.precedence, err)
		}
		if diff := cmp.Diff(tt.want, mustJSON(t, res.Document.Metadata.Authors)); diff != "" {
			t.Errorf("%s: authors mismatch (-want +got):\n%s", tt.precedence, diff)
		}
		if diff := cmp.Diff(`"2024-01-01"`, mustJSON(t, res.Document.Metadata.Timestamp)); diff != "" {
			t.Errorf("%s: timestamp mismatch (-want +got):\n%s", tt.precedence, diff)
		}
	}
}

func TestRun_FailuresWriteNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    pipeline.Options
		wantErr error
	}{
		{
			name:    "unsupported format rejected before loading",
			opts:    pipeline.Options{Format: "xml", UpdateBOM: filepath.Join(dir, "missing.json")},
			wantErr: sbom.ErrUnsupportedFormat,
		},
		{
			name:    "spdx is not implemented",
			opts:    pipeline.Options{Format: "spdx"},
			wantErr: sbom.ErrSPDXNotImplemented,
		},
		{
			name:    "missing bome",
			opts:    pipeline.Options{UpdateBOM: filepath.Join(dir, "missing.json")},
			wantErr: os.ErrNotExist,
		},
		{
			name:    "missing report",
			opts:    pipeline.Options{SnykTest: filepath.Join(dir, "missing-report.json")},
			wantErr: os.ErrNotExist,
		},
		{
			name: "invalid precedence",
			opts: pipeline.Options{Precedence: "newest"},
		},
		{
			name: "invalid author",
			opts: pipeline.Options{Authors: []string{"  "}},
		},
		{
			name: "unwritable save-bome",
			opts: pipeline.Options{SnykTest: report(t, dir), SaveBOM: filepath.Join(report(t, dir), "bome.json")},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "output.json")
			tt.opts.OutputFile = out

			_, err := newDriver(&staticProvider{fragment: leftPadFragment}).Run(tt.opts)
			if err == nil {
				t.Fatal("Run() expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
				t.Errorf("output file exists after a failed run (stat err = %v)", statErr)
			}
		})
	}
}

func TestOptions_ValidateRequiresOutput(t *testing.T) {
	t.Parallel()

	if err := (pipeline.Options{}).Validate(); !errors.Is(err, pipeline.ErrNoOutput) {
		t.Errorf("Validate() error = %v, want ErrNoOutput", err)
	}
	if err := (pipeline.Options{OutputFile: pipeline.DefaultOutputFile}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestNextVersion(t *testing.T) {
	t.Parallel()

	for current, want := range map[int]int{-3: 1, 0: 1, 1: 2, 41: 42, math.MaxInt: math.MaxInt} {
		if got := pipeline.NextVersion(current); got != want {
			t.Errorf("NextVersion(%d) = %d, want %d", current, got, want)
		}
	}
}

func TestParseAuthor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"Jane Doe <jane@example.com>", `{"name":"Jane Doe","email":"jane@example.com"}`, false},
		{"Security Team", `{"name":"Security Team"}`, false},
		{"<sec@example.com>", `{"email":"sec@example.com"}`, false},
		{"", "", true},
		{"<>", "", true},
	}

	for _, tt := range tests {
		got, err := pipeline.ParseAuthor(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAuthor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if diff := cmp.Diff(tt.want, mustJSON(t, got)); diff != "" {
			t.Errorf("ParseAuthor(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	return string(out)
}
