package scanners_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/yorozuya-cybersecurity/bome/internal/scanners"
	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

var fixedNow = func() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
}

func objs(t *testing.T, texts ...string) []schema.Object {
	t.Helper()

	out := make([]schema.Object, 0, len(texts))
	for _, text := range texts {
		o, err := schema.ParseObject([]byte(text))
		if err != nil {
			t.Fatalf("ParseObject(%s): %v", text, err)
		}
		out = append(out, o)
	}

	return out
}

func TestSnyk_Fragment_NPM(t *testing.T) {
	t.Parallel()

	snyk := &scanners.Snyk{Now: fixedNow}
	got, err := snyk.Fragment(filepath.Join("testdata", "snyk-npm.json"))
	if err != nil {
		t.Fatalf("Fragment() error: %v", err)
	}

	want := schema.BOM{
		Metadata: objs(t, `{"date":"2024-06-01T10:00:00Z","tools":[{"vendor":"Snyk","name":"snyk"}]}`)[0],
		AppDependencies: objs(t,
			`{"name":"express-helpers","version":"2.1.0","purl":"pkg:npm/express-helpers@2.1.0"}`,
			`{"name":"lodash","version":"4.17.15","purl":"pkg:npm/lodash@4.17.15"}`,
			`{"name":"mkdirp","version":"0.5.1","purl":"pkg:npm/mkdirp@0.5.1"}`,
			`{"name":"minimist","version":"0.0.8","purl":"pkg:npm/minimist@0.0.8"}`,
		),
		OSDependencies:        []schema.Component{},
		ContainerDependencies: []schema.Component{},
		Vulnerabilities: objs(t,
			`{"id":"SNYK-JS-LODASH-567746","score":7.2,"severity":"high","description":"Prototype Pollution",`+
				`"url":"https://security.snyk.io/vuln/SNYK-JS-LODASH-567746","created":"2020-04-28T14:32:13.683154Z",`+
				`"package":"lodash","version":"4.17.15"}`,
			`{"id":"SNYK-JS-MINIMIST-559764","score":5.6,"severity":"medium","description":"Prototype Pollution",`+
				`"url":"https://security.snyk.io/vuln/SNYK-JS-MINIMIST-559764","created":"2020-03-11T08:25:19.716660Z",`+
				`"package":"minimist","version":"0.0.8"}`,
		),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fragment() mismatch (-want +got):\n%s", diff)
	}
}

func TestSnyk_Fragment_Container(t *testing.T) {
	t.Parallel()

	snyk := &scanners.Snyk{Now: fixedNow}
	got, err := snyk.Fragment(filepath.Join("testdata", "snyk-container.json"))
	if err != nil {
		t.Fatalf("Fragment() error: %v", err)
	}

	if len(got.AppDependencies) != 0 {
		t.Errorf("got %d app dependencies from a container scan, want 0", len(got.AppDependencies))
	}

	wantOS := objs(t,
		`{"name":"zlib/zlib1g","version":"1.2.11","purl":"pkg:deb/debian/zlib1g@1.2.11"}`,
		`{"name":"glibc/libc-bin","version":"2.31","purl":"pkg:deb/debian/libc-bin@2.31"}`,
	)
	if diff := cmp.Diff(wantOS, got.OSDependencies); diff != "" {
		t.Errorf("os dependencies mismatch (-want +got):\n%s", diff)
	}

	wantContainer := objs(t, `{"name":"node","version":"18-bullseye","purl":"pkg:docker/node@18-bullseye"}`)
	if diff := cmp.Diff(wantContainer, got.ContainerDependencies); diff != "" {
		t.Errorf("container dependencies mismatch (-want +got):\n%s", diff)
	}

	if len(got.Vulnerabilities) != 2 {
		t.Fatalf("got %d vulnerabilities, want 2", len(got.Vulnerabilities))
	}
	if got.Vulnerabilities[1].Has("score") {
		t.Errorf("null cvssScore should leave score unset, got keys %v", got.Vulnerabilities[1].Keys())
	}
}

func TestSnyk_Normalize_MultiProject(t *testing.T) {
	t.Parallel()

	report := `[
		{"packageManager":"pip","vulnerabilities":[{"id":"A","from":["app@0","requests@2.0.0"]}]},
		{"packageManager":"maven","vulnerabilities":[{"id":"B","from":["svc@1","org.apache.logging.log4j:log4j-core@2.14.1"]}]}
	]`

	got, err := (&scanners.Snyk{Now: fixedNow}).Normalize([]byte(report))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	want := objs(t,
		`{"name":"requests","version":"2.0.0","purl":"pkg:pypi/requests@2.0.0"}`,
		`{"name":"org.apache.logging.log4j:log4j-core","version":"2.14.1","purl":"pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1"}`,
	)
	if diff := cmp.Diff(want, got.AppDependencies); diff != "" {
		t.Errorf("app dependencies mismatch (-want +got):\n%s", diff)
	}
	if len(got.Vulnerabilities) != 2 {
		t.Errorf("got %d vulnerabilities, want 2", len(got.Vulnerabilities))
	}
}

func TestSnyk_Errors(t *testing.T) {
	t.Parallel()

	snyk := scanners.NewSnyk()

	if _, err := snyk.Fragment(filepath.Join("testdata", "snyk-error.json")); !errors.Is(err, scanners.ErrInvalidReport) {
		t.Errorf("error report: err = %v, want ErrInvalidReport", err)
	}
	if _, err := snyk.Fragment(filepath.Join("testdata", "does-not-exist.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing report: err = %v, want os.ErrNotExist", err)
	}

	for _, report := range []string{`not json`, `"string"`, `{"vulnerabilities":["x"]}`, `{"vulnerabilities":[{"title":"no id"}]}`} {
		if _, err := snyk.Normalize([]byte(report)); !errors.Is(err, scanners.ErrInvalidReport) {
			t.Errorf("Normalize(%s) err = %v, want ErrInvalidReport", report, err)
		}
	}
}

func TestSnyk_ImplementsProvider(t *testing.T) {
	t.Parallel()

	var p scanners.Provider = scanners.NewSnyk()
	if p.Name() != "snyk" {
		t.Errorf("Name() = %q, want snyk", p.Name())
	}
}
