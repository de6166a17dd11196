// Package pipeline runs one conversion: load the prior BOM, normalize the
// scanner report, merge, project and persist.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/yorozuya-cybersecurity/bome/internal/merge"
	"github.com/yorozuya-cybersecurity/bome/internal/sbom"
	"github.com/yorozuya-cybersecurity/bome/internal/scanners"
	"github.com/yorozuya-cybersecurity/bome/internal/schema"
	"github.com/yorozuya-cybersecurity/bome/pkg/utils"
)

const DefaultOutputFile = "output.json"

var ErrNoOutput = errors.New("no output file given")

// Options mirror the command line flags
type Options struct {
	// SnykTest is a `snyk test --json` report to merge in; empty skips it.
	SnykTest string
	// UpdateBOM is a persisted BOM to load and increment; empty starts fresh.
	UpdateBOM  string
	OutputFile string
	// SaveBOM, when set, receives the merged BOM for the next --update-bome.
	SaveBOM    string
	Format     string
	Precedence string
	Authors    []string
	Pretty     bool
}

// Result is what one run produced
type Result struct {
	BOM      schema.BOM
	Document sbom.Document
	Summary  sbom.Summary
}

// Driver runs conversions. A nil Provider uses the Snyk normalizer and a nil
// Logger uses slog.Default().
type Driver struct {
	Provider scanners.Provider
	Logger   *slog.Logger
}

type validated struct {
	format     sbom.Format
	precedence merge.Precedence
	authors    []schema.Value
}

// Validate checks every option that can be checked without touching files
func (o Options) Validate() error {
	_, err := o.validate()
	return err
}

func (o Options) validate() (validated, error) {
	var v validated
	var err error

	if strings.TrimSpace(o.OutputFile) == "" {
		return v, ErrNoOutput
	}
	format := o.Format
	if format == "" {
		format = string(sbom.FormatCycloneDX)
	}
	if v.format, err = sbom.ParseFormat(format); err != nil {
		return v, err
	}
	if v.precedence, err = merge.ParsePrecedence(o.Precedence); err != nil {
		return v, err
	}
	for _, a := range o.Authors {
		author, err := ParseAuthor(a)
		if err != nil {
			return v, err
		}
		v.authors = append(v.authors, schema.ObjectValue(author))
	}
	return v, nil
}

// Run performs one conversion. Nothing is written unless every earlier step
// succeeded, and each file is replaced atomically.
func (d Driver) Run(opts Options) (Result, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	provider := d.Provider
	if provider == nil {
		provider = scanners.NewSnyk()
	}

	v, err := opts.validate()
	if err != nil {
		return Result{}, err
	}

	existing := schema.New()
	if opts.UpdateBOM != "" {
		existing, err = utils.LoadBOM(opts.UpdateBOM)
		if err != nil {
			return Result{}, err
		}
		existing.Version = NextVersion(existing.Version)
		log.Info(fmt.Sprintf("📂 Loaded bome %s (now version %d)", opts.UpdateBOM, existing.Version))
	}

	var fragments []schema.BOM
	if opts.SnykTest != "" {
		fragment, err := provider.Fragment(opts.SnykTest)
		if err != nil {
			return Result{}, err
		}
		log.Info(fmt.Sprintf("🔎 Normalized %s report %s", provider.Name(), opts.SnykTest))
		fragments = append(fragments, fragment)
	}
	if len(v.authors) > 0 {
		fragments = append(fragments, schema.BOM{
			Metadata: schema.NewObject(schema.Member{Key: "authors", Value: schema.Array(v.authors...)}),
		})
	}

	merged := merge.Merger{Precedence: v.precedence}.Merge(existing, fragments...)
	summary := sbom.Summarize(merged)
	log.Debug(fmt.Sprintf("merged %d fragment(s) into version %d", len(fragments), merged.Version))

	doc, err := sbom.Project(merged, v.format)
	if err != nil {
		return Result{}, err
	}

	// the bome goes first so a failed save never leaves an SBOM ahead of it
	if opts.SaveBOM != "" {
		if err := utils.SaveBOM(merged, opts.SaveBOM); err != nil {
			return Result{}, err
		}
		log.Info(fmt.Sprintf("💾 Saved bome to %s", opts.SaveBOM))
	}

	if err := utils.WriteDocument(doc, opts.OutputFile, opts.Pretty); err != nil {
		return Result{}, err
	}
	log.Info(fmt.Sprintf("✅ Wrote %s SBOM to %s", v.format, opts.OutputFile))
	log.Info("   " + summary.String())

	return Result{BOM: merged, Document: doc, Summary: summary}, nil
}

// NextVersion is the version of a loaded BOM after an update. A missing or
// non-positive version restarts at 1 and the largest int is kept as is.
func NextVersion(current int) int {
	switch {
	case current <= 0:
		return 1
	case current == math.MaxInt:
		return current
	}
	return current + 1
}

// ParseAuthor reads "Name <email>", "Name" or "<email>" into an author record
func ParseAuthor(text string) (schema.Object, error) {
	text = strings.TrimSpace(text)
	name, email := text, ""
	if open := strings.LastIndex(text, "<"); open >= 0 && strings.HasSuffix(text, ">") {
		name = strings.TrimSpace(text[:open])
		email = strings.TrimSpace(text[open+1 : len(text)-1])
	}
	if name == "" && email == "" {
		return schema.Object{}, fmt.Errorf("invalid author %q - expected \"Name <email>\"", text)
	}

	var author schema.Object
	if name != "" {
		author.Set("name", schema.String(name))
	}
	if email != "" {
		author.Set("email", schema.String(email))
	}
	return author, nil
}
