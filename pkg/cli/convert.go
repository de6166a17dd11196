package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/bome/internal/merge"
	"github.com/yorozuya-cybersecurity/bome/internal/pipeline"
	"github.com/yorozuya-cybersecurity/bome/internal/sbom"
	"github.com/yorozuya-cybersecurity/bome/internal/scanners"
)

// bindConvertFlags makes the conversion the root command's own action
func bindConvertFlags(cmd *cobra.Command, v *viper.Viper, logger *slog.Logger) {
	cmd.Flags().String("snyk-test", "", "The location of the json to convert from snyk test --json")
	cmd.Flags().String("update-bome", "", "The location of the bome, if you want to update it rather than start from scratch")
	cmd.Flags().String("output-file", pipeline.DefaultOutputFile, "The location of the file to save the output")
	cmd.Flags().String("type", string(sbom.FormatCycloneDX), "SBOM type: "+strings.Join(sbom.Formats(), ", "))
	cmd.Flags().String("save-bome", "", "Also write the merged bome here (.json, .yaml or .yml) for the next --update-bome")
	cmd.Flags().String("metadata-precedence", string(merge.PreferExisting), "Which metadata wins on key collision: "+strings.Join(merge.Precedences(), ", "))
	cmd.Flags().StringArray("author", nil, "Author recorded in the SBOM metadata, as \"Name <email>\" (repeatable)")
	cmd.Flags().Bool("pretty", true, "Indent the output document")

	for _, name := range []string{"snyk-test", "update-bome", "output-file", "type", "save-bome", "metadata-precedence", "author", "pretty"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		opts := pipeline.Options{
			SnykTest:   v.GetString("snyk-test"),
			UpdateBOM:  v.GetString("update-bome"),
			OutputFile: v.GetString("output-file"),
			SaveBOM:    v.GetString("save-bome"),
			Format:     v.GetString("type"),
			Precedence: v.GetString("metadata-precedence"),
			Authors:    authors(v.Get("author")),
			Pretty:     v.GetBool("pretty"),
		}

		// reject bad --type and friends before any file is read
		if err := opts.Validate(); err != nil {
			return err
		}

		driver := pipeline.Driver{Provider: scanners.NewSnyk(), Logger: logger}
		_, err := driver.Run(opts)
		return err
	}
}

// authors reads the author setting from any source. A single string, as
// given by BOME_AUTHOR or a scalar config value, holds one author per line
// or per ';'.
func authors(raw any) []string {
	switch a := raw.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, part := range strings.FieldsFunc(a, func(r rune) bool { return r == ';' || r == '\n' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []string:
		return a
	case []any:
		out := make([]string, 0, len(a))
		for _, item := range a {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(a)}
	}
}
