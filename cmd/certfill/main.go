// Command certfill writes a name over the placeholder of a certificate
// template.
//
//	certfill [flags] template.pdf Full Name > certificate.pdf
//	certfill -batch roster.csv -out-dir certs [-merge all.pdf] template.pdf
//
// The roster is CSV with one "first,last" or "first,middle,last" row per
// person; lines starting with # are ignored. Batch mode prints the per-entry
// results as JSON.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/pageops"
)

func init() {
	// never read or create a pdfcpu config directory
	model.ConfigPath = "disable"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	output   string
	maxFont  float64
	minFont  float64
	margin   float64
	fonts    string
	tokens   string
	validate bool
	batch    string
	outDir   string
	merge    string
	quiet    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	var o options
	fs := flag.NewFlagSet("certfill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.output, "o", "", "write the certificate to this file instead of stdout")
	fs.Float64Var(&o.maxFont, "max-font", 36, "largest font size in points")
	fs.Float64Var(&o.minFont, "min-font", 12, "smallest font size in points")
	fs.Float64Var(&o.margin, "margin", 0.1, "horizontal margin as a fraction of the page width")
	fs.StringVar(&o.fonts, "fonts", "", "comma-separated font candidates, e.g. times-bold,helvetica-bold")
	fs.StringVar(&o.tokens, "tokens", "", "comma-separated placeholder tokens")
	fs.BoolVar(&o.validate, "validate", false, "validate the generated PDF")
	fs.StringVar(&o.batch, "batch", "", "roster CSV; fill one certificate per row")
	fs.StringVar(&o.outDir, "out-dir", "", "batch output directory (default: the template's directory)")
	fs.StringVar(&o.merge, "merge", "", "batch: also merge the certificates into this file")
	fs.BoolVar(&o.quiet, "q", false, "do not log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: certfill [flags] template.pdf full name")
		fmt.Fprintln(stderr, "       certfill -batch roster.csv [flags] template.pdf")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs.Args(), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (o *options) editor(stderr io.Writer) (*certfill.Editor, error) {
	logger := log.New(stderr, "", log.LstdFlags)
	if o.quiet {
		logger = log.New(io.Discard, "", 0)
	}
	opts := []certfill.Option{
		certfill.WithLogger(logger),
		certfill.WithMaxFont(o.maxFont),
		certfill.WithMinFont(o.minFont),
		certfill.WithMargin(o.margin),
	}
	if fonts := splitList(o.fonts); len(fonts) > 0 {
		opts = append(opts, certfill.WithFonts(fonts...))
	}
	if tokens := splitList(o.tokens); len(tokens) > 0 {
		opts = append(opts, certfill.WithTokens(tokens...))
	}
	return certfill.New(opts...)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	fail := func(err error) int {
		fmt.Fprintf(stderr, "certfill: %v\n", err)
		return 1
	}

	ed, err := o.editor(stderr)
	if err != nil {
		return fail(err)
	}

	if o.batch != "" {
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: certfill -batch roster.csv [flags] template.pdf")
			return 2
		}
		return runBatch(ctx, ed, o, rest[0], stdout, stderr)
	}

	if len(rest) < 2 {
		fmt.Fprintln(stderr, "usage: certfill [flags] template.pdf full name")
		return 2
	}
	template, err := os.ReadFile(rest[0])
	if err != nil {
		return fail(err)
	}
	out, err := ed.Edit(template, certfill.FormatName(strings.Join(rest[1:], " "), ""))
	if err != nil {
		return fail(err)
	}
	if o.validate {
		if err := validate(out.PDF); err != nil {
			return fail(err)
		}
	}
	if o.output != "" {
		err = certfill.WriteFile(o.output, out.PDF)
	} else {
		_, err = stdout.Write(out.PDF)
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

// runBatch exits 0 when at least one certificate was written.
func runBatch(ctx context.Context, ed *certfill.Editor, o *options, templatePath string, stdout, stderr io.Writer) int {
	entries, err := readRoster(o.batch)
	if err != nil {
		fmt.Fprintf(stderr, "certfill: %v\n", err)
		return 1
	}

	results := ed.Batch(ctx, templatePath, entries, o.outDir)
	var written []string
	for i, r := range results {
		if !r.OK() {
			continue
		}
		if o.validate {
			if err := validateFile(r.Path); err != nil {
				results[i] = certfill.BatchResult{Name: r.Name, Status: certfill.StatusFailed, Path: r.Path, Error: err.Error()}
				continue
			}
		}
		written = append(written, r.Path)
	}

	if o.merge != "" && len(written) > 0 {
		if err := pageops.MergeFiles(o.merge, written...); err != nil {
			fmt.Fprintf(stderr, "certfill: merging: %v\n", err)
			return 1
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		fmt.Fprintf(stderr, "certfill: %v\n", err)
		return 1
	}
	if len(written) == 0 {
		return 1
	}
	return 0
}

// readRoster reads one name tuple per CSV row. Rows are passed through
// as-is so that malformed rows fail individually in the batch.
func readRoster(path string) ([]certfill.NameTuple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	entries := make([]certfill.NameTuple, len(records))
	for i, rec := range records {
		entries[i] = certfill.NameTuple(rec)
	}
	return entries, nil
}

func validationConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func validate(data []byte) error {
	if err := api.Validate(bytes.NewReader(data), validationConf()); err != nil {
		return fmt.Errorf("validating output: %w", err)
	}
	return nil
}

func validateFile(path string) error {
	if err := api.ValidateFile(path, validationConf()); err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}
	return nil
}
