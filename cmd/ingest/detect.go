package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
)

// configFlags lets the user correct a detected or stored configuration
type configFlags struct {
	delimiter  string
	encoding   string
	dateFormat string
	skipLines  int
	noHeader   bool
	date       int
	desc       int
	amount     int
	debit      int
	credit     int
	positive   bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.delimiter, "delimiter", "", "field delimiter (one of ; , tab |)")
	fs.StringVar(&f.encoding, "encoding", "", "text encoding (utf-8, utf-16le, utf-16be, windows-1252, iso-8859-1, iso-8859-15)")
	fs.StringVar(&f.dateFormat, "date-format", "", "date format (DD/MM/YYYY, MM/DD/YYYY, YYYY-MM-DD, ...)")
	fs.IntVar(&f.skipLines, "skip-lines", 0, "preamble lines before the header")
	fs.BoolVar(&f.noHeader, "no-header", false, "the first data line is not a header")
	fs.IntVar(&f.date, "date-col", 0, "date column index")
	fs.IntVar(&f.desc, "desc-col", 0, "description column index")
	fs.IntVar(&f.amount, "amount-col", 0, "signed amount column index (single mode)")
	fs.IntVar(&f.debit, "debit-col", 0, "debit column index (debit/credit mode)")
	fs.IntVar(&f.credit, "credit-col", 0, "credit column index (debit/credit mode)")
	fs.BoolVar(&f.positive, "positive-expense", false, "expenses are positive in the amount column")
	cmd.MarkFlagsRequiredTogether("debit-col", "credit-col")
	cmd.MarkFlagsMutuallyExclusive("amount-col", "debit-col")
}

// apply overrides cfg with the flags the user set explicitly.
func (f *configFlags) apply(cmd *cobra.Command, cfg *model.SourceConfig) error {
	fs := cmd.Flags()
	if fs.Changed("delimiter") {
		d := f.delimiter
		if d == "tab" || d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return fmt.Errorf("delimiter must be a single character, got %q", f.delimiter)
		}
		cfg.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	if fs.Changed("encoding") {
		cfg.Encoding = f.encoding
	}
	if fs.Changed("date-format") {
		cfg.DateFormat = normalizer.DateFormat(f.dateFormat)
	}
	if fs.Changed("skip-lines") {
		cfg.SkipLines = f.skipLines
	}
	if fs.Changed("no-header") {
		cfg.HasHeader = !f.noHeader
	}
	if fs.Changed("date-col") {
		cfg.Mapping.Date = f.date
	}
	if fs.Changed("desc-col") {
		cfg.Mapping.Description = f.desc
	}
	if fs.Changed("amount-col") {
		cfg.AmountMode = model.AmountSingle
		cfg.Mapping.Amount = model.Index(f.amount)
		cfg.Mapping.DebitAmount, cfg.Mapping.CreditAmount = nil, nil
	}
	if fs.Changed("debit-col") {
		cfg.AmountMode = model.AmountDebitCredit
		cfg.Mapping.Amount = nil
		cfg.Mapping.DebitAmount = model.Index(f.debit)
		cfg.Mapping.CreditAmount = model.Index(f.credit)
	}
	if fs.Changed("positive-expense") {
		cfg.SignConvention = model.NegativeExpense
		if f.positive {
			cfg.SignConvention = model.PositiveExpense
		}
	}
	return cfg.Validate()
}

// offlineService analyzes and previews files without a database
func (a *app) offlineService() *importservice.ImportService {
	return importservice.NewImportService(importrepo.NewMemoryRepository(), a.logger)
}

func newDetectCommand(a *app) *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Detect the layout of a statement export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}

			analysis, err := a.offlineService().Analyze(cmd.Context(), inputs[0], encoding)
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "", "text encoding, detected when empty")
	return cmd
}

func newPreviewCommand(a *app) *cobra.Command {
	var (
		flags  configFlags
		limit  int
		out    string
		source string
	)

	cmd := &cobra.Command{
		Use:   "preview FILE...",
		Short: "Parse files with the detected configuration and show the rows",
		Long: `preview detects the configuration from the first file, applies any
override flags, then parses every file. Nothing is written to the database.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}

			svc := a.offlineService()
			analysis, err := svc.Analyze(cmd.Context(), inputs[0], "")
			if err != nil {
				return err
			}
			cfg := analysis.Config
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}

			preview, err := svc.Preview(cmd.Context(), source, cfg, inputs)
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), preview, limit)

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()
			return parser.WritePreview(f, preview.Rows, cfg.Delimiter)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to print, 0 for all")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write every parsed row to this CSV file")
	cmd.Flags().StringVar(&source, "source", "preview", "source name used in metrics and logs")
	return cmd
}
