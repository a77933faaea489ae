package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pressly/goose/v3"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/folder"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	importrepo "github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func delimiterName(d rune) string {
	if d == '\t' {
		return "tab"
	}
	return string(d)
}

func optionalIndex(i *int) string {
	if i == nil {
		return "-"
	}
	return strconv.Itoa(*i)
}

func printConfig(t table.Writer, cfg model.SourceConfig) {
	t.AppendRows([]table.Row{
		{"Delimiter", delimiterName(cfg.Delimiter)},
		{"Encoding", cfg.Encoding},
		{"Date format", cfg.DateFormat},
		{"Skip lines", cfg.SkipLines},
		{"Header", cfg.HasHeader},
		{"Amount mode", cfg.AmountMode},
		{"Sign convention", cfg.SignConvention},
		{"Date column", cfg.Mapping.Date},
		{"Description column", cfg.Mapping.Description},
		{"Amount column", optionalIndex(cfg.Mapping.Amount)},
		{"Debit column", optionalIndex(cfg.Mapping.DebitAmount)},
		{"Credit column", optionalIndex(cfg.Mapping.CreditAmount)},
	})
}

func printAnalysis(w io.Writer, a *importservice.Analysis) {
	if !a.Detected {
		fmt.Fprintln(w, text.FgYellow.Sprintf("Detection failed (%v); using the default configuration", a.DetectionError))
	}

	t := newTable(w)
	t.SetTitle("Configuration")
	printConfig(t, a.Config)
	if a.ColumnCount > 0 {
		t.AppendRow(table.Row{"Columns", a.ColumnCount})
	}
	t.Render()

	if len(a.SampleRows) == 0 {
		return
	}
	s := newTable(w)
	s.SetTitle("Sample")
	if len(a.Headers) > 0 {
		header := table.Row{}
		for _, h := range a.Headers {
			header = append(header, h)
		}
		s.AppendHeader(header)
	}
	for _, r := range a.SampleRows {
		row := table.Row{}
		for _, c := range r {
			row = append(row, c)
		}
		s.AppendRow(row)
	}
	s.Render()
}

func printPreview(w io.Writer, p *importservice.Preview, limit int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Date", "Description", "Amount", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 48},
		{Number: 4, Align: text.AlignRight},
	})

	for i, r := range p.Rows {
		if limit > 0 && i >= limit {
			break
		}
		if !r.OK() {
			t.AppendRow(table.Row{r.RowIndex, "", "", "", text.FgRed.Sprint(r.Error)})
			continue
		}
		t.AppendRow(table.Row{r.RowIndex, r.Value.Date, r.Value.Description, strconv.FormatFloat(r.Value.Amount, 'f', 2, 64), ""})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d rows, %d valid", len(p.Rows), p.ValidRows()), "", fmt.Sprintf("%d errors", p.ErrorCount)})
	t.Render()
}

func printDuplicates(w io.Writer, res *dedup.Result) {
	if res.FileAlreadyImported {
		fmt.Fprintln(w, text.FgYellow.Sprintf("This file was already imported (record %s)", res.ExistingFileID))
	}
	if len(res.Duplicates) == 0 {
		fmt.Fprintf(w, "%d new rows, no duplicates\n", len(res.NewRows))
		return
	}

	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%d duplicates, %d new rows", len(res.Duplicates), len(res.NewRows)))
	t.AppendHeader(table.Row{"#", "Date", "Description", "Amount", "Matches"})
	for _, d := range res.Duplicates {
		match := d.ExistingID.String()
		if d.InBatch {
			match = "earlier row of this batch"
		}
		t.AppendRow(table.Row{d.RowIndex, d.Date, d.Description, strconv.FormatFloat(d.Amount, 'f', 2, 64), match})
	}
	t.Render()
}

func printReport(w io.Writer, r *importservice.ImportReport, currency string) {
	status := r.Status
	switch r.Status {
	case importrepo.StatusCompleted:
		status = text.FgGreen.Sprint(status)
	case importrepo.StatusPartial:
		status = text.FgYellow.Sprint(status)
	default:
		status = text.FgRed.Sprint(status)
	}

	t := newTable(w)
	t.SetTitle("Import " + r.SourceName)
	t.AppendRows([]table.Row{
		{"Status", status},
		{"Total rows", r.TotalRows},
		{"Imported", r.ImportedCount},
		{"Skipped duplicates", r.SkippedDuplicates},
		{"Errors", r.ErrorCount},
		{"Categorized", r.CategorizedCount},
		{"Uncategorized", r.UncategorizedCount},
		{"Income", money.NewFromDecimal(r.Income, currency).Display()},
		{"Expenses", money.NewFromDecimal(r.Expenses, currency).Display()},
		{"Net", money.Sum(currency, r.Income, r.Expenses).Display()},
	})
	t.Render()

	if len(r.Errors) == 0 {
		return
	}
	e := newTable(w)
	e.AppendHeader(table.Row{"Row", "Error"})
	for _, re := range r.Errors {
		e.AppendRow(table.Row{re.RowIndex, re.Message})
	}
	e.Render()
}

func printFolders(w io.Writer, folders []folder.SourceFolder, known []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Folder", "Source", "File", "Size", "Modified"})
	for _, f := range folders {
		source := text.FgYellow.Sprint("new")
		if s, ok := folder.SuggestSource(f.Name, known); ok {
			source = s
		}
		if len(f.Files) == 0 {
			t.AppendRow(table.Row{f.Name, source, "-", "", ""})
		}
		for _, file := range f.Files {
			t.AppendRow(table.Row{f.Name, source, file.Name, file.Size, file.ModTime.Format("2006-01-02 15:04")})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}, {Number: 2, AutoMerge: true}})
	t.Render()
}

func printFolderResults(w io.Writer, results []importservice.FolderResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "File", "Result", "Imported", "Duplicates", "Errors"})
	for _, r := range results {
		switch {
		case r.Err != nil:
			t.AppendRow(table.Row{r.Source, r.File, text.FgRed.Sprint(r.Err.Error()), "", "", ""})
		case r.Skipped:
			t.AppendRow(table.Row{r.Source, r.File, "already imported", "", "", ""})
		default:
			t.AppendRow(table.Row{r.Source, r.File, r.Report.Status, r.Report.ImportedCount, r.Report.SkippedDuplicates, r.Report.ErrorCount})
		}
	}
	t.Render()
}

func printSources(w io.Writer, sources []importrepo.Source) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Delimiter", "Encoding", "Date format", "Amount mode", "Updated"})
	for _, s := range sources {
		t.AppendRow(table.Row{
			s.Name,
			delimiterName(s.Config.Delimiter),
			s.Config.Encoding,
			s.Config.DateFormat,
			s.Config.AmountMode,
			s.UpdatedAt.Format("2006-01-02"),
		})
	}
	t.Render()
}

func printArchive(w io.Writer, files []*storage.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintln(w, "no archived files")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Size", "Checksum", "Archived"})
	for _, f := range files {
		t.AppendRow(table.Row{f.ID, f.Name, f.Size, f.Checksum[:min(12, len(f.Checksum))], f.CreatedAt.Format("2006-01-02 15:04")})
	}
	t.Render()
}

func printMigrations(w io.Writer, statuses []*goose.MigrationStatus) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Version", "Migration", "State", "Applied"})
	for _, s := range statuses {
		applied := ""
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{s.Source.Version, filepath.Base(s.Source.Path), s.State, applied})
	}
	t.Render()
}

func printKeywordMatch(w io.Writer, description string, keywords []categorization.Keyword, r categorization.Result) {
	if !r.Matched() {
		fmt.Fprintf(w, "%q matches no keyword (%d active)\n", description, len(keywords))
		return
	}
	for _, k := range keywords {
		if k.ID == *r.KeywordID {
			fmt.Fprintf(w, "%q matches keyword %q (id %s, priority %d, category %s)\n", description, k.Text, k.ID, k.Priority, k.CategoryID)
			return
		}
	}
}
