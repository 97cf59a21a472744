// Package export renders group statements as CSV and XLSX documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/models"
)

const dateLayout = "2006-01-02 15:04:05"

const (
	sheetExpenses   = "Expenses"
	sheetBalances   = "Balances"
	sheetSettlement = "Settlement"
	sheetStatistics = "Statistics"
)

// GroupStatementCSV renders a group's expenses as CSV, one column per member
// holding that member's share.
func GroupStatementCSV(g *models.Group) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(expenseHeader(g)); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range g.Expenses {
		row := expenseRow(g, &g.Expenses[i])
		record := make([]string, len(row))
		for j, v := range row {
			switch v := v.(type) {
			case decimal.Decimal:
				record[j] = v.StringFixed(2)
			case string:
				record[j] = v
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// GroupStatementXLSX renders a workbook with the group's expenses, member
// balances, the given transactions and spending statistics.
func GroupStatementXLSX(g *models.Group, txs []models.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetExpenses); err != nil {
		return nil, fmt.Errorf("failed to create expenses sheet: %w", err)
	}
	for _, name := range []string{sheetBalances, sheetSettlement, sheetStatistics} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create %s sheet: %w", strings.ToLower(name), err)
		}
	}

	w := &sheetWriter{f: f}
	if err := w.init(); err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(g.Expenses))
	for i := range g.Expenses {
		rows = append(rows, expenseRow(g, &g.Expenses[i]))
	}
	if err := w.table(sheetExpenses, toAny(expenseHeader(g)), rows); err != nil {
		return nil, err
	}
	if err := w.table(sheetBalances, []any{"Member", "Paid", "Share", "Balance"}, balanceRows(g)); err != nil {
		return nil, err
	}
	if err := w.table(sheetSettlement,
		[]any{"Date", "From", "To", "Amount", "Kind", "Status", "Description"},
		settlementRows(g, txs)); err != nil {
		return nil, err
	}
	if err := w.table(sheetStatistics, []any{"Breakdown", "Key", "Total"}, statisticsRows(ledger.ComputeStats(g))); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns a file name for a statement of the group named name.
func Filename(name, ext string, at time.Time) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "group"
	}
	return fmt.Sprintf("%s_statement_%s.%s", clean, at.Format("2006-01-02"), ext)
}

func expenseHeader(g *models.Group) []string {
	header := []string{"Date", "Description", "Category", "Paid By", "Amount", "Currency", "Split"}
	for _, m := range g.Members {
		header = append(header, m.Name)
	}
	return header
}

func expenseRow(g *models.Group, e *models.Expense) []any {
	row := []any{
		e.Date.Format(dateLayout),
		e.Description,
		string(e.Category),
		memberName(g, e.PayerID),
		e.Amount,
		g.Currency,
		string(e.SplitMode),
	}
	for _, m := range g.Members {
		if share, ok := e.Shares[m.ID]; ok {
			row = append(row, share)
		} else {
			row = append(row, "")
		}
	}
	return row
}

func balanceRows(g *models.Group) [][]any {
	paid := make(map[string]decimal.Decimal, len(g.Members))
	owed := make(map[string]decimal.Decimal, len(g.Members))
	for _, e := range g.Expenses {
		paid[e.PayerID] = paid[e.PayerID].Add(e.Amount)
		for id, share := range e.Shares {
			owed[id] = owed[id].Add(share)
		}
	}

	rows := make([][]any, 0, len(g.Members))
	for _, m := range g.Members {
		rows = append(rows, []any{m.Name, paid[m.ID], owed[m.ID], m.Balance})
	}
	return rows
}

func settlementRows(g *models.Group, txs []models.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []any{
			t.CreatedAt.Format(dateLayout),
			memberName(g, t.FromMemberID),
			memberName(g, t.ToMemberID),
			t.Amount,
			string(t.Kind),
			string(t.Status),
			t.Description,
		})
	}
	return rows
}

func statisticsRows(stats ledger.Stats) [][]any {
	rows := make([][]any, 0, len(stats.Categories)+len(stats.Months)+1)
	for _, c := range stats.Categories {
		rows = append(rows, []any{"category", string(c.Category), c.Total})
	}
	for _, m := range stats.Months {
		rows = append(rows, []any{"month", m.Month, m.Total})
	}
	return append(rows, []any{"total", "", stats.Total})
}

func memberName(g *models.Group, id string) string {
	if i := g.MemberIndex(id); i >= 0 {
		return g.Members[i].Name
	}
	return id
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

type sheetWriter struct {
	f           *excelize.File
	headerStyle int
	amountStyle int
}

func (w *sheetWriter) init() error {
	var err error
	w.headerStyle, err = w.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	w.amountStyle, err = w.f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	return nil
}

// table writes header and rows starting at A1. Decimal values are stored as
// numbers with two decimals.
func (w *sheetWriter) table(sheet string, header []any, rows [][]any) error {
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, w.headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to write %s row: %w", sheet, err)
			}
			if d, ok := v.(decimal.Decimal); ok {
				if err := w.f.SetCellFloat(sheet, cell, d.InexactFloat64(), 2, 64); err != nil {
					return fmt.Errorf("failed to write %s row: %w", sheet, err)
				}
				if err := w.f.SetCellStyle(sheet, cell, cell, w.amountStyle); err != nil {
					return fmt.Errorf("failed to style %s row: %w", sheet, err)
				}
				continue
			}
			if err := w.f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s row: %w", sheet, err)
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	if err := w.f.SetColWidth(sheet, "A", lastCol, 15); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	return nil
}
