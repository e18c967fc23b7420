// Package export renders aggregated market summaries as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bourskala/market-board/internal/model"
)

const sheetName = "خلاصه بازار"

// headers mirror the dashboard table columns.
var headers = []string{
	"گروه کالا",
	"حجم قرارداد (تن)",
	"حجم عرضه (تن)",
	"ارزش معامله (ریال)",
	"میانگین قیمت (ریال/تن)",
	"نسبت حجم معاملات به حجم عرضه (%)",
	"نسبت فی معامله به فی پایه (%)",
}

// WriteSummaries writes one sheet with a header row and one row per group
// summary, in the order given.
func WriteSummaries(w io.Writer, summaries []model.GroupSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for i, s := range summaries {
		row := i + 2
		values := []any{
			s.GroupName,
			s.TotalQuantity,
			s.TotalSupply,
			s.TotalValue,
			s.AveragePrice,
			s.VolumeToSupplyRatio,
			s.PriceToBaseRatio,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
