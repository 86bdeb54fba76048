package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"merchpos/internal/domain"
)

const (
	summarySheet      = "Summary"
	transactionsSheet = "Transactions"
	productsSheet     = "Products"
)

type reportService struct {
	eventRepo      domain.EventRepository
	txRepo         domain.TransactionRepository
	contextTimeout time.Duration
}

func NewReportService(eventRepo domain.EventRepository, txRepo domain.TransactionRepository, timeout time.Duration) domain.ReportService {
	return &reportService{eventRepo: eventRepo, txRepo: txRepo, contextTimeout: timeout}
}

// WriteEventSalesReport writes an xlsx workbook with a summary, every transaction and per-product totals.
func (s *reportService) WriteEventSalesReport(ctx context.Context, eventID string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	txs, err := s.txRepo.ListAll(ctx, domain.TransactionFilter{EventID: eventID})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	sum := summarize(eventID, txs)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	summaryRows := [][]any{
		{"Event", event.Name},
		{"Status", event.Status},
		{"Start", formatDate(event.StartDate)},
		{"End", formatDate(event.EndDate)},
		{"Transactions", sum.TransactionCount},
		{"Items sold", sum.ItemsSold},
		{"Gross sales", sum.GrossSales.InexactFloat64()},
		{"Discounts", sum.Discounts.InexactFloat64()},
		{"Net sales", sum.NetSales.InexactFloat64()},
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return err
	}

	txRows := [][]any{{"ID", "Created at", "Cashier", "Payment method", "Items", "Subtotal", "Discount", "Total"}}
	for _, tx := range txs {
		units := 0
		for _, item := range tx.Items {
			units += item.Quantity
		}
		txRows = append(txRows, []any{
			tx.ID, tx.CreatedAt.Format(time.RFC3339), tx.Cashier, tx.PaymentMethod, units,
			tx.Subtotal.InexactFloat64(), tx.Discount.InexactFloat64(), tx.Total.InexactFloat64(),
		})
	}
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return err
	}
	if err := writeRows(f, transactionsSheet, txRows); err != nil {
		return err
	}

	productRows := [][]any{{"Product ID", "Name", "Quantity", "Revenue"}}
	for _, ps := range sum.ByProduct {
		productRows = append(productRows, []any{ps.ProductID, ps.Name, ps.Quantity, ps.Revenue.InexactFloat64()})
	}
	if _, err := f.NewSheet(productsSheet); err != nil {
		return err
	}
	if err := writeRows(f, productsSheet, productRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
