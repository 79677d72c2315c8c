package admin

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/tealeg/xlsx"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/catalog"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{
	"ID", "Name", "Slug", "SKU", "Category", "Artisan", "Origin",
	"PriceMAD", "PriceEUR", "Stock", "LowStockThreshold", "Active", "Featured",
	"CreatedAt", "UpdatedAt",
}

// allProducts pages through the whole catalog, inactive products included.
func allProducts(ctx context.Context, products Products) ([]domain.Product, error) {
	var all []domain.Product
	page := httpx.Page{Page: 1, Limit: httpx.MaxLimit}
	for {
		batch, total, err := products.AdminListProducts(ctx, catalog.ProductFilter{}, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			return all, nil
		}
		page.Page++
	}
}

func buildWorkbook(products []domain.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}

		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Slug)
		row.AddCell().SetValue(p.SKU)
		row.AddCell().SetValue(category)
		row.AddCell().SetValue(p.Artisan)
		row.AddCell().SetValue(p.Origin)
		row.AddCell().SetValue(p.PriceMAD.InexactFloat64())
		row.AddCell().SetValue(p.PriceEUR.InexactFloat64())
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.LowStockThreshold)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetBool(p.IsFeatured)
		row.AddCell().SetValue(p.CreatedAt.Format(exportTimeLayout))
		row.AddCell().SetValue(p.UpdatedAt.Format(exportTimeLayout))
	}
	return file, nil
}

func (h *Handler) HandleExportProducts(w http.ResponseWriter, r *http.Request) {
	products, err := allProducts(r.Context(), h.products)
	if err != nil {
		h.logger.Error("failed to load products for export", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	file, err := buildWorkbook(products)
	if err != nil {
		h.logger.Error("failed to build workbook", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		h.logger.Error("failed to write workbook", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	h.logger.Info("products exported", "count", len(products))
}
