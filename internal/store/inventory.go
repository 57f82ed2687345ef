package store

import (
	"context"
	"database/sql"
	"fmt"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/util"
)

type lotRow struct {
	Code     string       `db:"product_code"`
	Expiry   sql.NullTime `db:"expiry_date"`
	Quantity int          `db:"quantity"`
	Location string       `db:"location"`
	Note     string       `db:"note"`
}

func (r lotRow) toModel() models.StockLot {
	lot := models.StockLot{
		Code:      r.Code,
		Remaining: r.Quantity,
		Location:  r.Location,
		Note:      r.Note,
	}
	if r.Expiry.Valid {
		lot.Expiry = r.Expiry.Time
	}
	return lot
}

const lotColumns = `product_code, expiry_date, quantity, COALESCE(location, '') AS location, COALESCE(note, '') AS note`

// ListStockLots returns every lot with stock on hand, oldest expiry first
func (s *Store) ListStockLots(ctx context.Context) ([]models.StockLot, error) {
	ctx, span := util.StartSpan(ctx, "Store.ListStockLots")
	defer span.End()

	var rows []lotRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+lotColumns+" FROM stock_lots WHERE quantity > 0 ORDER BY product_code, expiry_date NULLS LAST, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list stock lots: %w", err)
	}
	return toLots(rows), nil
}

func toLots(rows []lotRow) []models.StockLot {
	lots := make([]models.StockLot, len(rows))
	for i, r := range rows {
		lots[i] = r.toModel()
	}
	return lots
}

// ListProductCodes returns the codes of every active product
func (s *Store) ListProductCodes(ctx context.Context) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "Store.ListProductCodes")
	defer span.End()

	var codes []string
	err := s.db.SelectContext(ctx, &codes,
		"SELECT product_code FROM products WHERE active ORDER BY product_code")
	if err != nil {
		return nil, fmt.Errorf("failed to list product codes: %w", err)
	}
	return codes, nil
}
