package services

import (
	"fmt"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// StockAnalyzer lists the committed stock of a target bucket
type StockAnalyzer struct{}

// NewStockAnalyzer creates a new stock analyzer
func NewStockAnalyzer() *StockAnalyzer {
	return &StockAnalyzer{}
}

// Analyze returns the bucket's stock snapshot, or ErrNoPlan when the bucket has no rows.
// Rows of the same item in one bucket are merged; the first row's lot size wins.
// Items with zero committed quantity count toward nothing and are not listed.
func (a *StockAnalyzer) Analyze(snapshot *entities.PlanSnapshot, bucket entities.BucketKey) (*entities.StockSnapshot, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("plan snapshot is required")
	}

	rows := snapshot.RowsFor(bucket)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrNoPlan, bucket)
	}

	stock := &entities.StockSnapshot{Bucket: bucket}
	index := make(map[entities.ItemName]int)
	for _, row := range rows {
		stock.Total += row.CommittedQty
		if row.CommittedQty <= 0 {
			continue
		}
		if i, exists := index[row.Item]; exists {
			stock.Items[i].CommittedQty += row.CommittedQty
			stock.Items[i].DemandQty += row.DemandQty
			continue
		}
		index[row.Item] = len(stock.Items)
		stock.Items = append(stock.Items, entities.StockItem{
			Item:         row.Item,
			DemandQty:    row.DemandQty,
			CommittedQty: row.CommittedQty,
			LotSize:      row.LotSize,
		})
	}

	return stock, nil
}
