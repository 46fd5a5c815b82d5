package entities

// StockItem is one item committed in the analyzed bucket
type StockItem struct {
	Item         ItemName `json:"item"`
	DemandQty    Quantity `json:"demand_qty"`
	CommittedQty Quantity `json:"committed_qty"`
	LotSize      Quantity `json:"lot_size"`
}

// StockSnapshot is the committed stock of one bucket at the start of a run
type StockSnapshot struct {
	Bucket BucketKey   `json:"bucket"`
	Total  Quantity    `json:"total"`
	Items  []StockItem `json:"items"`
}

// UnknownBufferDays is the buffer sentinel for items with no future demand
const UnknownBufferDays = 999

// ItemSlackProfile describes how much of an item's commitment can leave the target bucket
type ItemSlackProfile struct {
	Item                 ItemName `json:"item"`
	DemandQty            Quantity `json:"demand_qty"`
	CommittedQty         Quantity `json:"committed_qty"`
	LotSize              Quantity `json:"lot_size"`
	CumulativeDemand     Quantity `json:"cumulative_demand"`
	CumulativeCommitment Quantity `json:"cumulative_commitment"`
	FutureSlack          Quantity `json:"future_slack"`
	MaxMovable           Quantity `json:"max_movable"`
	LastDueDate          PlanDate `json:"last_due_date,omitempty"`
	BufferDays           int      `json:"buffer_days"`
	Movable              bool     `json:"movable"`
}

// HasKnownDueDate reports whether the item has any demand in the snapshot window
func (p ItemSlackProfile) HasKnownDueDate() bool {
	return p.LastDueDate != ""
}
