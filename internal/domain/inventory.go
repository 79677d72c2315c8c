package domain

type StockLevel struct {
	ProductID         string `json:"productId"`
	Name              string `json:"name"`
	Slug              string `json:"slug"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"lowStockThreshold"`
}

func (s StockLevel) IsLow() bool {
	return s.Stock <= s.LowStockThreshold
}
