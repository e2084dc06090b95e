package app

// RecordMovementRequest is the input for applying one stock movement.
// Kind is the user-facing code ("IN", "OUT", "ADJUSTMENT" or the long names).
type RecordMovementRequest struct {
	ItemID    int64
	Kind      string
	Quantity  int64
	Reference string
	Notes     string
	Actor     string
}

// RegisterItemRequest is the input for adding an item to the catalog.
// UnitPrice is a decimal string such as "12.50".
type RegisterItemRequest struct {
	Name             string
	UnitPrice        string
	ReorderThreshold *int64 // nil means the default threshold
	OpeningQuantity  int64
	Actor            string
}

// ListItemsRequest filters ListItems.
type ListItemsRequest struct {
	IncludeInactive bool
	LowStockOnly    bool
	Search          string
}
