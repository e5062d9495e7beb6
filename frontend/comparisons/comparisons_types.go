package comparisons

type GeneratePayload struct {
	ReceiptID string `json:"receipt_id" validate:"required"`
}

type ReclassifyPayload struct {
	DifferenceType string `json:"difference_type" validate:"required,oneof=damage swap"`
	Reason         string `json:"reason" validate:"required,max=500"`
}

// ComparisonRow is one line of the comparison list page.
type ComparisonRow struct {
	ID         string
	PalletTag  string
	SKU        string
	QtyOrigin  int64
	QtyDest    int64
	Difference int64
	DiffType   string
	Reason     string
	Critical   bool
	CreatedAt  string
}

type PageData struct {
	ReceiptID string
	TypeFrom  string
	From      string
	To        string
	Message   string
	Rows      []ComparisonRow
	Stats     Stats
}
