package receipts

type CreatePayload struct {
	PalletID     *string `json:"pallet_id" validate:"omitempty,min=1"`
	ManifestID   *string `json:"manifest_id" validate:"omitempty,min=1"`
	LocationID   string  `json:"location_id" validate:"required"`
	AIConfidence *int64  `json:"ai_confidence" validate:"omitempty,min=0,max=100"`
	Notes        string  `json:"notes" validate:"max=2000"`
}

// ReceiptRow is one line of the receipt list page.
type ReceiptRow struct {
	ID         string
	Subject    string
	Location   string
	Status     string
	ReceivedAt string
}

type PageData struct {
	Filter  string
	Message string
	Rows    []ReceiptRow
}
