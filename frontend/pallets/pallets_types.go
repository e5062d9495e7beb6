package pallets

// CreatePayload is the JSON body for POST /depot/api/pallets.
type CreatePayload struct {
	TagCode               string  `json:"tag_code" validate:"required,min=1,max=32"`
	OriginLocationID      string  `json:"origin_location_id" validate:"required"`
	DestinationLocationID *string `json:"destination_location_id,omitempty"`
	AIConfidence          *int64  `json:"ai_confidence,omitempty" validate:"omitempty,min=0,max=100"`
}

// ItemPayload is the JSON body for POST /depot/api/pallets/{id}/items.
type ItemPayload struct {
	SkuID               string `json:"sku_id" validate:"required"`
	QuantityOrigin      int64  `json:"quantity_origin" validate:"min=0"`
	AISuggestedQuantity int64  `json:"ai_suggested_quantity" validate:"min=0"`
}

// CountPayload is the JSON body for the destination count endpoint.
type CountPayload struct {
	SkuID               string `json:"sku_id" validate:"required"`
	QuantityDestination int64  `json:"quantity_destination" validate:"min=0"`
}

// AnalyzePayload asks the vision collaborator to count items from photos.
type AnalyzePayload struct {
	ImageRefs []string `json:"image_refs" validate:"required,min=1,max=10"`
}

// PalletRow feeds the pallet list page.
type PalletRow struct {
	ID           string
	TagCode      string
	Status       string
	Origin       string
	Destination  string
	ManualReview bool
	CreatedAt    string
}

// PageData feeds the pallet list page.
type PageData struct {
	ContractName string
	Filter       string
	Message      string
	Rows         []PalletRow
}

// ItemRow feeds the pallet detail page.
type ItemRow struct {
	SKU         string
	Description string
	QtyOrigin   int64
	QtyDest     int64
	AISuggested int64
}

// DetailData feeds the pallet detail page.
type DetailData struct {
	ID           string
	TagCode      string
	Status       string
	Origin       string
	Destination  string
	AIConfidence *int64
	ManualReview bool
	Items        []ItemRow
}
