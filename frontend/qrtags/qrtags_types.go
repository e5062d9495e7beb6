package qrtags

// BatchGeneratePayload is the JSON body for POST /depot/api/qrtags/batch.
type BatchGeneratePayload struct {
	Prefix string `json:"prefix" validate:"required,min=1,max=8"`
	Start  int    `json:"start" validate:"min=0"`
	Count  int    `json:"count" validate:"required,min=1,max=500"`
}

// TagRow feeds the tag list page.
type TagRow struct {
	ID           string
	Code         string
	Status       string
	LinkedPallet string
}

// PageData feeds the tag list page.
type PageData struct {
	FreeCount   int64
	LinkedCount int64
	Filter      string
	Message     string
	Rows        []TagRow
}
