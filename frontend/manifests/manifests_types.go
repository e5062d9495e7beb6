package manifests

import "palletrack/models"

type CreatePayload struct {
	OriginLocationID      string `json:"origin_location_id" validate:"required"`
	DestinationLocationID string `json:"destination_location_id" validate:"required"`
	DriverName            string `json:"driver_name" validate:"max=120"`
	VehiclePlate          string `json:"vehicle_plate" validate:"max=20"`
}

type AttachPayload struct {
	PalletID string `json:"pallet_id" validate:"required"`
}

// ManifestRow is one line of the manifest list page.
type ManifestRow struct {
	ID             string
	ManifestNumber string
	Route          string
	Driver         string
	Status         string
	PalletCount    int
	CreatedAt      string
}

type PageData struct {
	Filter  string
	Message string
	Rows    []ManifestRow
}

// PalletLine is one attached pallet on the detail page.
type PalletLine struct {
	ID       string
	TagCode  string
	Status   string
	LoadedAt string
}

type DetailData struct {
	Manifest models.Manifest
	Origin   string
	Dest     string
	Pallets  []PalletLine
}
