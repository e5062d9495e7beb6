package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Pallet status vocabulary. Transitions are strictly forward; cancelled is
// reachable from draft and sealed only.
const (
	PalletDraft     = "draft"
	PalletSealed    = "sealed"
	PalletInTransit = "in_transit"
	PalletReceived  = "received"
	PalletFinalized = "finalized"
	PalletCancelled = "cancelled"
)

// Manifest status vocabulary.
const (
	ManifestDraft     = "draft"
	ManifestLoaded    = "loaded"
	ManifestInTransit = "in_transit"
	ManifestDelivered = "delivered"
)

// QR tag status vocabulary.
const (
	TagFree   = "free"
	TagLinked = "linked"
)

// Receipt status vocabulary, derived from reconciliation outcome.
const (
	ReceiptOK       = "ok"
	ReceiptWarning  = "warning"
	ReceiptCritical = "critical"
)

// Comparison difference types. Shortage and overage are auto-classified
// from the sign of the difference; damage and swap require human input.
const (
	DiffShortage = "shortage"
	DiffOverage  = "overage"
	DiffDamage   = "damage"
	DiffSwap     = "swap"
)

// User represents an authenticated app user.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,unique,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Session is used by middleware and auth handlers.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string         `bun:"id,pk"`
	UserID            int64          `bun:"user_id,notnull"`
	User              User           `bun:"rel:belongs-to,join:user_id=id"`
	UserRoles         []string       `bun:"-"`
	ScreenPermissions map[string]int `bun:"-"`
	ActiveContractID  *string        `bun:"active_contract_id"`
	ExpiresAt         time.Time      `bun:"expires_at,notnull"`
	CreatedAt         time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// Expired returns true when the session expiry time has passed.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Contract is the client engagement all pallets and manifests belong to.
type Contract struct {
	bun.BaseModel `bun:"table:contracts,alias:c"`

	ID         string    `bun:"id,pk"`
	Code       string    `bun:"code,unique,notnull"`
	Name       string    `bun:"name,notnull"`
	ClientName string    `bun:"client_name,notnull"`
	Status     string    `bun:"status,notnull,default:'active'"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Location is a warehouse site pallets move between.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	ID        string    `bun:"id,pk"`
	Code      string    `bun:"code,unique,notnull"`
	Name      string    `bun:"name,notnull"`
	Kind      string    `bun:"kind,notnull,default:'both'"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// StockItem is the SKU master per contract.
type StockItem struct {
	bun.BaseModel `bun:"table:stock_items,alias:si"`

	ID          string    `bun:"id,pk"`
	ContractID  string    `bun:"contract_id,notnull"`
	SKU         string    `bun:"sku,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// QrTag is a reusable physical label linked to at most one active pallet.
// LinkedPalletID is set iff Status is linked.
type QrTag struct {
	bun.BaseModel `bun:"table:qr_tags,alias:qt"`

	ID             string    `bun:"id,pk"`
	Code           string    `bun:"code,unique,notnull"`
	Status         string    `bun:"status,notnull,default:'free'"`
	LinkedPalletID *string   `bun:"linked_pallet_id"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Pallet tracks a physical unit of goods through its lifecycle.
type Pallet struct {
	bun.BaseModel `bun:"table:pallets,alias:p"`

	ID                    string     `bun:"id,pk"`
	QrTagID               string     `bun:"qr_tag_id,notnull"`
	ContractID            string     `bun:"contract_id,notnull"`
	OriginLocationID      string     `bun:"origin_location_id,notnull"`
	DestinationLocationID *string    `bun:"destination_location_id"`
	Status                string     `bun:"status,notnull,default:'draft'"`
	AIConfidence          *int64     `bun:"ai_confidence"`
	RequiresManualReview  bool       `bun:"requires_manual_review,notnull,default:false"`
	CreatedBy             int64      `bun:"created_by,notnull"`
	SealedAt              *time.Time `bun:"sealed_at"`
	FinalizedAt           *time.Time `bun:"finalized_at"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// PalletItem is one SKU line on a pallet with origin/destination counts.
type PalletItem struct {
	bun.BaseModel `bun:"table:pallet_items,alias:pi"`

	ID                  string    `bun:"id,pk"`
	PalletID            string    `bun:"pallet_id,notnull"`
	SkuID               string    `bun:"sku_id,notnull"`
	QuantityOrigin      int64     `bun:"quantity_origin,notnull,default:0"`
	QuantityDestination int64     `bun:"quantity_destination,notnull,default:0"`
	AISuggestedQuantity int64     `bun:"ai_suggested_quantity,notnull,default:0"`
	ManualCountOrigin   int64     `bun:"manual_count_origin,notnull,default:0"`
	ManualCountDest     int64     `bun:"manual_count_destination,notnull,default:0"`
	CreatedAt           time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt           time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Manifest groups pallets moving together between two locations.
type Manifest struct {
	bun.BaseModel `bun:"table:manifests,alias:m"`

	ID                    string     `bun:"id,pk"`
	ManifestNumber        string     `bun:"manifest_number,unique,notnull"`
	ContractID            string     `bun:"contract_id,notnull"`
	OriginLocationID      string     `bun:"origin_location_id,notnull"`
	DestinationLocationID string     `bun:"destination_location_id,notnull"`
	DriverName            string     `bun:"driver_name"`
	VehiclePlate          string     `bun:"vehicle_plate"`
	Status                string     `bun:"status,notnull,default:'draft'"`
	LoadedAt              *time.Time `bun:"loaded_at"`
	CreatedBy             int64      `bun:"created_by,notnull"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// ManifestPallet links a pallet onto a manifest.
type ManifestPallet struct {
	bun.BaseModel `bun:"table:manifest_pallets,alias:mp"`

	ManifestID string     `bun:"manifest_id,pk"`
	PalletID   string     `bun:"pallet_id,pk"`
	LoadedAt   *time.Time `bun:"loaded_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// Receipt records goods arriving at a destination. At least one of
// PalletID/ManifestID is present.
type Receipt struct {
	bun.BaseModel `bun:"table:receipts,alias:r"`

	ID           string    `bun:"id,pk"`
	PalletID     *string   `bun:"pallet_id"`
	ManifestID   *string   `bun:"manifest_id"`
	LocationID   string    `bun:"location_id,notnull"`
	ReceivedBy   int64     `bun:"received_by,notnull"`
	AIConfidence *int64    `bun:"ai_confidence"`
	Status       string    `bun:"status,notnull,default:'ok'"`
	Notes        string    `bun:"notes"`
	ReceivedAt   time.Time `bun:"received_at,notnull,default:current_timestamp"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Comparison is the discrepancy record for one SKU on one pallet, produced
// by reconciliation. Quantities and the difference are write-once;
// re-inspection creates new rows under a new receipt. Only the
// classification can later be refined to damage or swap.
type Comparison struct {
	bun.BaseModel `bun:"table:comparisons,alias:cmp"`

	ID                  string    `bun:"id,pk"`
	ReceiptID           string    `bun:"receipt_id,notnull"`
	PalletID            string    `bun:"pallet_id,notnull"`
	SkuID               string    `bun:"sku_id,notnull"`
	QuantityOrigin      int64     `bun:"quantity_origin,notnull"`
	QuantityDestination int64     `bun:"quantity_destination,notnull"`
	Difference          int64     `bun:"difference,notnull"`
	DifferenceType      *string   `bun:"difference_type"`
	Reason              string    `bun:"reason"`
	CreatedAt           time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     int64     `bun:"user_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
