package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username      string    `gorm:"unique;not null"           json:"username"`
	Email         string    `gorm:"index"                     json:"email"`
	PasswordHash  string    `gorm:"not null"                  json:"-"`
	Role          string    `gorm:"not null;default:user"     json:"role"`
	WalletBalance float64   `gorm:"not null;default:0"        json:"wallet_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

const (
	StockUnlimited = "unlimited"
	StockLimited   = "limited"
	StockCodes     = "codes"
)

type Product struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string           `gorm:"not null"                 json:"name"`
	Description string           `json:"description"`
	Active      bool             `gorm:"not null;default:true"    json:"active"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductVariant struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"       json:"id"`
	ProductID  uint    `gorm:"index;not null"                 json:"product_id"`
	Name       string  `gorm:"not null"                       json:"name"`
	Price      float64 `gorm:"not null;check:price >= 0"      json:"price"`
	StockType  string  `gorm:"not null;default:unlimited"     json:"stock_type"`
	StockCount uint    `json:"stock_count"`
}

// InventoryCode is a single-use code attached to a variant. It is either
// delivered as the purchased good itself or, when DiscountAmount is set,
// redeemed once as a gift discount at checkout.
type InventoryCode struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID      uint       `gorm:"index"                    json:"variant_id"`
	Code           string     `gorm:"uniqueIndex;not null"     json:"code"`
	DiscountAmount float64    `json:"discount_amount"`
	IsUsed         bool       `gorm:"not null;default:false"   json:"is_used"`
	OrderID        *uint      `gorm:"index"                    json:"order_id,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// PromoCode is a reusable discount rule. Code is stored uppercase.
// UsageLimit = 0 means unlimited.
type PromoCode struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string     `gorm:"uniqueIndex;not null"     json:"code"`
	DiscountType      string     `gorm:"not null"                 json:"discount_type"`
	DiscountValue     float64    `gorm:"not null"                 json:"discount_value"`
	MinOrderAmount    float64    `json:"min_order_amount"`
	MaxDiscountAmount float64    `json:"max_discount_amount"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	UsageLimit        uint       `json:"usage_limit"`
	UsageCount        uint       `json:"usage_count"`
	Active            bool       `gorm:"not null;default:true"    json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                  json:"id"`
	UserID    uint `gorm:"index;not null"              json:"user_id"`
	VariantID uint `gorm:"not null"                    json:"variant_id"`
	Quantity  uint `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"

	PaymentMethodWallet       = "wallet"
	PaymentMethodEsewa        = "esewa"
	PaymentMethodBankTransfer = "bank_transfer"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"

	ItemStatusPending   = "pending"
	ItemStatusDelivered = "delivered"
)

type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Number          string      `gorm:"uniqueIndex;not null"     json:"number"`
	UserID          uint        `gorm:"index;not null"           json:"user_id"`
	TotalAmount     float64     `gorm:"not null"                 json:"total_amount"`
	DiscountAmount  float64     `json:"discount_amount"`
	FinalAmount     float64     `gorm:"not null"                 json:"final_amount"`
	DiscountCode    string      `json:"discount_code,omitempty"`
	Status          string      `gorm:"not null"                 json:"status"`
	PaymentMethod   string      `gorm:"not null"                 json:"payment_method"`
	PaymentStatus   string      `gorm:"not null"                 json:"payment_status"`
	PaymentProofURL string      `json:"payment_proof_url,omitempty"`
	AdminNotes      string      `json:"admin_notes,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint    `gorm:"index;not null"           json:"order_id"`
	VariantID   uint    `gorm:"not null"                 json:"variant_id"`
	ProductName string  `json:"product_name"`
	VariantName string  `json:"variant_name"`
	Quantity    uint    `gorm:"not null"                 json:"quantity"`
	UnitPrice   float64 `gorm:"not null"                 json:"unit_price"`
	LineTotal   float64 `gorm:"not null"                 json:"line_total"`
	Status      string  `gorm:"not null;default:pending" json:"status"`
	// CodeValue carries the delivered inventory codes for code-pool
	// variants, one per purchased unit, newline separated.
	CodeValue string `json:"code_value,omitempty"`
}

const (
	TxnCredit = "credit"
	TxnDebit  = "debit"

	TxnTypeTopup    = "topup"
	TxnTypePurchase = "purchase"
	TxnTypeRefund   = "refund"

	TxnStatusPending   = "pending"
	TxnStatusCompleted = "completed"
)

// WalletTransaction rows are append-only; only Status and BalanceAfter
// change, once, when a pending top-up entry is finalized.
type WalletTransaction struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint      `gorm:"index;not null"           json:"user_id"`
	Amount          float64   `gorm:"not null"                 json:"amount"`
	Type            string    `gorm:"not null"                 json:"type"`
	TransactionType string    `gorm:"not null"                 json:"transaction_type"`
	ReferenceID     uint      `gorm:"index"                    json:"reference_id"`
	Description     string    `json:"description"`
	BalanceAfter    float64   `json:"balance_after"`
	Status          string    `gorm:"not null"                 json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	TopupStatusPending  = "pending"
	TopupStatusApproved = "approved"
	TopupStatusRejected = "rejected"
)

type TopupRequest struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint      `gorm:"index;not null"           json:"user_id"`
	Amount        float64   `gorm:"not null"                 json:"amount"`
	PaymentMethod string    `gorm:"not null"                 json:"payment_method"`
	ProofURL      string    `json:"proof_url,omitempty"`
	Status        string    `gorm:"not null;default:pending" json:"status"`
	AdminNotes    string    `json:"admin_notes,omitempty"`
	ResolvedBy    *uint     `json:"resolved_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
