package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Client is a back-office contact record. The payment core only consumes it
// through upsert-by-email and lookup.
type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ClientID  string    `bun:"client_id,pk" json:"client_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Phone     string    `bun:"phone,nullzero" json:"phone,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Package is a priced service bundle. Orders snapshot it at finalization.
type Package struct {
	bun.BaseModel `bun:"table:packages"`

	PackageID   string    `bun:"package_id,pk" json:"package_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       float64   `bun:"price,notnull" json:"price"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ActivityLog is an audit row written alongside every state-changing payment
// operation, in the same transaction.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs"`

	ID        string    `bun:"id,pk" json:"id"`
	OrderID   string    `bun:"order_id,nullzero" json:"order_id,omitempty"`
	ActorID   string    `bun:"actor_id,nullzero" json:"actor_id,omitempty"`
	Action    string    `bun:"action,notnull" json:"action"`
	Detail    string    `bun:"detail,nullzero" json:"detail,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
