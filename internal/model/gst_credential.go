package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultNICURL is the NIC e-invoice sandbox portal.
const DefaultNICURL = "https://einv-apisandbox.nic.in"

// GSTCredential is the singleton tax-authority credential record. Secrets are stored encrypted.
type GSTCredential struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	GSTIN           string     `gorm:"type:varchar(15);not null" json:"gstin"`
	Username        string     `gorm:"type:varchar(100);not null" json:"username"`
	PasswordEnc     string     `gorm:"type:text;not null" json:"-"`
	ClientID        string     `gorm:"type:varchar(255);not null" json:"client_id"`
	ClientSecretEnc string     `gorm:"type:text;not null" json:"-"`
	NICURL          string     `gorm:"column:nic_url;type:varchar(255);not null" json:"nic_url"`
	IsSandbox       bool       `gorm:"not null" json:"is_sandbox"`
	UpdatedBy       *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
