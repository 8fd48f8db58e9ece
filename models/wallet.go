package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

type WalletType string

const (
	WalletDindaPay WalletType = "DindaPay"
	WalletErwinPay WalletType = "ErwinPay"
	WalletRendiPay WalletType = "RendiPay"
)

// WalletTypes lists the recognized wallet types in lock order.
var WalletTypes = []WalletType{WalletDindaPay, WalletErwinPay, WalletRendiPay}

func (t WalletType) Valid() bool {
	for _, known := range WalletTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Wallet struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	WalletType WalletType      `db:"wallet_type" json:"wallet_type"`
	Balance    decimal.Decimal `db:"balance" json:"balance"`
	Created    types.DateTime  `db:"created" json:"created"`
	Updated    types.DateTime  `db:"updated" json:"updated"`
}

type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionSale    TransactionType = "sale"
	TransactionTopUp   TransactionType = "topup"
	TransactionReset   TransactionType = "reset"
)

// WalletTransaction is one ledger row. Every balance change writes exactly one.
type WalletTransaction struct {
	ID          string          `db:"id" json:"id"`
	WalletID    string          `db:"wallet_id" json:"wallet_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	WalletType  WalletType      `db:"wallet_type" json:"wallet_type"`
	Type        TransactionType `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Reference   string          `db:"reference" json:"reference,omitempty"`
	Description string          `db:"description" json:"description"`
	Created     types.DateTime  `db:"created" json:"created"`
}
