// Package models defines the core domain entities: transactions, wallet features, and risk scores.
package models

import (
	"errors"
	"math/big"
)

// Direction is the side of a transfer as seen from the scored wallet.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// TransactionRecord is one on-chain transfer involving the scored wallet.
// Records are assumed final; there is no reorg handling.
type TransactionRecord struct {
	Hash         string    `json:"hash"`
	BlockNumber  int64     `json:"block_number"`
	Timestamp    int64     `json:"timestamp"`    // Unix seconds
	Counterparty string    `json:"counterparty"` // lower-case hex address
	Value        *big.Int  `json:"value"`        // wei
	Direction    Direction `json:"direction"`
}

// Validate checks record field constraints.
func (t *TransactionRecord) Validate() error {
	if t.Timestamp < 0 {
		return errors.New("timestamp must not be negative")
	}
	if t.Value != nil && t.Value.Sign() < 0 {
		return errors.New("value must not be negative")
	}
	if t.Direction != Sent && t.Direction != Received {
		return errors.New("direction must be sent or received")
	}
	return nil
}

// WalletHistory is the fetch outcome for one address. Err is set when the
// history could not be retrieved; Transactions is then meaningless.
type WalletHistory struct {
	Address      string
	Transactions []TransactionRecord
	Err          error
}
