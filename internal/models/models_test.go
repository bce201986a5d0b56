package models

import (
	"math/big"
	"testing"
)

func TestTransactionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  TransactionRecord
		wantErr bool
	}{
		{
			name:   "valid received",
			record: TransactionRecord{Timestamp: 100, Counterparty: "0xabc", Value: big.NewInt(5), Direction: Received},
		},
		{
			name:   "nil value is allowed",
			record: TransactionRecord{Timestamp: 100, Direction: Sent},
		},
		{
			name:    "negative value",
			record:  TransactionRecord{Timestamp: 100, Value: big.NewInt(-1), Direction: Sent},
			wantErr: true,
		},
		{
			name:    "negative timestamp",
			record:  TransactionRecord{Timestamp: -1, Direction: Sent},
			wantErr: true,
		},
		{
			name:    "unknown direction",
			record:  TransactionRecord{Timestamp: 100, Direction: "sideways"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TransactionRecord.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRiskScoreBand(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{0, "low"},
		{333, "low"},
		{334, "medium"},
		{666, "medium"},
		{667, "high"},
		{1000, "high"},
	}
	for _, tt := range tests {
		if got := (RiskScore{Value: tt.value}).Band(); got != tt.want {
			t.Errorf("Band(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestWalletResultScored(t *testing.T) {
	if !(WalletResult{Status: StatusScored}).Scored() {
		t.Error("expected scored result to report Scored()")
	}
	if (WalletResult{Status: StatusNoData}).Scored() {
		t.Error("expected no_data result not to report Scored()")
	}
}
