// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

// RawTransaction is an archived transaction. Tx is empty when the bytes are
// kept in the blob store.
type RawTransaction struct {
	TxId                 string `gorm:"uniqueIndex;size:64"`
	BlockBodyHash        string `gorm:"size:64"`
	Tx                   []byte
	ID                   uint   `gorm:"primaryKey"`
	Height               uint64 `gorm:"index"`
	Slot                 uint64
	BlockSize            uint64
	ProtocolVersionMajor uint64
	ProtocolVersionMinor uint64
}

func (RawTransaction) TableName() string {
	return "raw_transaction"
}

// PaymentStakeAddress pairs a receiving address with its stake address
type PaymentStakeAddress struct {
	ReceivingAddress string `gorm:"uniqueIndex;size:128"`
	StakeAddress     string `gorm:"index;size:64"`
	ID               uint   `gorm:"primaryKey"`
	Height           uint64 `gorm:"index"`
}

func (PaymentStakeAddress) TableName() string {
	return "payment_stake_address"
}

// AddressTxLog is a transaction touching a monitored address
type AddressTxLog struct {
	Address string `gorm:"uniqueIndex:idx_address_tx_log;size:128"`
	TxId    string `gorm:"uniqueIndex:idx_address_tx_log;size:64"`
	Cbor    []byte
	ID      uint   `gorm:"primaryKey"`
	Height  uint64 `gorm:"index"`
	Slot    uint64
}

func (AddressTxLog) TableName() string {
	return "address_tx_log"
}
