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

// ChainBlock is the chain record of a followed block. Partition "" only.
type ChainBlock struct {
	Hash                 string `gorm:"index;size:64"`
	PrevHash             string `gorm:"size:64"`
	PoolID               string `gorm:"index;size:56"`
	EtaV                 string `gorm:"size:64"`
	NodeVkey             string
	NodeVrfVkey          string
	BlockVrf             string
	BlockVrfProof        string
	EtaVrf0              string
	EtaVrf1              string
	LeaderVrf0           string
	LeaderVrf1           string
	BlockBodyHash        string `gorm:"size:64"`
	PoolOpcert           string
	SigmaSignature       string
	ID                   uint   `gorm:"primaryKey"`
	Height               uint64 `gorm:"uniqueIndex"`
	Slot                 uint64 `gorm:"index"`
	BlockSize            uint64
	SequenceNumber       uint64
	KesPeriod            uint64
	ProtocolMajorVersion uint64
	ProtocolMinorVersion uint64
}

func (ChainBlock) TableName() string {
	return "chain_block"
}

// MonitoredAddressChain is the sync cursor of a monitored address. A single
// row with slot -1 marks an address whose daemon follows the committed feed.
type MonitoredAddressChain struct {
	Address string `gorm:"index:idx_monitored_address_height,priority:1;size:128"`
	Hash    string `gorm:"size:64"`
	ID      uint   `gorm:"primaryKey"`
	Height  uint64 `gorm:"index:idx_monitored_address_height,priority:2"`
	Slot    int64
}

func (MonitoredAddressChain) TableName() string {
	return "monitored_address_chain"
}

// AtTip reports whether the row is the at-tip marker
func (m MonitoredAddressChain) AtTip() bool {
	return m.Slot < 0
}
