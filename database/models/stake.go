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

// StakeRegistration identity is (Slot, TxIndex, CertIndex)
type StakeRegistration struct {
	StakeAddress string `gorm:"index;size:64"`
	ID           uint   `gorm:"primaryKey"`
	Height       uint64 `gorm:"index"`
	Slot         uint64 `gorm:"uniqueIndex:idx_stake_registration_pointer"`
	TxIndex      int    `gorm:"uniqueIndex:idx_stake_registration_pointer"`
	CertIndex    int    `gorm:"uniqueIndex:idx_stake_registration_pointer"`
}

func (StakeRegistration) TableName() string {
	return "stake_registration"
}

type StakeDelegation struct {
	StakeAddress string `gorm:"index;size:64"`
	PoolID       string `gorm:"index;size:64"`
	ID           uint   `gorm:"primaryKey"`
	Height       uint64 `gorm:"index"`
	Epoch        uint64
}

func (StakeDelegation) TableName() string {
	return "stake_delegation"
}
