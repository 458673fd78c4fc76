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

package ledger

import (
	"math/big"
)

// Metadata value and key types of a TokenMetadata node
const (
	MetadataTypeString     = "string"
	MetadataTypeByteString = "bytestring"
	MetadataTypeInteger    = "integer"
	MetadataTypeArray      = "array"
	MetadataTypeMap        = "map"
)

// NativeAssetAmount is a quantity of one native asset held by an output
type NativeAssetAmount struct {
	Policy string
	Name   string
	Amount *big.Int
}

// CreatedUtxo is an output produced by a transaction. Its identity is
// (TxID, Index).
type CreatedUtxo struct {
	Address      string
	AddressType  string
	StakeAddress string
	TxID         string
	Index        uint32
	Lovelace     *big.Int
	DatumHash    string
	Datum        string
	ScriptRef    string
	PaymentCred  string
	StakeCred    string
	NativeAssets []NativeAssetAmount
	Cbor         []byte
}

// SpentUtxo references an output consumed by TxSpent
type SpentUtxo struct {
	TxSpent string
	TxID    string
	Index   uint32
}

// StakeRegistration identity is (Slot, TxIndex, CertIndex)
type StakeRegistration struct {
	StakeAddress string
	Slot         uint64
	TxIndex      int
	CertIndex    int
}

type StakeDelegation struct {
	Height       uint64
	StakeAddress string
	PoolID       string
	Epoch        uint64
}

// NativeAsset is a mint or burn of a native asset within a block
type NativeAsset struct {
	Policy string
	Name   string
	Amount *big.Int
	TxID   string
}

// KnownAsset is an entry of the minted asset catalog
type KnownAsset struct {
	ID     uint
	Policy string
	Name   string
}

// TokenMetadata is one node of an asset's metadata tree. Only string,
// bytestring and integer nodes carry a value. Array and map nodes carry an
// empty value and own their children.
type TokenMetadata struct {
	AssetID   uint
	KeyType   string
	Key       string
	ValueType string
	Value     string
	NestLevel int
	Children  []TokenMetadata
}

type RawTransaction struct {
	Height               uint64
	Slot                 uint64
	BlockSize            uint64
	BlockBodyHash        string
	ProtocolVersionMajor uint64
	ProtocolVersionMinor uint64
	TxID                 string
	Tx                   []byte
}

// ChainBlock is the chain record of a block, including the VRF material used
// to evolve the epoch nonce
type ChainBlock struct {
	Height               uint64
	Slot                 uint64
	Hash                 string
	PrevHash             string
	PoolID               string
	EtaV                 string
	NodeVkey             string
	NodeVrfVkey          string
	BlockVrf             string
	BlockVrfProof        string
	EtaVrf0              string
	EtaVrf1              string
	LeaderVrf0           string
	LeaderVrf1           string
	BlockSize            uint64
	BlockBodyHash        string
	PoolOpcert           string
	SequenceNumber       uint64
	KesPeriod            uint64
	SigmaSignature       string
	ProtocolMajorVersion uint64
	ProtocolMinorVersion uint64
}

type PaymentStakeAddress struct {
	ReceivingAddress string
	StakeAddress     string
}
