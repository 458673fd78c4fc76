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

// Package ledger holds the era independent block model and the functions
// that derive ledger facts from it.
package ledger

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Era identifies a ledger era. The numbering follows the era IDs used on the
// wire.
type Era uint

const (
	EraByron Era = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

var eraNames = []string{
	"Byron",
	"Shelley",
	"Allegra",
	"Mary",
	"Alonzo",
	"Babbage",
	"Conway",
}

func (e Era) String() string {
	if int(e) < len(eraNames) {
		return eraNames[e]
	}
	return "Unknown"
}

// SupportsMetadataMinting reports whether token metadata can be attached to
// minted assets in this era
func (e Era) SupportsMetadataMinting() bool {
	return e >= EraMary
}

// HasCollateral reports whether failed script transactions consume their
// collateral inputs in this era
func (e Era) HasCollateral() bool {
	return e >= EraAlonzo
}

// InputSource identifies which input set a transaction consumes
type InputSource string

const (
	InputSourceInputs      InputSource = "inputs"
	InputSourceCollaterals InputSource = "collaterals"
)

type VrfResult struct {
	Output []byte
	Proof  []byte
}

type OpCert struct {
	HotVkey        []byte
	SequenceNumber uint64
	KesPeriod      uint64
	Signature      []byte
}

type ProtocolVersion struct {
	Major uint64
	Minor uint64
}

// Block is the canonical view of a block from any era. Fields that do not
// exist in the block's era are left at their zero value.
type Block struct {
	Era             Era
	Height          uint64
	Slot            uint64
	Hash            []byte
	PrevHash        []byte
	IssuerVkey      []byte
	VrfKey          []byte
	NonceVrf        VrfResult
	LeaderVrf       VrfResult
	BlockVrf        VrfResult
	OpCert          OpCert
	ProtocolVersion ProtocolVersion
	BodySize        uint64
	BodyHash        []byte
	Size            uint64
	Transactions    []Transaction
}

// HashHex returns the block hash as hex
func (b *Block) HashHex() string {
	return hex.EncodeToString(b.Hash)
}

type Input struct {
	TxID  string
	Index uint32
}

// AssetQuantity is a native asset amount keyed by its unit, the asset's
// policy and hex name joined by a dot
type AssetQuantity struct {
	Unit     string
	Quantity *big.Int
}

type Output struct {
	Address     string
	PaymentCred []byte
	StakeCred   []byte
	Lovelace    *big.Int
	Assets      []AssetQuantity
	DatumHash   []byte
	Datum       []byte
	ScriptRef   []byte
	Cbor        []byte
}

type CertificateKind int

const (
	CertOther CertificateKind = iota
	CertStakeRegistration
	CertStakeDelegation
	CertStakeRegistrationDelegation
)

type Certificate struct {
	Kind            CertificateKind
	StakeCredential []byte
	PoolKeyHash     []byte
}

type Transaction struct {
	ID           string
	Index        int
	Valid        bool
	InputSource  InputSource
	Inputs       []Input
	Collateral   []Input
	Outputs      []Output
	Certificates []Certificate
	Mint         []AssetQuantity
	Metadata     map[uint64]Metadatum
	Cbor         []byte
}

// AssetUnit joins a policy and an asset name into a unit key
func AssetUnit(policy string, name string) string {
	return policy + "." + name
}

// SplitAssetUnit splits a unit key on its first dot. A unit without a dot has
// an empty asset name.
func SplitAssetUnit(unit string) (string, string) {
	policy, name, _ := strings.Cut(unit, ".")
	return policy, name
}
