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
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/plutigo/data"
)

// Cip68ReferencePrefix is the asset name label of a (100) reference token
const Cip68ReferencePrefix = "000643b0"

// Cip68UserPrefixes are the asset name labels of the user tokens paired with
// a reference token: (222) NFT, (333) FT and (444) RFT
var Cip68UserPrefixes = []string{
	"000de140",
	"0014df10",
	"001bc280",
}

var errUnsupportedPlutusData = errors.New("unsupported plutus data")

// AssetLookup resolves a catalog entry by policy and hex name
type AssetLookup func(policy string, name string) (KnownAsset, bool, error)

// CIP68Metadata returns the token metadata carried by the inline datums of
// reference token outputs. The trees are attached to the reference token and
// to its paired user tokens that are present in the catalog.
func (e *Extractor) CIP68Metadata(
	created []CreatedUtxo,
	lookup AssetLookup,
) ([]TokenMetadata, error) {
	var ret []TokenMetadata
	for _, utxo := range created {
		if utxo.Datum == "" || !hasCip68Reference(utxo) {
			continue
		}
		datum, err := hex.DecodeString(utxo.Datum)
		if err != nil {
			continue
		}
		md, ok := cip68DatumMetadata(datum)
		if !ok {
			e.logger.Debug(
				"ignoring reference token datum",
				"component", "ledger",
				"tx", utxo.TxID,
				"index", utxo.Index,
			)
			continue
		}
		for _, asset := range utxo.NativeAssets {
			if !strings.HasPrefix(asset.Name, Cip68ReferencePrefix) {
				continue
			}
			for _, name := range cip68AssetNames(asset.Name) {
				known, found, err := lookup(asset.Policy, name)
				if err != nil {
					return nil, fmt.Errorf("lookup asset: %w", err)
				}
				if !found {
					continue
				}
				for _, pair := range md.Map {
					node, ok := buildTokenMetadata(known.ID, pair.Key, pair.Value, 0)
					if ok {
						ret = append(ret, node)
					}
				}
			}
		}
	}
	return ret, nil
}

func hasCip68Reference(utxo CreatedUtxo) bool {
	for _, asset := range utxo.NativeAssets {
		if strings.HasPrefix(asset.Name, Cip68ReferencePrefix) {
			return true
		}
	}
	return false
}

// cip68AssetNames returns the reference asset name followed by the names of
// its paired user tokens
func cip68AssetNames(refName string) []string {
	body := strings.TrimPrefix(refName, Cip68ReferencePrefix)
	ret := []string{refName}
	for _, prefix := range Cip68UserPrefixes {
		ret = append(ret, prefix+body)
	}
	return ret
}

// cip68DatumMetadata returns the text keyed metadata map held in the first
// field of a constructor 0 datum
func cip68DatumMetadata(datum []byte) (Metadatum, bool) {
	if len(datum) == 0 {
		return Metadatum{}, false
	}
	pd, err := data.Decode(datum)
	if err != nil {
		return Metadatum{}, false
	}
	constr, ok := pd.(*data.Constr)
	if !ok || constr.Tag != 0 || len(constr.Fields) == 0 {
		return Metadatum{}, false
	}
	md, err := plutusDataToMetadatum(constr.Fields[0])
	if err != nil || md.Kind != MetadatumMap {
		return Metadatum{}, false
	}
	ret := Metadatum{Kind: MetadatumMap}
	for _, pair := range md.Map {
		if pair.Key.Kind == MetadatumText {
			ret.Map = append(ret.Map, pair)
		}
	}
	return ret, true
}

// plutusDataToMetadatum converts plutus data into a metadatum. Byte strings
// holding valid UTF-8 become text. Constructors are not representable and
// fail the conversion.
func plutusDataToMetadatum(pd data.PlutusData) (Metadatum, error) {
	switch v := pd.(type) {
	case *data.Integer:
		return MetaBigInt(v.Inner), nil
	case *data.ByteString:
		if isValidDbUTF8(v.Inner) {
			return MetaText(string(v.Inner)), nil
		}
		return MetaBytes(v.Inner), nil
	case *data.List:
		ret := Metadatum{Kind: MetadatumList, List: make([]Metadatum, 0, len(v.Items))}
		for _, item := range v.Items {
			tmp, err := plutusDataToMetadatum(item)
			if err != nil {
				return Metadatum{}, err
			}
			ret.List = append(ret.List, tmp)
		}
		return ret, nil
	case *data.Map:
		ret := Metadatum{Kind: MetadatumMap}
		for _, pair := range v.Pairs {
			key, err := plutusDataToMetadatum(pair[0])
			if err != nil {
				return Metadatum{}, err
			}
			value, err := plutusDataToMetadatum(pair[1])
			if err != nil {
				return Metadatum{}, err
			}
			ret.Map = append(ret.Map, MetaPair(key, value))
		}
		return ret, nil
	default:
		return Metadatum{}, fmt.Errorf("%w: %T", errUnsupportedPlutusData, pd)
	}
}
