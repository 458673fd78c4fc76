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
)

// MetadataLabelNFT is the transaction metadata label of CIP-25 token metadata
const MetadataLabelNFT uint64 = 721

// CIP25Metadata returns the token metadata trees attached to known assets
// through label 721 of the block's transactions. Entries that do not match a
// known asset are dropped.
func (e *Extractor) CIP25Metadata(
	block *Block,
	known []KnownAsset,
) []TokenMetadata {
	if !block.Era.SupportsMetadataMinting() || len(known) == 0 {
		return nil
	}
	var ret []TokenMetadata
	for _, tx := range block.Transactions {
		md, ok := tx.Metadata[MetadataLabelNFT]
		if !ok {
			continue
		}
		if md.Kind != MetadatumMap {
			e.logger.Debug(
				"ignoring non-map 721 metadata",
				"component", "ledger",
				"tx", tx.ID,
			)
			continue
		}
		ret = append(ret, extractAssetMetadata(md, known)...)
	}
	return ret
}

// extractAssetMetadata walks a {policy: {name: details}} map and builds a tree
// for every (policy, name) that matches a known asset
func extractAssetMetadata(md Metadatum, known []KnownAsset) []TokenMetadata {
	var ret []TokenMetadata
	for _, policyPair := range md.Map {
		policy, ok := metadatumKeyString(policyPair.Key)
		if !ok || policyPair.Value.Kind != MetadatumMap {
			continue
		}
		for _, namePair := range policyPair.Value.Map {
			name, ok := metadatumKeyString(namePair.Key)
			if !ok {
				continue
			}
			asset, ok := matchKnownAsset(known, policy, name)
			if !ok {
				continue
			}
			if namePair.Value.Kind != MetadatumMap {
				continue
			}
			for _, detail := range namePair.Value.Map {
				node, ok := buildTokenMetadata(asset.ID, detail.Key, detail.Value, 0)
				if !ok {
					continue
				}
				ret = append(ret, node)
			}
		}
	}
	return ret
}

// metadatumKeyString returns a policy or asset name key as a string. Byte
// string keys are rendered as hex.
func metadatumKeyString(m Metadatum) (string, bool) {
	switch m.Kind {
	case MetadatumText:
		return m.Text, true
	case MetadatumBytes:
		return hex.EncodeToString(m.Bytes), true
	default:
		return "", false
	}
}

// matchKnownAsset returns the first catalog entry with the given policy whose
// name equals either the name as given or its hex encoding
func matchKnownAsset(
	known []KnownAsset,
	policy string,
	name string,
) (KnownAsset, bool) {
	hexName := hex.EncodeToString([]byte(name))
	for _, asset := range known {
		if asset.Policy != policy {
			continue
		}
		if asset.Name == hexName || asset.Name == name {
			return asset, true
		}
	}
	return KnownAsset{}, false
}

// buildTokenMetadata builds the tree for one key/value pair. Keys that are
// lists or maps are invalid and drop the pair. Array elements inherit the key
// of the array.
func buildTokenMetadata(
	assetID uint,
	key Metadatum,
	value Metadatum,
	nestLevel int,
) (TokenMetadata, bool) {
	ret := TokenMetadata{
		AssetID:   assetID,
		NestLevel: nestLevel,
	}
	switch key.Kind {
	case MetadatumText:
		ret.Key, ret.KeyType = key.Text, MetadataTypeString
	case MetadatumBytes:
		ret.Key, ret.KeyType = hex.EncodeToString(key.Bytes), MetadataTypeByteString
	case MetadatumInt:
		ret.Key, ret.KeyType = key.Int.String(), MetadataTypeInteger
	default:
		return TokenMetadata{}, false
	}
	switch value.Kind {
	case MetadatumText:
		ret.Value, ret.ValueType = value.Text, MetadataTypeString
	case MetadatumBytes:
		ret.Value, ret.ValueType = hex.EncodeToString(value.Bytes), MetadataTypeByteString
	case MetadatumInt:
		ret.Value, ret.ValueType = value.Int.String(), MetadataTypeInteger
	case MetadatumList:
		ret.ValueType = MetadataTypeArray
		for _, item := range value.List {
			child, ok := buildTokenMetadata(assetID, key, item, nestLevel+1)
			if ok {
				ret.Children = append(ret.Children, child)
			}
		}
	case MetadatumMap:
		ret.ValueType = MetadataTypeMap
		for _, pair := range value.Map {
			child, ok := buildTokenMetadata(assetID, pair.Key, pair.Value, nestLevel+1)
			if ok {
				ret.Children = append(ret.Children, child)
			}
		}
	default:
		return TokenMetadata{}, false
	}
	return ret, true
}
