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
	"errors"
	"fmt"
	"math/big"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

type MetadatumKind int

const (
	MetadatumInt MetadatumKind = iota
	MetadatumText
	MetadatumBytes
	MetadatumList
	MetadatumMap
)

// Metadatum is a node of a structured transaction metadata value. Map pairs
// keep their on-chain order.
type Metadatum struct {
	Kind  MetadatumKind
	Int   *big.Int
	Text  string
	Bytes []byte
	List  []Metadatum
	Map   []MetadatumPair
}

type MetadatumPair struct {
	Key   Metadatum
	Value Metadatum
}

func MetaText(v string) Metadatum {
	return Metadatum{Kind: MetadatumText, Text: v}
}

func MetaBytes(v []byte) Metadatum {
	return Metadatum{Kind: MetadatumBytes, Bytes: v}
}

func MetaInt(v int64) Metadatum {
	return Metadatum{Kind: MetadatumInt, Int: big.NewInt(v)}
}

func MetaBigInt(v *big.Int) Metadatum {
	if v == nil {
		v = new(big.Int)
	}
	return Metadatum{Kind: MetadatumInt, Int: v}
}

func MetaList(items ...Metadatum) Metadatum {
	return Metadatum{Kind: MetadatumList, List: items}
}

func MetaMap(pairs ...MetadatumPair) Metadatum {
	return Metadatum{Kind: MetadatumMap, Map: pairs}
}

func MetaPair(key Metadatum, value Metadatum) MetadatumPair {
	return MetadatumPair{Key: key, Value: value}
}

// Lookup returns the value of the first map pair whose key is the given text
func (m Metadatum) Lookup(key string) (Metadatum, bool) {
	if m.Kind != MetadatumMap {
		return Metadatum{}, false
	}
	for _, pair := range m.Map {
		if pair.Key.Kind == MetadatumText && pair.Key.Text == key {
			return pair.Value, true
		}
	}
	return Metadatum{}, false
}

// MetadatumFromLedger converts a decoded transaction metadatum into the
// canonical tree
func MetadatumFromLedger(md lcommon.TransactionMetadatum) (Metadatum, error) {
	switch m := md.(type) {
	case lcommon.MetaInt:
		return MetaBigInt(m.Value), nil
	case *lcommon.MetaInt:
		return MetaBigInt(m.Value), nil
	case lcommon.MetaText:
		return MetaText(m.Value), nil
	case *lcommon.MetaText:
		return MetaText(m.Value), nil
	case lcommon.MetaBytes:
		return MetaBytes(m.Value), nil
	case *lcommon.MetaBytes:
		return MetaBytes(m.Value), nil
	case lcommon.MetaList:
		return metadatumListFromLedger(m.Items)
	case *lcommon.MetaList:
		return metadatumListFromLedger(m.Items)
	case lcommon.MetaMap:
		return metadatumMapFromLedger(m)
	case *lcommon.MetaMap:
		return metadatumMapFromLedger(*m)
	default:
		return Metadatum{}, fmt.Errorf("unsupported metadatum type: %T", md)
	}
}

func metadatumListFromLedger(
	items []lcommon.TransactionMetadatum,
) (Metadatum, error) {
	ret := Metadatum{Kind: MetadatumList, List: make([]Metadatum, 0, len(items))}
	for _, item := range items {
		tmp, err := MetadatumFromLedger(item)
		if err != nil {
			return Metadatum{}, err
		}
		ret.List = append(ret.List, tmp)
	}
	return ret, nil
}

func metadatumMapFromLedger(m lcommon.MetaMap) (Metadatum, error) {
	ret := Metadatum{Kind: MetadatumMap, Map: make([]MetadatumPair, 0, len(m.Pairs))}
	for _, pair := range m.Pairs {
		key, err := MetadatumFromLedger(pair.Key)
		if err != nil {
			return Metadatum{}, err
		}
		value, err := MetadatumFromLedger(pair.Value)
		if err != nil {
			return Metadatum{}, err
		}
		ret.Map = append(ret.Map, MetaPair(key, value))
	}
	return ret, nil
}

// LabelsFromLedger splits a transaction's top level metadata map into its
// labels. Labels that are not unsigned integers are skipped. A label whose
// value cannot be converted is left out of the result and reported in the
// returned error, next to the labels that did convert.
func LabelsFromLedger(
	md lcommon.TransactionMetadatum,
) (map[uint64]Metadatum, error) {
	var pairs []lcommon.MetaPair
	switch m := md.(type) {
	case nil:
		return nil, nil
	case lcommon.MetaMap:
		pairs = m.Pairs
	case *lcommon.MetaMap:
		if m == nil {
			return nil, nil
		}
		pairs = m.Pairs
	default:
		return nil, fmt.Errorf("metadata is a %T, not a label map", md)
	}
	ret := make(map[uint64]Metadatum, len(pairs))
	var errs []error
	for _, pair := range pairs {
		key, err := MetadatumFromLedger(pair.Key)
		if err != nil || key.Kind != MetadatumInt || key.Int.Sign() < 0 ||
			!key.Int.IsUint64() {
			continue
		}
		label := key.Int.Uint64()
		value, err := MetadatumFromLedger(pair.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("label %d: %w", label, err))
			continue
		}
		ret[label] = value
	}
	return ret, errors.Join(errs...)
}
