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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	meerkatName  = "4d6565726b61743130"
	meerkatImage = "ipfs://QmfQMvMwSCsJ6WSPx7tDAH4zJLQqWmx6NThDrvxU3iQ4Wq"
	meerkatJSON  = `{"721":{"99027c7af372116f0716ee02008739ec51224bcfdd54398ec16217ef":{"Meerkat10":{"Hat":"None","Eyes":"Fire Eyes","Mask":"None","Skin":"Dark Brown","name":"Meerkat #10","Mouth":"Smile","files":[{"src":"ipfs://QmfQMvMwSCsJ6WSPx7tDAH4zJLQqWmx6NThDrvxU3iQ4Wq","name":"Meerkat #10","mediaType":"image/png"}],"image":"ipfs://QmfQMvMwSCsJ6WSPx7tDAH4zJLQqWmx6NThDrvxU3iQ4Wq","Tattoo":"I Love You","Clothing":"Rainbow Hoodie","mediaType":"image/png","Background":"Orange","Ear Accessory":"Ruby Earrings"}}}}`
)

func textPair(key string, value string) MetadatumPair {
	return MetaPair(MetaText(key), MetaText(value))
}

func meerkatDetails() Metadatum {
	return MetaMap(
		textPair("Hat", "None"),
		textPair("Eyes", "Fire Eyes"),
		textPair("Mask", "None"),
		textPair("Skin", "Dark Brown"),
		textPair("name", "Meerkat #10"),
		textPair("Mouth", "Smile"),
		MetaPair(
			MetaText("files"),
			MetaList(
				MetaMap(
					textPair("src", meerkatImage),
					textPair("name", "Meerkat #10"),
					textPair("mediaType", "image/png"),
				),
			),
		),
		textPair("image", meerkatImage),
		textPair("Tattoo", "I Love You"),
		textPair("Clothing", "Rainbow Hoodie"),
		textPair("mediaType", "image/png"),
		textPair("Background", "Orange"),
		textPair("Ear Accessory", "Ruby Earrings"),
	)
}

func meerkatBlock(era Era, nameKey Metadatum) *Block {
	return &Block{
		Era: era,
		Transactions: []Transaction{
			{
				ID: testTxID(1),
				Metadata: map[uint64]Metadatum{
					MetadataLabelNFT: MetaMap(
						MetaPair(
							MetaText(testPolicy),
							MetaMap(MetaPair(nameKey, meerkatDetails())),
						),
					),
				},
			},
		},
	}
}

func TestCIP25MetadataMeerkat(t *testing.T) {
	known := []KnownAsset{
		{ID: 7, Policy: "00000000000000000000000000000000000000000000000000000000", Name: meerkatName},
		{ID: 42, Policy: testPolicy, Name: meerkatName},
	}
	e := NewExtractor(true, nil)
	nodes := e.CIP25Metadata(meerkatBlock(EraMary, MetaText("Meerkat10")), known)
	require.Len(t, nodes, 13)
	for _, node := range nodes {
		assert.Equal(t, uint(42), node.AssetID)
		assert.Equal(t, 0, node.NestLevel)
	}
	files := nodes[6]
	assert.Equal(t, "files", files.Key)
	assert.Equal(t, MetadataTypeArray, files.ValueType)
	assert.Empty(t, files.Value)
	require.Len(t, files.Children, 1)
	assert.Equal(t, "files", files.Children[0].Key)
	assert.Equal(t, MetadataTypeMap, files.Children[0].ValueType)
	assert.Equal(t, 1, files.Children[0].NestLevel)
	require.Len(t, files.Children[0].Children, 3)
	assert.Equal(t, 2, files.Children[0].Children[0].NestLevel)

	assert.Equal(t, meerkatJSON, To721JSON(testPolicy, meerkatName, nodes))
}

func TestCIP25MetadataBytesKeys(t *testing.T) {
	rawName, err := hex.DecodeString(meerkatName)
	require.NoError(t, err)
	known := []KnownAsset{{ID: 3, Policy: testPolicy, Name: meerkatName}}
	nodes := NewExtractor(true, nil).CIP25Metadata(
		meerkatBlock(EraBabbage, MetaBytes(rawName)),
		known,
	)
	assert.Len(t, nodes, 13)
}

func TestCIP25MetadataIgnored(t *testing.T) {
	known := []KnownAsset{{ID: 3, Policy: testPolicy, Name: meerkatName}}
	e := NewExtractor(true, nil)

	// No metadata minting before Mary
	for _, era := range []Era{EraByron, EraShelley, EraAllegra} {
		assert.Empty(t, e.CIP25Metadata(meerkatBlock(era, MetaText("Meerkat10")), known))
	}
	// Unknown asset
	assert.Empty(t, e.CIP25Metadata(meerkatBlock(EraMary, MetaText("Meerkat11")), known))
	// Nothing minted
	assert.Empty(t, e.CIP25Metadata(meerkatBlock(EraMary, MetaText("Meerkat10")), nil))
}

func TestCIP25MetadataFirstMatchWins(t *testing.T) {
	// The raw name and its hex encoding both match a catalog entry
	known := []KnownAsset{
		{ID: 1, Policy: testPolicy, Name: "Meerkat10"},
		{ID: 2, Policy: testPolicy, Name: meerkatName},
	}
	nodes := NewExtractor(true, nil).CIP25Metadata(
		meerkatBlock(EraMary, MetaText("Meerkat10")),
		known,
	)
	require.NotEmpty(t, nodes)
	assert.Equal(t, uint(1), nodes[0].AssetID)
}

func TestBuildTokenMetadataInvalidKeys(t *testing.T) {
	details := MetaMap(
		MetaPair(MetaList(MetaText("bad")), MetaText("dropped")),
		MetaPair(MetaInt(5), MetaBytes([]byte{0xde, 0xad})),
		MetaPair(
			MetaText("nested"),
			MetaMap(
				MetaPair(MetaMap(), MetaText("dropped")),
				MetaPair(MetaText("ok"), MetaInt(-3)),
			),
		),
	)
	node, ok := buildTokenMetadata(9, MetaText("root"), details, 0)
	require.True(t, ok)
	require.Len(t, node.Children, 2)
	assert.Equal(t, "5", node.Children[0].Key)
	assert.Equal(t, MetadataTypeInteger, node.Children[0].KeyType)
	assert.Equal(t, "dead", node.Children[0].Value)
	assert.Equal(t, MetadataTypeByteString, node.Children[0].ValueType)
	nested := node.Children[1]
	require.Len(t, nested.Children, 1)
	assert.Equal(t, "-3", nested.Children[0].Value)

	_, ok = buildTokenMetadata(9, MetaMap(), MetaText("x"), 0)
	assert.False(t, ok)
}

func TestTo721JSONNonTextName(t *testing.T) {
	nodes := []TokenMetadata{
		{Key: "n", KeyType: MetadataTypeString, ValueType: MetadataTypeInteger, Value: "12"},
		{Key: "q", KeyType: MetadataTypeString, ValueType: MetadataTypeString, Value: `a"b`},
		{Key: "e", KeyType: MetadataTypeString, ValueType: MetadataTypeArray},
	}
	assert.Equal(
		t,
		`{"721":{"p":{"000643b0ff":{"n":12,"q":"a\"b","e":[]}}}}`,
		To721JSON("p", "000643b0ff", nodes),
	)
}
