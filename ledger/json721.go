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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"
)

// To721JSON renders stored metadata trees of one asset as a CIP-25 JSON
// document. Keys keep the order of the trees. The asset name is shown as
// text when it decodes to printable UTF-8, otherwise as hex.
func To721JSON(policy string, name string, nodes []TokenMetadata) string {
	var buf bytes.Buffer
	buf.WriteString(`{"721":{`)
	writeJSONString(&buf, policy)
	buf.WriteString(`:{`)
	writeJSONString(&buf, displayAssetName(name))
	buf.WriteString(`:{`)
	for i, node := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeNode721(&buf, node, false)
	}
	buf.WriteString(`}}}}`)
	return buf.String()
}

func writeNode721(buf *bytes.Buffer, node TokenMetadata, arrayItem bool) {
	if !arrayItem {
		writeJSONString(buf, node.Key)
		buf.WriteByte(':')
	}
	switch node.ValueType {
	case MetadataTypeArray:
		buf.WriteByte('[')
		for i, child := range node.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode721(buf, child, true)
		}
		buf.WriteByte(']')
	case MetadataTypeMap:
		buf.WriteByte('{')
		for i, child := range node.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode721(buf, child, false)
		}
		buf.WriteByte('}')
	case MetadataTypeInteger:
		buf.WriteString(node.Value)
	default:
		writeJSONString(buf, node.Value)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}

// displayAssetName returns the text form of a hex asset name when it is valid
// UTF-8 without NUL bytes
func displayAssetName(name string) string {
	raw, err := hex.DecodeString(name)
	if err != nil {
		return name
	}
	if !isValidDbUTF8(raw) {
		return name
	}
	return string(raw)
}

func isValidDbUTF8(b []byte) bool {
	return utf8.Valid(b) && !bytes.Contains(b, []byte{0})
}
