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

package eras

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger/byron"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

var ByronEraDesc = EraDesc{
	Id:         byron.EraIdByron,
	Name:       byron.EraNameByron,
	HeaderFunc: HeaderByron,
}

// HeaderByron records the block version of a Byron main block. Byron headers
// carry no VRF or operational certificate material.
func HeaderByron(header lcommon.BlockHeader, block *nledger.Block) error {
	h, ok := header.(*byron.ByronMainBlockHeader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedHeader, header)
	}
	block.ProtocolVersion = nledger.ProtocolVersion{
		Major: uint64(h.ExtraData.BlockVersion.Major),
		Minor: uint64(h.ExtraData.BlockVersion.Minor),
	}
	return nil
}
