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

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/mary"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

var MaryEraDesc = EraDesc{
	Id:                mary.EraIdMary,
	Name:              mary.EraNameMary,
	HeaderFunc:        HeaderMary,
	MetadataSupported: true,
}

func HeaderMary(header lcommon.BlockHeader, block *nledger.Block) error {
	h, ok := header.(*mary.MaryBlockHeader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedHeader, header)
	}
	applyTPraosHeader(&h.ShelleyBlockHeader, block)
	return nil
}
