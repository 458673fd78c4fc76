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
	"github.com/blinklabs-io/gouroboros/ledger/conway"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

var ConwayEraDesc = EraDesc{
	Id:                  conway.EraIdConway,
	Name:                conway.EraNameConway,
	HeaderFunc:          HeaderConway,
	MetadataSupported:   true,
	CollateralSupported: true,
}

func HeaderConway(header lcommon.BlockHeader, block *nledger.Block) error {
	h, ok := header.(*conway.ConwayBlockHeader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedHeader, header)
	}
	applyPraosHeader(&h.BabbageBlockHeader, block)
	return nil
}
