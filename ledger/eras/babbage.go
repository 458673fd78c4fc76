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

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

var BabbageEraDesc = EraDesc{
	Id:                  babbage.EraIdBabbage,
	Name:                babbage.EraNameBabbage,
	HeaderFunc:          HeaderBabbage,
	MetadataSupported:   true,
	CollateralSupported: true,
}

func HeaderBabbage(header lcommon.BlockHeader, block *nledger.Block) error {
	h, ok := header.(*babbage.BabbageBlockHeader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedHeader, header)
	}
	applyPraosHeader(h, block)
	return nil
}

// applyPraosHeader copies the header fields of the Praos eras, which carry a
// single VRF result
func applyPraosHeader(h *babbage.BabbageBlockHeader, block *nledger.Block) {
	body := &h.Body
	block.VrfKey = body.VrfKey
	block.BlockVrf = nledger.VrfResult{
		Output: body.VrfResult.Output,
		Proof:  body.VrfResult.Proof,
	}
	block.OpCert = nledger.OpCert{
		HotVkey:        body.OpCert.HotVkey,
		SequenceNumber: uint64(body.OpCert.SequenceNumber),
		KesPeriod:      uint64(body.OpCert.KesPeriod),
		Signature:      body.OpCert.Signature,
	}
	block.ProtocolVersion = nledger.ProtocolVersion{
		Major: uint64(body.ProtoVersion.Major),
		Minor: uint64(body.ProtoVersion.Minor),
	}
}
