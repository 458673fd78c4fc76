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
	"github.com/blinklabs-io/gouroboros/ledger/shelley"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

var ShelleyEraDesc = EraDesc{
	Id:         shelley.EraIdShelley,
	Name:       shelley.EraNameShelley,
	HeaderFunc: HeaderShelley,
}

func HeaderShelley(header lcommon.BlockHeader, block *nledger.Block) error {
	h, ok := header.(*shelley.ShelleyBlockHeader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedHeader, header)
	}
	applyTPraosHeader(h, block)
	return nil
}

// applyTPraosHeader copies the header fields shared by the TPraos eras, which
// carry separate nonce and leader VRF results
func applyTPraosHeader(h *shelley.ShelleyBlockHeader, block *nledger.Block) {
	body := &h.Body
	block.VrfKey = body.VrfKey
	block.NonceVrf = nledger.VrfResult{
		Output: body.NonceVrf.Output,
		Proof:  body.NonceVrf.Proof,
	}
	block.LeaderVrf = nledger.VrfResult{
		Output: body.LeaderVrf.Output,
		Proof:  body.LeaderVrf.Proof,
	}
	block.OpCert = nledger.OpCert{
		HotVkey:        body.OpCertHotVkey,
		SequenceNumber: uint64(body.OpCertSequenceNumber),
		KesPeriod:      uint64(body.OpCertKesPeriod),
		Signature:      body.OpCertSignature,
	}
	block.ProtocolVersion = nledger.ProtocolVersion{
		Major: uint64(body.ProtoMajorVersion),
		Minor: uint64(body.ProtoMinorVersion),
	}
}
