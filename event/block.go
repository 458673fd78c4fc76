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

package event

import (
	"github.com/blinklabs-io/numbat/ledger"
)

// BlockCommittedEventType is published after the block daemon commits a batch,
// once per block in chain order
const BlockCommittedEventType = EventType("commit.block_committed")

// BlockCommittedEvent carries a block whose ledger facts are durable
type BlockCommittedEvent struct {
	Block *ledger.Block
	// AtTip is set when the block was committed while following the tip
	AtTip bool
}

// SyncStateEventType is published when a chain follower changes state
const SyncStateEventType = EventType("chainsync.state")

type SyncStateEvent struct {
	// Partition is "" for the block daemon or the monitored address
	Partition string
	From      string
	To        string
}
