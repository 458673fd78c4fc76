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

package chainsync

// State is the position of a follower in the chain-sync protocol
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateFindingIntersection
	StateSyncingCatchingUp
	StateSyncingAtTip
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateFindingIntersection:
		return "FindingIntersection"
	case StateSyncingCatchingUp:
		return "SyncingCatchingUp"
	case StateSyncingAtTip:
		return "SyncingAtTip"
	default:
		return "Unknown"
	}
}

// Syncing reports whether the follower is past the intersection
func (s State) Syncing() bool {
	return s == StateSyncingCatchingUp || s == StateSyncingAtTip
}
