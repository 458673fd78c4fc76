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

package commit

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/ledger"
)

const (
	// PruneInterval is the height interval between spent output prunes
	PruneInterval = 1000
	// PruneDepth is how many blocks a spent output is kept after its spend
	PruneDepth = 10000

	etaVCacheExpiration = 30 * time.Minute
)

type LedgerProcessorConfig struct {
	Logger    *slog.Logger
	Extractor *ledger.Extractor
	Params    *genesis.Params
	// RawTransactions enables the raw transaction archive, the payment to
	// stake address index and the output history
	RawTransactions bool
}

// LedgerProcessor writes the full ledger facts of the block follower
type LedgerProcessor struct {
	config LedgerProcessorConfig
	logger *slog.Logger
	// etaV by block hash
	etaV *cache.Cache
}

func NewLedgerProcessor(cfg LedgerProcessorConfig) (*LedgerProcessor, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("commit: extractor is required")
	}
	if cfg.Params == nil {
		return nil, errors.New("commit: genesis parameters are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LedgerProcessor{
		config: cfg,
		logger: cfg.Logger.With("component", "commit"),
		// Expired entries are dropped in Finish, so no janitor goroutine
		etaV: cache.New(etaVCacheExpiration, 0),
	}, nil
}

func (p *LedgerProcessor) Rollback(txn *database.Txn, height uint64) error {
	return txn.DB().RollbackToHeight(height, txn)
}

func (p *LedgerProcessor) Apply(
	ctx context.Context,
	txn *database.Txn,
	block *ledger.Block,
) error {
	store := txn.DB().Metadata()
	mtxn := txn.Metadata()
	// Chain record
	prevEtaV, err := p.prevEtaV(txn, block)
	if err != nil {
		return err
	}
	chainBlock, err := ledger.ChainBlockFor(block, prevEtaV)
	if err != nil {
		return err
	}
	if err := store.InsertChainBlock(chainBlock, mtxn); err != nil {
		return err
	}
	p.etaV.SetDefault(chainBlock.Hash, chainBlock.EtaV)
	// Outputs are created before inputs are spent so a transaction may spend
	// an output created earlier in the same block
	ex := p.config.Extractor
	created := ex.CreatedUtxos(block)
	if err := store.CreateUtxos(block.Height, block.Slot, created, mtxn); err != nil {
		return err
	}
	if err := store.SpendUtxos(block.Height, ex.SpentUtxos(block), mtxn); err != nil {
		return err
	}
	// Stake
	if err := store.CreateStakeRegistrations(block.Height, ex.StakeRegistrations(block), mtxn); err != nil {
		return err
	}
	epoch := p.config.Params.EpochForSlot(block.Slot)
	if err := store.CreateStakeDelegations(ex.StakeDelegations(block, epoch), mtxn); err != nil {
		return err
	}
	// Assets and token metadata
	known, err := store.UpsertNativeAssets(block.Height, ex.NativeAssets(block), mtxn)
	if err != nil {
		return err
	}
	tokenMetadata := ex.CIP25Metadata(block, known)
	if block.Era.SupportsMetadataMinting() {
		cip68, err := ex.CIP68Metadata(
			created,
			func(policy string, name string) (ledger.KnownAsset, bool, error) {
				return store.LookupAsset(policy, name, mtxn)
			},
		)
		if err != nil {
			return err
		}
		tokenMetadata = append(tokenMetadata, cip68...)
	}
	if err := store.InsertTokenMetadata(block.Height, tokenMetadata, mtxn); err != nil {
		return err
	}
	// Archive
	if p.config.RawTransactions {
		if err := txn.DB().StoreRawTransactions(ex.RawTransactions(block), txn); err != nil {
			return err
		}
		if err := store.CreatePaymentStakeAddresses(block.Height, ex.PaymentStakeAddresses(block), mtxn); err != nil {
			return err
		}
		if err := store.CreateUtxoHistory(block.Height, created, mtxn); err != nil {
			return err
		}
	}
	if block.Height%PruneInterval == 0 && block.Height > PruneDepth {
		pruned, err := store.PruneSpentBefore(block.Height-PruneDepth, mtxn)
		if err != nil {
			return err
		}
		p.logger.Debug(
			"pruned spent outputs",
			"count", pruned,
			"height", block.Height,
		)
	}
	return nil
}

func (p *LedgerProcessor) Finish(
	txn *database.Txn,
	last *ledger.Block,
	atTip bool,
) error {
	p.etaV.DeleteExpired()
	return nil
}

// prevEtaV returns the evolving nonce of the parent block. The first block
// after an empty chain starts from the Shelley genesis hash.
func (p *LedgerProcessor) prevEtaV(
	txn *database.Txn,
	block *ledger.Block,
) (string, error) {
	prevHash := hex.EncodeToString(block.PrevHash)
	if v, ok := p.etaV.Get(prevHash); ok {
		if etaV, ok := v.(string); ok {
			return etaV, nil
		}
	}
	if block.Height == 0 {
		return p.config.Params.ShelleyGenesisHash, nil
	}
	prev, err := txn.DB().Metadata().GetChainBlock(block.Height-1, txn.Metadata())
	if err != nil {
		return "", err
	}
	if prev == nil || prev.Hash != prevHash || prev.EtaV == "" {
		return p.config.Params.ShelleyGenesisHash, nil
	}
	return prev.EtaV, nil
}
