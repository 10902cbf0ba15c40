package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

const stockCacheTTL = 24 * time.Hour

// ResultData carries the ledger-assigned identifiers of a finished operation.
type ResultData struct {
	NFTID  string `json:"nft_id"`
	TxHash string `json:"tx_hash"`
	Supply int    `json:"supply,omitempty"`
}

// ResultEnvelope is one settlement result delivered by the ledger. Identifier
// matches the chain identifier the operation was submitted with.
type ResultEnvelope struct {
	EventID       uuid.UUID              `json:"event_id"`
	OperateType   enums.ChainOperateType `json:"operate_type"`
	BizID         uuid.UUID              `json:"biz_id"`
	BizType       string                 `json:"biz_type"`
	OperateInfoID uuid.UUID              `json:"operate_info_id"`
	Identifier    string                 `json:"identifier"`
	Success       bool                   `json:"success"`
	Result        ResultData             `json:"chain_result_data"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

type stockInitializer interface {
	InitCounter(ctx context.Context, goodsID uuid.UUID, available int) error
}

type stockCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CounterKey(name string) string
}

// ResultService advances asset state machines as settlement results arrive.
// Delivery is at least once: every branch either converges on replay or
// raises a non-retryable protocol error.
type ResultService struct {
	repo  Repository
	stock stockInitializer
	cache stockCache
	tx    txRunner
	logg  *logger.Logger
}

// NewResultService builds the settlement result handler.
func NewResultService(repo Repository, stock stockInitializer, cache stockCache, tx txRunner, logg *logger.Logger) (*ResultService, error) {
	if repo == nil {
		return nil, fmt.Errorf("chain repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock initializer required")
	}
	if cache == nil {
		return nil, fmt.Errorf("stock cache required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ResultService{repo: repo, stock: stock, cache: cache, tx: tx, logg: logg}, nil
}

// Apply dispatches one settlement result to the owning state machine.
func (s *ResultService) Apply(ctx context.Context, res ResultEnvelope) error {
	if res.Identifier == "" {
		return pkgerrors.New(pkgerrors.CodeProtocol, "settlement result without identifier")
	}
	ctx = s.logg.WithIdentifier(ctx, res.Identifier)

	if !res.Success {
		// Failed submissions stay where they are; the resubmit job retries
		// them with the same identifier.
		s.logg.Warn(s.logg.WithField(ctx, "operate_type", res.OperateType.String()), "settlement failed on ledger")
		return nil
	}

	switch res.OperateType {
	case enums.ChainOperateCollectionChain:
		return s.applyCollectionChain(ctx, res)
	case enums.ChainOperateBlindBoxChain:
		return s.applyBlindBoxChain(ctx, res)
	case enums.ChainOperateCollectionMint:
		return s.applyHeldActivation(ctx, res, "mint")
	case enums.ChainOperateCollectionTransfer:
		return s.applyHeldActivation(ctx, res, "transfer")
	case enums.ChainOperateCollectionDestroy:
		return s.applyDestroy(ctx, res)
	default:
		return pkgerrors.New(pkgerrors.CodeProtocol, "unknown settlement operation").
			WithDetails(map[string]any{"operate_type": res.OperateType})
	}
}

func (s *ResultService) applyCollectionChain(ctx context.Context, res ResultEnvelope) error {
	row, err := s.repo.FindCollectionByChainIdentifier(ctx, res.Identifier)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeProtocol, "settlement result for unknown collection")
	}
	if row.State == enums.CollectionStateSucceed {
		s.logg.Info(ctx, "collection settlement replayed")
		return nil
	}

	// Stock must exist before the series is purchasable. A failure here is
	// retryable: the row stays pending and the message is redelivered.
	if err := s.initStock(ctx, row.GoodsID, res.Result.Supply); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, terr := s.repo.WithTx(tx).MarkCollectionSucceed(ctx, res.Identifier, res.Result.NFTID, res.Result.TxHash, s.resultTime(res))
		if terr != nil {
			return terr
		}
		if !flipped {
			s.logg.Info(ctx, "collection settlement lost race")
			return nil
		}
		s.logg.Info(ctx, "collection settled")
		return nil
	})
}

func (s *ResultService) applyBlindBoxChain(ctx context.Context, res ResultEnvelope) error {
	row, err := s.repo.FindBlindBoxByChainIdentifier(ctx, res.Identifier)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeProtocol, "settlement result for unknown blind box")
	}
	if row.State == enums.BlindBoxStateSucceed {
		s.logg.Info(ctx, "blind box settlement replayed")
		return nil
	}

	if err := s.initStock(ctx, row.GoodsID, res.Result.Supply); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, terr := s.repo.WithTx(tx).MarkBlindBoxSucceed(ctx, res.Identifier, res.Result.NFTID, res.Result.TxHash, s.resultTime(res))
		if terr != nil {
			return terr
		}
		if !flipped {
			s.logg.Info(ctx, "blind box settlement lost race")
			return nil
		}
		s.logg.Info(ctx, "blind box settled")
		return nil
	})
}

func (s *ResultService) applyHeldActivation(ctx context.Context, res ResultEnvelope, kind string) error {
	flipped, err := s.repo.ActivateHeldCollection(ctx, res.Identifier, res.Result.NFTID, res.Result.TxHash, s.resultTime(res))
	if err != nil {
		return err
	}
	if flipped {
		s.logg.Info(ctx, kind+" settled")
		return nil
	}

	row, err := s.repo.FindHeldCollectionByChainIdentifier(ctx, res.Identifier)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeProtocol, kind+" result for unknown held collection")
	}
	if row.State == enums.HeldCollectionStateActive {
		s.logg.Info(ctx, kind+" settlement replayed")
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeProtocol, kind+" result for non-init held collection").
		WithDetails(map[string]any{"state": row.State})
}

func (s *ResultService) applyDestroy(ctx context.Context, res ResultEnvelope) error {
	flipped, err := s.repo.MarkHeldCollectionDestroyed(ctx, res.Identifier, res.Result.TxHash, s.resultTime(res))
	if err != nil {
		return err
	}
	if flipped {
		s.logg.Info(ctx, "destroy settled")
		return nil
	}

	row, err := s.repo.FindHeldCollectionByChainIdentifier(ctx, res.Identifier)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeProtocol, "destroy result for unknown held collection")
	}
	if row.State == enums.HeldCollectionStateDestroyed {
		s.logg.Info(ctx, "destroy settlement replayed")
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeProtocol, "destroy result for held collection not destroying").
		WithDetails(map[string]any{"state": row.State})
}

func (s *ResultService) initStock(ctx context.Context, goodsID uuid.UUID, supply int) error {
	if supply < 0 {
		return pkgerrors.New(pkgerrors.CodeProtocol, "negative settlement supply")
	}
	if err := s.stock.InitCounter(ctx, goodsID, supply); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init stock counter")
	}
	key := s.cache.CounterKey("goods:" + goodsID.String())
	if err := s.cache.Set(ctx, key, supply, stockCacheTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "warm stock cache")
	}
	return nil
}

func (s *ResultService) resultTime(res ResultEnvelope) time.Time {
	if !res.OccurredAt.IsZero() {
		return res.OccurredAt.UTC()
	}
	return time.Now()
}
