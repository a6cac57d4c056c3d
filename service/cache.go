package service

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/TIANLI0/CutoutKit/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedRemover 按内容哈希缓存抠图结果：
// 一级为有界 LRU（满时淘汰最久未用），二级为可选的 CutoutStore（Redis）。
// 同一内容的并发请求只调用一次模型。
type CachedRemover struct {
	next  Remover
	lru   *lru.Cache[string, *image.NRGBA]
	store CutoutStore
	group singleflight.Group

	calls atomic.Int64
}

// NewCachedRemover store 可以为 nil，此时只使用内存缓存
func NewCachedRemover(next Remover, maxEntries int, store CutoutStore) (*CachedRemover, error) {
	cache, err := lru.NewWithEvict[string, *image.NRGBA](maxEntries, func(key string, _ *image.NRGBA) {
		utils.Logger.Debug("cutout evicted", zap.String("hash", key))
	})
	if err != nil {
		return nil, err
	}
	return &CachedRemover{next: next, lru: cache, store: store}, nil
}

func (c *CachedRemover) Remove(ctx context.Context, data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, newError(KindDecode, "remove background", errEmptyInput)
	}
	hash := utils.ContentHash(data)

	if img, ok := c.lru.Get(hash); ok {
		utils.Logger.Debug("cutout cache hit", zap.String("hash", hash), zap.String("level", "memory"))
		return img, nil
	}

	// 共享的调用不随任一调用方取消，超时由下游 Remover 自己控制
	callCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(hash, func() (interface{}, error) {
		if img, ok := c.lru.Get(hash); ok {
			return img, nil
		}
		if img := c.loadFromStore(callCtx, hash); img != nil {
			c.lru.Add(hash, img)
			return img, nil
		}

		c.calls.Add(1)
		img, err := c.next.Remove(callCtx, data)
		if err != nil {
			return nil, err
		}
		c.lru.Add(hash, img)
		c.saveToStore(callCtx, hash, img)
		return img, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			utils.Logger.Debug("cutout call shared", zap.String("hash", hash))
		}
		return res.Val.(*image.NRGBA), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ModelCalls 返回实际调用下游模型的次数
func (c *CachedRemover) ModelCalls() int64 {
	return c.calls.Load()
}

// Len 返回内存缓存中的条目数
func (c *CachedRemover) Len() int {
	return c.lru.Len()
}

func (c *CachedRemover) loadFromStore(ctx context.Context, hash string) *image.NRGBA {
	if c.store == nil {
		return nil
	}
	data, err := c.store.GetCutout(ctx, hash)
	if err != nil {
		utils.Logger.Warn("failed to get cutout cache", zap.String("hash", hash), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	img, err := DecodeImage(data)
	if err != nil {
		utils.Logger.Warn("corrupt cutout cache entry", zap.String("hash", hash), zap.Error(err))
		return nil
	}
	utils.Logger.Debug("cutout cache hit", zap.String("hash", hash), zap.String("level", "store"))
	return img
}

func (c *CachedRemover) saveToStore(ctx context.Context, hash string, img *image.NRGBA) {
	if c.store == nil {
		return
	}
	data, err := EncodePNG(img)
	if err != nil {
		utils.Logger.Warn("failed to encode cutout for cache", zap.String("hash", hash), zap.Error(err))
		return
	}
	if err := c.store.SetCutout(ctx, hash, data); err != nil {
		utils.Logger.Warn("failed to set cutout cache", zap.String("hash", hash), zap.Error(err))
	}
}
