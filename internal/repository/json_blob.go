package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cfaquiz_backend/internal/util"
)

// loadJSON 键不存在时返回零值；解码失败包装为 ErrCatalogCorrupt
func loadJSON[T any](ctx context.Context, store BlobStore, key string) (T, error) {
	var out T
	data, err := store.Load(ctx, key)
	if errors.Is(err, util.ErrBlobNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", util.ErrCatalogCorrupt, key, err)
	}
	return out, nil
}

func saveJSON(ctx context.Context, store BlobStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return store.Save(ctx, key, data)
}
