package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AddressRepository 逆地理编码结果持久化，重启后缓存不丢失
type AddressRepository struct {
	db *DB
}

// NewAddressRepository 创建地址仓库
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Get 按坐标桶查询地址
func (r *AddressRepository) Get(ctx context.Context, bucket string) (string, bool, error) {
	var address string
	err := r.db.Pool.QueryRow(ctx, `SELECT address FROM geocode_cache WHERE bucket = $1`, bucket).Scan(&address)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query address: %w", err)
	}
	return address, true, nil
}

// Set 保存地址，已存在则覆盖
func (r *AddressRepository) Set(ctx context.Context, bucket, address string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO geocode_cache (bucket, address) VALUES ($1, $2)
		ON CONFLICT (bucket) DO UPDATE SET address = EXCLUDED.address
	`, bucket, address)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

// Len 缓存条目数
func (r *AddressRepository) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count addresses: %w", err)
	}
	return n, nil
}

// Clear 清空缓存
func (r *AddressRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM geocode_cache`); err != nil {
		return fmt.Errorf("clear addresses: %w", err)
	}
	return nil
}
