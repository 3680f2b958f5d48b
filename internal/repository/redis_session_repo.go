package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyro2829/safe-senior-care/internal/model"
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッション本体は"session:<id>"キーにTTL付きで保存し、
// ユーザー別の一括削除のために"user_sessions:<user_id>"セットを併用する。
type RedisSessionRepo struct {
	client *redis.Client
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

// Create はセッションを作成する。TTLは有効期限までの残り時間。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), data, time.Until(session.ExpiresAt)).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if err := r.client.SAdd(ctx, userSessionsKey(session.UserID), session.ID).Err(); err != nil {
		return fmt.Errorf("failed to index session by user: %w", err)
	}

	return nil
}

// FindByID は指定IDのセッションを取得する。
// キーが存在しない（TTL失効含む）場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session := &model.Session{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// TTL失効とDBの時計ずれに備えた二重チェック
	if !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		if err := r.client.SRem(ctx, userSessionsKey(session.UserID), id).Err(); err != nil {
			return fmt.Errorf("failed to unindex session: %w", err)
		}
	}

	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	for _, id := range ids {
		if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session index: %w", err)
	}

	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
