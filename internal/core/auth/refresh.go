package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay 已轮换过的旧 token 被再次使用，整族吊销
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RotateGrace 刚被轮换掉的 token 在这段时间内再来，返回同一个新 token 而不算重放。
// 同一浏览器并发请求会带着同一个旧 cookie 一起刷新
const RotateGrace = 30 * time.Second

// RefreshStore Redis 里按"族"保存 refresh token：
//
//	rt:token:<hash>      -> familyID
//	rt:family:<id>       -> {uid, cur, prev, rotated_at}
//	rt:family_tokens:<id> set of hashes
//	rt:user:<uid>        set of familyIDs
//	rt:grace:<hash>      -> 由该 hash 换出的明文 token，TTL = grace
type RefreshStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	grace time.Duration
}

func NewRefreshStore(rdb *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{rdb: rdb, ttl: ttl, grace: RotateGrace}
}

func (s *RefreshStore) TTL() time.Duration { return s.ttl }

func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomHex(16)
	if err != nil {
		return "", err
	}
	h := hashToken(token)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, tokenKey(h), familyID, s.ttl)
	pipe.HSet(ctx, familyKey(familyID), "uid", userID, "cur", h)
	pipe.Expire(ctx, familyKey(familyID), s.ttl)
	pipe.SAdd(ctx, familyTokensKey(familyID), h)
	pipe.Expire(ctx, familyTokensKey(familyID), s.ttl)
	pipe.SAdd(ctx, userKey(userID), familyID)
	pipe.Expire(ctx, userKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate 校验并换发；WATCH 冲突时重试
func (s *RefreshStore) Rotate(ctx context.Context, token string) (userID, next string, err error) {
	h := hashToken(token)
	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		familyID, err := s.rdb.Get(ctx, tokenKey(h)).Result()
		if errors.Is(err, redis.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", "", err
		}

		fk := familyKey(familyID)
		revoke := false
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			fam, err := tx.HGetAll(ctx, fk).Result()
			if err != nil {
				return err
			}
			userID = fam["uid"]
			if userID == "" || fam["cur"] == "" {
				revoke = true
				return ErrInvalidRefreshToken
			}
			if fam["cur"] != h {
				if fam["prev"] == h {
					g, err := tx.Get(ctx, graceKey(h)).Result()
					if err == nil {
						next = g
						return nil
					}
					if !errors.Is(err, redis.Nil) {
						return err
					}
				}
				revoke = true
				return ErrRefreshTokenReplay
			}
			next, err = randomHex(32)
			if err != nil {
				return err
			}
			nh := hashToken(next)
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, tokenKey(nh), familyID, s.ttl)
				p.HSet(ctx, fk, "uid", userID, "cur", nh, "prev", h, "rotated_at", time.Now().Unix())
				p.Set(ctx, graceKey(h), next, s.grace)
				p.Expire(ctx, fk, s.ttl)
				p.SAdd(ctx, familyTokensKey(familyID), nh)
				p.Expire(ctx, familyTokensKey(familyID), s.ttl)
				p.Expire(ctx, userKey(userID), s.ttl)
				return nil
			})
			return err
		}, fk)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if revoke {
				_ = s.revokeFamily(ctx, familyID, userID)
			}
			return "", "", err
		}
		return userID, next, nil
	}
}

// Revoke 吊销 token 所在的整族（登出）
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	familyID, err := s.rdb.Get(ctx, tokenKey(hashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	uid, err := s.rdb.HGet(ctx, familyKey(familyID), "uid").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return s.revokeFamily(ctx, familyID, uid)
}

// RevokeUser 删号/改密后踢掉该用户全部会话
func (s *RefreshStore) RevokeUser(ctx context.Context, userID string) error {
	fams, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, f := range fams {
		if err := s.revokeFamily(ctx, f, userID); err != nil {
			return err
		}
	}
	return s.rdb.Del(ctx, userKey(userID)).Err()
}

func (s *RefreshStore) revokeFamily(ctx context.Context, familyID, userID string) error {
	hashes, err := s.rdb.SMembers(ctx, familyTokensKey(familyID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, tokenKey(h), graceKey(h))
	}
	pipe.Del(ctx, familyTokensKey(familyID), familyKey(familyID))
	if userID != "" {
		pipe.SRem(ctx, userKey(userID), familyID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenKey(h string) string         { return "rt:token:" + h }
func familyKey(id string) string       { return "rt:family:" + id }
func familyTokensKey(id string) string { return "rt:family_tokens:" + id }
func userKey(uid string) string        { return "rt:user:" + uid }
func graceKey(h string) string         { return "rt:grace:" + h }
