package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"VoiceBank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	ctxUserID    = "auth.user_id"
	ctxUserEmail = "auth.user_email"
	ctxUserName  = "auth.user_name"
)

// Identity 从 bearer token 解析出的身份信息
type Identity struct {
	Subject  string
	Email    string
	FullName string
}

type Config struct {
	// Issuer 身份提供方项目地址，非空时校验 iss
	Issuer string
	// Secret HS256 对称密钥
	Secret string
	// PublicKeyPEM 非对称公钥（RSA/ECDSA），设置时优先使用
	PublicKeyPEM string
	// CacheTTL 已验证 token 的缓存时长，须低于 token 本身的有效期
	CacheTTL time.Duration
	// CacheSize 缓存条目上限
	CacheSize int
}

// Verifier 校验外部身份提供方签发的 bearer token。
// 校验结果按 token 摘要缓存，避免热路径上重复的签名验证。
type Verifier struct {
	cfg    Config
	key    any
	method string // "hmac" | "rsa" | "ecdsa"
	cache  *expirable.LRU[string, Identity]
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	v := &Verifier{
		cfg:   cfg,
		cache: expirable.NewLRU[string, Identity](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	switch {
	case cfg.PublicKeyPEM != "":
		if key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM)); err == nil {
			v.key, v.method = key, "rsa"
			break
		}
		key, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse auth public key: %w", err)
		}
		v.key, v.method = key, "ecdsa"
	case cfg.Secret != "":
		v.key, v.method = []byte(cfg.Secret), "hmac"
	default:
		return nil, fmt.Errorf("auth verifier needs a secret or a public key")
	}
	return v, nil
}

// Verify 校验 token 并返回身份信息
func (v *Verifier) Verify(token string) (Identity, error) {
	sum := sha256.Sum256([]byte(token))
	cacheKey := hex.EncodeToString(sum[:])
	if id, ok := v.cache.Get(cacheKey); ok {
		return id, nil
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch v.method {
		case "hmac":
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
		case "rsa":
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
		case "ecdsa":
			if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
		}
		return v.key, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if v.cfg.Issuer != "" {
		if iss, _ := claims.GetIssuer(); iss != v.cfg.Issuer {
			return Identity{}, fmt.Errorf("unexpected issuer %q", iss)
		}
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}

	id := Identity{Subject: sub}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	// 身份元数据里的姓名（Supabase 风格 user_metadata）
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if name, ok := meta["full_name"].(string); ok {
			id.FullName = name
		} else if name, ok := meta["name"].(string); ok {
			id.FullName = name
		}
	}

	v.cache.Add(cacheKey, id)
	return id, nil
}

// Required Gin 中间件：无有效 bearer token 时返回 401
func Required(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.FailWithStatus(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			response.FailWithStatus(c, http.StatusUnauthorized, "invalid authentication credentials", nil)
			c.Abort()
			return
		}
		c.Set(ctxUserID, id.Subject)
		c.Set(ctxUserEmail, id.Email)
		c.Set(ctxUserName, id.FullName)
		c.Next()
	}
}

// CurrentIdentity 读取中间件写入的身份信息
func CurrentIdentity(c *gin.Context) Identity {
	return Identity{
		Subject:  c.GetString(ctxUserID),
		Email:    c.GetString(ctxUserEmail),
		FullName: c.GetString(ctxUserName),
	}
}
