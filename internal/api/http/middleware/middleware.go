// Copyright 2026 fanjia1024
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

package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"
	"golang.org/x/time/rate"

	"course-rag/pkg/config"
)

// IdentityKey JWT 中的客户端标识字段
const IdentityKey = "client"

// Middleware HTTP 中间件集合
type Middleware struct {
	cors    config.CORSConfig
	limiter *rate.Limiter
	jwt     *jwt.HertzJWTMiddleware
}

// NewMiddleware 根据 api 配置创建中间件；开启 auth 时必须提供 jwt_key
func NewMiddleware(cfg config.APIConfig) (*Middleware, error) {
	m := &Middleware{cors: cfg.CORS}
	mw := cfg.Middleware
	if mw.RateLimit && mw.RateLimitRPS > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(mw.RateLimitRPS), mw.RateLimitRPS)
	}
	if mw.Auth {
		authMw, err := newJWT(mw)
		if err != nil {
			return nil, err
		}
		m.jwt = authMw
	}
	return m, nil
}

// AuthEnabled 是否启用 JWT 认证
func (m *Middleware) AuthEnabled() bool {
	return m.jwt != nil
}

// CORS 跨域中间件，未启用时直接放行
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.cors.Enable {
			c.Next(ctx)
			return
		}
		origin := string(c.GetHeader("Origin"))
		if allowed := m.allowOrigin(origin); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "600")
		}
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.cors.AllowOrigins) == 0 {
		return "*"
	}
	for _, o := range m.cors.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// AccessLog 访问日志，经 hlog 输出
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		hlog.CtxInfof(ctx, "%s %s status=%d ip=%s latency=%s",
			c.Method(), c.Path(), c.Response.StatusCode(), c.ClientIP(), time.Since(start))
	}
}

// Recovery 捕获 handler panic 并返回 500
func (m *Middleware) Recovery() app.HandlerFunc {
	return recovery.Recovery(recovery.WithRecoveryHandler(
		func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte) {
			hlog.CtxErrorf(ctx, "panic recovered: %v\n%s", err, stack)
			c.AbortWithStatusJSON(consts.StatusInternalServerError, utils.H{
				"error": "internal server error",
			})
		}))
}

// RateLimit 进程级令牌桶限流，未配置时放行
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{
				"error": "too many requests, please retry later",
			})
			return
		}
		c.Next(ctx)
	}
}

// Auth JWT 校验，未启用时放行
func (m *Middleware) Auth() app.HandlerFunc {
	if m.jwt == nil {
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	return m.jwt.MiddlewareFunc()
}

// LoginHandler 以 api_key 换取 JWT；未启用认证时返回 nil
func (m *Middleware) LoginHandler() app.HandlerFunc {
	if m.jwt == nil {
		return nil
	}
	return m.jwt.LoginHandler
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func newJWT(cfg config.MiddlewareConfig) (*jwt.HertzJWTMiddleware, error) {
	if cfg.JWTKey == "" {
		return nil, errors.New("启用 auth 时必须配置 jwt_key")
	}
	timeout := parseDuration(cfg.JWTTimeout, time.Hour)
	maxRefresh := parseDuration(cfg.JWTMaxRefresh, time.Hour)
	keys := cfg.APIKeys

	authMw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "course-rag",
		Key:         []byte(cfg.JWTKey),
		Timeout:     timeout,
		MaxRefresh:  maxRefresh,
		IdentityKey: IdentityKey,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if id, ok := data.(string); ok {
				return jwt.MapClaims{IdentityKey: id}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			id, _ := claims[IdentityKey].(string)
			return id
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := c.BindJSON(&req); err != nil || req.APIKey == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			for i, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(req.APIKey)) == 1 {
					return fmt.Sprintf("key-%d", i), nil
				}
			}
			return nil, jwt.ErrFailedAuthentication
		},
		LoginResponse: func(ctx context.Context, c *app.RequestContext, code int, token string, expire time.Time) {
			c.JSON(consts.StatusOK, utils.H{
				"token":  token,
				"expire": expire.Format(time.RFC3339),
			})
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, utils.H{"error": message})
		},
		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 JWT 中间件失败: %w", err)
	}
	return authMw, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
