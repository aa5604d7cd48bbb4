package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

const (
	bearerPrefix   = "Bearer "
	authHeader     = "Authorization"
	userContextKey = "user"
)

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	})
}

// compression gzips responses for clients that accept it. The health probe stays uncompressed.
func compression(basePath string) gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{basePath + "/health"}))
}

// securityHeaders sets the browser hardening headers. The server speaks plain HTTP on
// localhost, so HSTS and the SSL redirect stay off.
func securityHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		SSLRedirect:           false,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		IENoOpen:              true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	})
}

func loggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return slogGin.NewWithConfig(logger.WithGroup("http"), slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

// rateLimiter keeps its own memory store so that separate servers never share budgets.
func rateLimiter(formattedRate string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, err
	}

	l := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(
		l,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.PureJSON(http.StatusTooManyRequests, apiError{
				Code:    codeRateLimited,
				Message: "rate limit exceeded",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			c.PureJSON(http.StatusInternalServerError, apiError{
				Code:    codeInternalError,
				Message: err.Error(),
			})
		}),
	), nil
}

// jwtAuth rejects requests without a valid access token. Expired tokens get TOKEN_EXPIRED so
// that clients know a refresh may help.
func jwtAuth(tokens *tokenIssuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value := ctx.GetHeader(authHeader)
		if value == "" {
			abortUnauthorized(ctx, codeUnauthorized, "Authorization header is missing")
			return
		}

		if !strings.HasPrefix(value, bearerPrefix) {
			abortUnauthorized(ctx, codeUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		token := strings.TrimPrefix(value, bearerPrefix)
		if token == "" {
			abortUnauthorized(ctx, codeUnauthorized, "Token is missing")
			return
		}

		c, err := tokens.validateAccess(token)
		if errors.Is(err, errTokenExpired) {
			abortUnauthorized(ctx, codeTokenExpired, "Token expired")
			return
		} else if err != nil {
			abortUnauthorized(ctx, codeUnauthorized, err.Error())
			return
		}

		ctx.Set(userContextKey, c.Subject)
		ctx.Next()
	}
}

func abortUnauthorized(ctx *gin.Context, code, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: code, Message: message})
}
