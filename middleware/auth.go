package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextDisplayNameKey stores the display name inside Gin context.
	ContextDisplayNameKey = "display_name"
	// ContextAvatarKey stores the avatar URL inside Gin context.
	ContextAvatarKey = "avatar"
)

// AuthRequired ensures the request carries a valid identity token.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := claimsFromHeader(ctx)
		if !ok {
			ctx.Abort()
			return
		}
		setIdentity(ctx, claims)
		ctx.Next()
	}
}

// AuthOptional resolves identity when a token is present so read endpoints
// can render viewer-relative state, but lets anonymous requests through.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			ctx.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			ctx.Next()
			return
		}
		if claims, err := utils.ParseToken(strings.TrimSpace(parts[1])); err == nil {
			setIdentity(ctx, claims)
		}
		ctx.Next()
	}
}

func claimsFromHeader(ctx *gin.Context) (*utils.Claims, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		return nil, false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		return nil, false
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "invalid token")
		return nil, false
	}
	return claims, true
}

func setIdentity(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextDisplayNameKey, claims.DisplayName)
	ctx.Set(ContextAvatarKey, claims.Avatar)
}
