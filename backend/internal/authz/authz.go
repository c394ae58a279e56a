package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

const (
	roleKey        = "authz.role"
	collectionsKey = "authz.collections."
)

// RoleStore resolves credentials and collection access.
type RoleStore interface {
	RoleByAPIKey(ctx context.Context, key string) (*model.Role, error)
	CollectionIDs(ctx context.Context, role *model.Role, action string) ([]uint, error)
}

// Authz attaches the requesting role to each request.
type Authz struct {
	roles  RoleStore
	logger *zap.Logger
}

func New(roles RoleStore) *Authz {
	return &Authz{roles: roles, logger: logger.For("authz")}
}

// Middleware resolves "Authorization: ApiKey <key>" or the api_key query
// argument. Requests without credentials continue anonymously; unknown keys
// are rejected with 401.
func (a *Authz) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := apiKey(c.Request)
		if key == "" {
			c.Next()
			return
		}

		role, err := a.roles.RoleByAPIKey(c.Request.Context(), key)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				a.logger.Error("Failed to resolve API key", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("authz_failed", "could not resolve credentials"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", apperrors.ErrUnauthorized.Message))
			return
		}

		c.Set(roleKey, role)
		c.Next()
	}
}

// Role returns the role of the request, or nil when anonymous.
func Role(c *gin.Context) *model.Role {
	if v, ok := c.Get(roleKey); ok {
		if role, ok := v.(*model.Role); ok {
			return role
		}
	}
	return nil
}

// RequestCollections lists the collections the request's role may access
// for action ("read" or "write"). The answer is memoised per request.
func (a *Authz) RequestCollections(c *gin.Context, action string) ([]uint, error) {
	if v, ok := c.Get(collectionsKey + action); ok {
		if ids, ok := v.([]uint); ok {
			return ids, nil
		}
	}
	ids, err := a.roles.CollectionIDs(c.Request.Context(), Role(c), action)
	if err != nil {
		return nil, err
	}
	c.Set(collectionsKey+action, ids)
	return ids, nil
}

func apiKey(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, value, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "apikey") {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"message": message, "code": code}}
}
