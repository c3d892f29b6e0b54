package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom/internal/orgcontext"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
)

const (
	HeaderOrg  = "X-Org-ID"
	HeaderRole = "X-Org-Role"
	HeaderUser = "X-User-ID"

	contextUserIDKey = "user_id"
)

// OrgContext resolves the active organization from the request header,
// falling back to the configured default for single-tenant deployments.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))

		var orgID snowflake.ID
		if raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, ErrInvalidRequest)
				return
			}
			orgID = parsed
		} else if s.cfg.DefaultOrgID != 0 {
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
		} else {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		if role := strings.TrimSpace(c.GetHeader(HeaderRole)); role != "" {
			ctx = orgcontext.WithRole(ctx, role)
		}
		c.Request = c.Request.WithContext(ctx)

		if userID := strings.TrimSpace(c.GetHeader(HeaderUser)); userID != "" {
			c.Set(contextUserIDKey, userID)
		}

		c.Next()
	}
}

func (s *Server) actor(c *gin.Context) string {
	if userID := c.GetString(contextUserIDKey); userID != "" {
		return "user:" + userID
	}
	return ""
}

// authorize enforces role policy for the calling user. Requests without a
// user identity are service-to-service calls and pass through.
func (s *Server) authorize(c *gin.Context, object, action string) error {
	actor := s.actor(c)
	if actor == "" {
		return nil
	}
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor, orgID.String(), object, action)
}

func (s *Server) findStory(c *gin.Context, orgID snowflake.ID, raw string) (*storydomain.Story, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return nil, ErrInvalidRequest
	}
	story, err := s.storyRepo.FindByID(c.Request.Context(), s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, ErrNotFound
	}
	return story, nil
}
