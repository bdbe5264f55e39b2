package discover

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flatfinder/flatfinder/internal/app"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
)

// Registrar ties the discover service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the discover service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the discover endpoints to the router group
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	g := rg.Group("/discover")
	g.GET("/candidates", handleCandidates(svc))
	g.POST("/swipes", handleSwipe(svc))
	g.GET("/liked-you", handleLikedYou(svc, false))
	g.GET("/liked-you/new", handleLikedYou(svc, true))
	g.GET("/liked-you/count", handleLikedYouCount(svc))
	g.GET("/filters", handleLoadFilters(svc))
	g.PUT("/filters", handleSaveFilters(svc))

	rg.GET("/profiles/me", handleGetProfile(svc))
	rg.PATCH("/profiles/me", handleUpdateProfile(svc))
}

func parseFilters(c *gin.Context) Filters {
	var f Filters
	f.Area = c.Query("area")
	if v := c.Query("max_budget"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MaxBudget = &n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	return f
}

func handleCandidates(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString("uid")

		f := parseFilters(c)
		if c.Query("area") == "" && c.Query("max_budget") == "" {
			// fall back to the saved filter document when the request
			// carries no explicit criteria
			if saved, err := svc.LoadFilters(c.Request.Context(), uid); err == nil {
				if f.Limit > 0 {
					saved.Limit = f.Limit
				}
				f = saved
			}
		}

		candidates, err := svc.LoadCandidates(c.Request.Context(), uid, f)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"candidates": candidates})
	}
}

func handleSwipe(svc *Service) gin.HandlerFunc {
	type swipeRequest struct {
		TargetUID string `json:"target_uid" binding:"required"`
		Dir       string `json:"dir" binding:"required"`
	}
	return func(c *gin.Context) {
		var req swipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}

		result, err := svc.RecordSwipe(c.Request.Context(), c.GetString("uid"), req.TargetUID, req.Dir)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleLikedYou(svc *Service, onlyNew bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString("uid")

		var token *string
		if v := c.Query("page_token"); v != "" {
			token = &v
		}

		var (
			likers []Liker
			next   *string
			err    error
		)
		if onlyNew {
			likers, next, err = svc.ListNewLikedYou(c.Request.Context(), uid, token)
		} else {
			likers, next, err = svc.ListLikedYou(c.Request.Context(), uid, token)
		}
		if err != nil {
			svcErr.Respond(c, err)
			return
		}

		resp := gin.H{"likers": likers}
		if next != nil {
			resp["next_page_token"] = *next
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleLikedYouCount(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := svc.CountLikedYou(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

func handleLoadFilters(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := svc.LoadFilters(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, f)
	}
}

func handleSaveFilters(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f Filters
		if err := c.ShouldBindJSON(&f); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}
		if err := svc.SaveFilters(c.Request.Context(), c.GetString("uid"), f); err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true})
	}
}

func handleGetProfile(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.GetProfile(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		if p == nil {
			svcErr.Respond(c, svcErr.NotFound("profile not created yet"))
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleUpdateProfile(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch repository.ProfilePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}
		if err := svc.UpdateProfile(c.Request.Context(), c.GetString("uid"), patch); err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}
