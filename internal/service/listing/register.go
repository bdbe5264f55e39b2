package listing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/db"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
)

// Registrar ties the listing service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	g := rg.Group("/properties")
	g.GET("", handleSearch(svc))
	g.POST("", handleCreate(svc))
	g.GET("/mine", handleMine(svc))
}

func handleSearch(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := repository.PropertyQuery{Area: c.Query("area")}
		if v := c.Query("max_rent"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				q.MaxRent = &n
			}
		}
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				q.Limit = n
			}
		}

		props, err := svc.Search(c.Request.Context(), q)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"properties": props})
	}
}

func handleCreate(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p db.Property
		if err := c.ShouldBindJSON(&p); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}

		id, err := svc.CreateProperty(c.Request.Context(), c.GetString("uid"), &p)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func handleMine(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		props, err := svc.Mine(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"properties": props})
	}
}
