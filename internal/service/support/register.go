package support

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flatfinder/flatfinder/internal/app"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
)

// Registrar ties the support service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.POST("/support/tickets", handleCreateTicket(svc))
	rg.GET("/support/tickets", handleListTickets(svc))
	rg.POST("/notifications/tokens", handleRegisterToken(svc))
}

func handleCreateTicket(svc *Service) gin.HandlerFunc {
	type ticketRequest struct {
		Subject string `json:"subject" binding:"required"`
		Body    string `json:"body"`
	}
	return func(c *gin.Context) {
		var req ticketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}

		id, err := svc.CreateTicket(c.Request.Context(), c.GetString("uid"), req.Subject, req.Body)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func handleListTickets(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := svc.ListTickets(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tickets": tickets})
	}
}

func handleRegisterToken(svc *Service) gin.HandlerFunc {
	type tokenRequest struct {
		Token string `json:"token" binding:"required"`
	}
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}
		if err := svc.RegisterToken(c.Request.Context(), c.GetString("uid"), req.Token); err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"registered": true})
	}
}
