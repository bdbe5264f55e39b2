package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flatfinder/flatfinder/internal/app"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
)

// Registrar ties the chat service into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the chat service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the chat endpoints to the router group
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	g := rg.Group("/chat")
	g.GET("/groups", handleChatList(svc))
	g.POST("/groups", handleCreateGroup(svc))
	g.GET("/groups/:gid/messages", handleMessages(svc))
	g.POST("/groups/:gid/messages", handleSendMessage(svc))
	g.POST("/groups/:gid/messages/:mid/received", handleMarkReceived(svc))
	g.POST("/groups/:gid/block", handleBlock(svc))
}

func handleChatList(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.ChatList(c.Request.Context(), c.GetString("uid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": entries})
	}
}

func handleCreateGroup(svc *Service) gin.HandlerFunc {
	type createRequest struct {
		Members []string `json:"members" binding:"required,min=1"`
		Name    *string  `json:"name"`
	}
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}

		groupID, err := svc.CreateGroup(c.Request.Context(), c.GetString("uid"), req.Members, req.Name)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"group_id": groupID})
	}
}

func handleMessages(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		msgs, err := svc.Messages(c.Request.Context(), c.GetString("uid"), c.Param("gid"), limit)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func handleSendMessage(svc *Service) gin.HandlerFunc {
	type sendRequest struct {
		Body string `json:"body" binding:"required"`
	}
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			svcErr.Respond(c, svcErr.InvalidArgument(err.Error()))
			return
		}

		msg, err := svc.SendMessage(c.Request.Context(), c.GetString("uid"), c.Param("gid"), req.Body)
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleMarkReceived(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.MarkReceived(c.Request.Context(), c.GetString("uid"), c.Param("gid"), c.Param("mid"))
		if err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func handleBlock(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.BlockUser(c.Request.Context(), c.GetString("uid"), c.Param("gid")); err != nil {
			svcErr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"blocked": true})
	}
}
