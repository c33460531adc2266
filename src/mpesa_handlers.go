package main

import (
	"connectwork/src/boot"
	"connectwork/src/types"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Callback bodies are small; anything bigger is not from the provider.
const maxCallbackBody = 64 << 10

func mpesaCallbackRoute(g *gin.RouterGroup, app *boot.App) *gin.RouterGroup {
	g.
		POST("/callback", func(ctx *gin.Context) {
			body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxCallbackBody))
			if err != nil {
				log.Printf("[callback] could not read body: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, types.CallbackAck{ResultCode: "1", ResultDesc: err.Error()})
				return
			}
			ack, status := app.MpesaAPI.HandleCallback(ctx.Request.Context(), body)
			ctx.JSON(status, ack)
		})
	return g
}

func mpesaHandlers(g *gin.RouterGroup, app *boot.App) *gin.RouterGroup {
	g.
		POST("/stk-push", func(ctx *gin.Context) {
			var body types.StkPushRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			res, status, err := app.MpesaAPI.StkPush(ctx.Request.Context(), &body)
			if err != nil {
				log.Printf("Error on StkPush: %s\n", err.Error())
			}
			ctx.JSON(status, res)
		}).
		POST("/status", func(ctx *gin.Context) {
			var body types.StatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			res, status, err := app.MpesaAPI.Status(ctx.Request.Context(), body.CheckoutRequestID)
			if err != nil {
				log.Printf("Error on Status: %s\n", err.Error())
			}
			ctx.JSON(status, res)
		})
	return g
}
