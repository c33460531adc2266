package main

import (
	"connectwork/src/boot"
	"connectwork/src/middlewares"
	"connectwork/src/types"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func paymentHandlers(g *gin.RouterGroup, app *boot.App) *gin.RouterGroup {
	g.
		POST("/payments/checkout", func(ctx *gin.Context) {
			var body types.CheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			userID, _ := middlewares.UserID(ctx)
			res, status, err := app.Payments.Checkout(ctx.Request.Context(), userID, &body)
			if err != nil {
				log.Printf("Error on Checkout: %s\n", err.Error())
			}
			ctx.JSON(status, res)
		}).
		GET("/payments/checkout/:checkoutId", func(ctx *gin.Context) {
			var params types.CheckoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID, _ := middlewares.UserID(ctx)
			res, status, err := app.Payments.CheckoutStatus(ctx.Request.Context(), userID, params.CheckoutRequestID)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, res)
		}).
		DELETE("/payments/checkout/:checkoutId", func(ctx *gin.Context) {
			var params types.CheckoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID, _ := middlewares.UserID(ctx)
			sess, status, err := app.Payments.CancelCheckout(ctx.Request.Context(), userID, params.CheckoutRequestID)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"session": sess})
		}).
		GET("/payments/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID, _ := middlewares.UserID(ctx)
			payment, status, err := app.Payments.GetPayment(ctx.Request.Context(), userID, uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"payment": payment})
		}).
		GET("/jobs/:id/payments", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userID, _ := middlewares.UserID(ctx)
			payments, status, err := app.Payments.ListJobPayments(ctx.Request.Context(), userID, uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"payments": payments})
		})
	return g
}
