package main

import (
	"connectwork/src/boot"
	"connectwork/src/config"
	"connectwork/src/lib/mpesa"
	"connectwork/src/middlewares"
	"connectwork/src/types"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	apiPrefix string = "/api/v1"
)

var msisdnValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	phone, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := mpesa.NormalizePhone(phone, config.DefaultCountryCode)
	return err == nil
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("msisdn", msisdnValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.RequestID)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine, enabled bool) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if enabled {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.APIEnv == types.Local {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", middlewares.RequestIDHeader)
	cc.ExposeHeaders = append(cc.ExposeHeaders, middlewares.RequestIDHeader)
	cc.AllowOriginFunc = func(origin string) bool {
		if cfg.AppHost == "" {
			return false
		}
		match, _ := regexp.MatchString(regexp.QuoteMeta(cfg.AppHost)+"$", origin)
		if match {
			return true
		}
		match, _ = regexp.MatchString("app:mobile", origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// newServer builds the HTTP surface around an assembled app.
func newServer(app *boot.App) *gin.Engine {
	registerValidators()

	router := setupRouter()
	router.Use(corsMiddleware(app.Config))
	router = maintenanceModeMiddleware(router, app.Config.MaintenanceMode)

	publicRoutes(router, app)

	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware(app.Config.JWTSecret))
	{
		mpesaHandlers(authorized.Group("/mpesa"), app)
		paymentHandlers(authorized, app)
	}
	return router
}

func publicRoutes(g *gin.Engine, app *boot.App) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	mpesaCallbackRoute(apiv1.Group("/mpesa"), app)
	return apiv1
}

func initLogger(cfg *config.Config) {
	logDir := cfg.LogDir
	if logDir == "" {
		cwd, _ := os.Getwd()
		logDir = path.Join(cwd, "logs")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("Logging to stdout only: %s\n", err.Error())
		return
	}
	if cfg.APIEnv == types.Local {
		gin.ForceConsoleColor()
	}

	apiLogs := &lumberjack.Logger{
		Filename:   path.Join(logDir, "api.log"),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
	gin.DefaultWriter = io.MultiWriter(apiLogs, os.Stdout)
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   path.Join(logDir, "server.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}))
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
