package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"hearing-go/internal/handlers"
	"hearing-go/internal/models"
)

// Setup builds the local input surface. language returns the configured default speech language.
func Setup(log *zap.Logger, runner handlers.Runner, lists map[string]models.WordList, language func() string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))
	router.Use(NonceMiddleware())

	router.Use(func(c *gin.Context) {
		if c.GetHeader("HX-Request") != "true" {
			nonce, _ := c.Get(CspNonceContextKey)
			csp := fmt.Sprintf(
				"script-src 'self' https://unpkg.com https://cdn.jsdelivr.net 'nonce-%s'; style-src 'self' 'unsafe-inline'",
				nonce,
			)
			c.Header("Content-Security-Policy", csp)
		}
		c.Next()
	})

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
	})

	sessionHandler := handlers.NewSessionHandler(log, runner, lists, language)
	resultsHandler := handlers.NewResultsHandler(log, runner)

	router.GET("/", sessionHandler.Home)

	test := router.Group("/test")
	{
		test.POST("/start", sessionHandler.Start)
		test.POST("/tutorial", sessionHandler.Tutorial)
		test.POST("/stop", sessionHandler.Stop)
		test.GET("/status", sessionHandler.Status)

		test.POST("/respond", sessionHandler.Input("respond", runner.Respond))
		test.POST("/skip", sessionHandler.Input("skip", runner.Skip))
		test.POST("/dontknow", sessionHandler.Input("dontknow", runner.DontKnow))
		test.POST("/replay", sessionHandler.Input("replay", runner.Replay))
		test.POST("/probe/:tile", sessionHandler.IndexedInput("probe", "tile", runner.Probe))
		test.POST("/confirm/:tile", sessionHandler.IndexedInput("confirm", "tile", runner.Confirm))
		test.POST("/answer/:option", sessionHandler.IndexedInput("answer", "option", runner.Answer))
	}

	results := router.Group("/results")
	{
		results.GET("", resultsHandler.ShowResults)
		results.GET("/export.csv", resultsHandler.ExportCSV)
		results.GET("/export.png", resultsHandler.ExportPNG)
	}

	return router
}
