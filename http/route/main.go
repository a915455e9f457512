package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-kv-orchestrator/http/controller"
	middlewares "github.com/tnqbao/gau-kv-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1/kv")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.POST("/", ctrl.SubmitJob)
			jobRoutes.GET("/", ctrl.ListJobs)
			jobRoutes.GET("/:id", ctrl.GetJob)
			jobRoutes.GET("/:id/events", ctrl.GetJobEvents)
			jobRoutes.GET("/:id/download", ctrl.DownloadExport)
			jobRoutes.POST("/:id/cancel", ctrl.CancelJob)
		}

		collectionRoutes := apiRoutes.Group("/collections")
		{
			collectionRoutes.GET("/", ctrl.ListCollections)
			collectionRoutes.GET("/:collection_id/keys", ctrl.ListKeys)
			collectionRoutes.GET("/:collection_id/values/:key", ctrl.GetValue)
			collectionRoutes.PUT("/:collection_id/values/:key", ctrl.PutValue)
			collectionRoutes.DELETE("/:collection_id/values/:key", ctrl.DeleteValue)
			collectionRoutes.GET("/:collection_id/audit-logs", ctrl.ListAuditLogs)
			collectionRoutes.GET("/:collection_id/artifacts", ctrl.ListArchiveArtifacts)
		}

		adminRoutes := apiRoutes.Group("/admin")
		{
			adminRoutes.GET("/archive/stats", ctrl.GetArchiveUsage)
		}
	}
	return r
}
