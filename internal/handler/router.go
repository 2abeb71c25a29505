package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	RAG *RAGHandler
	// IngestLimit guards the routes that trigger embedding work. Nil disables it.
	IngestLimit gin.HandlerFunc
}

func RegisterRoutes(r gin.IRouter, deps RouterDeps) {
	r.GET("/health", deps.RAG.Health)
	r.POST("/chat", deps.RAG.Chat)

	api := r.Group("/api")
	api.POST("/chat", deps.RAG.Chat)

	heavy := api.Group("")
	if deps.IngestLimit != nil {
		heavy.Use(deps.IngestLimit)
	}
	heavy.POST("/upload", deps.RAG.Upload)
	heavy.POST("/ingest", deps.RAG.Ingest)
}

func NewEngine(deps RouterDeps, middlewares ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares...)
	RegisterRoutes(engine, deps)
	return engine
}
