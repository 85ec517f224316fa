package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupRoutes enforces the sandbox routes. The books routes follow the
// contract consumed by the client.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *Middlewares) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.NotFound = api.NotFound()

	router.GET("/", m.Chain(api.Index))
	router.GET("/status", m.Chain(api.Status))

	router.POST("/"+BooksPath, m.Chain(api.CreateBook))
	router.GET("/"+BooksPath, m.Chain(api.GetAllBooks))
	router.GET("/"+BooksPath+"/:id", m.Chain(api.GetOneBook))
	router.PUT("/"+BooksPath+"/:id", m.Chain(api.UpdateBook))
	router.DELETE("/"+BooksPath+"/:id", m.Chain(api.DeleteOneBook))

	router.GET("/ops/metrics", m.Chain(api.Metrics))
	return router
}
