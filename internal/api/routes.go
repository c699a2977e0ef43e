package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Catalog
	mux.Handle("GET /api/v1/catalog/packages", chain(http.HandlerFunc(h.ListCatalogPackages)))
	mux.Handle("GET /api/v1/catalog/packages/{name}", chain(http.HandlerFunc(h.GetCatalogPackage)))

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("POST /api/v1/pipelines/import", chain(http.HandlerFunc(h.ImportPipeline)))
	mux.Handle("GET /api/v1/pipelines/{name}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{name}", chain(http.HandlerFunc(h.DeletePipeline)))
	mux.Handle("GET /api/v1/pipelines/{name}/export", chain(http.HandlerFunc(h.ExportPipeline)))
	mux.Handle("GET /api/v1/pipelines/{name}/analysis", chain(http.HandlerFunc(h.AnalyzePipeline)))
	mux.Handle("PUT /api/v1/pipelines/{name}/environment", chain(http.HandlerFunc(h.LinkEnvironment)))

	// Pipeline packages
	mux.Handle("POST /api/v1/pipelines/{name}/packages", chain(http.HandlerFunc(h.AddPackage)))
	mux.Handle("PUT /api/v1/pipelines/{name}/packages/order", chain(http.HandlerFunc(h.ReorderPackages)))
	mux.Handle("PUT /api/v1/pipelines/{name}/packages/{pkg}", chain(http.HandlerFunc(h.ConfigurePackage)))
	mux.Handle("DELETE /api/v1/pipelines/{name}/packages/{pkg}", chain(http.HandlerFunc(h.RemovePackage)))

	// Environments
	mux.Handle("GET /api/v1/environments", chain(http.HandlerFunc(h.ListEnvironments)))
	mux.Handle("POST /api/v1/environments", chain(http.HandlerFunc(h.BuildEnvironment)))
	mux.Handle("GET /api/v1/environments/{name}", chain(http.HandlerFunc(h.GetEnvironment)))
	mux.Handle("DELETE /api/v1/environments/{name}", chain(http.HandlerFunc(h.DeleteEnvironment)))
	mux.Handle("POST /api/v1/environments/{name}/copy", chain(http.HandlerFunc(h.CopyEnvironment)))
	mux.Handle("PUT /api/v1/environments/{name}/variables", chain(http.HandlerFunc(h.ConfigureEnvironment)))

	// Executions
	mux.Handle("POST /api/v1/pipelines/{name}/executions", chain(http.HandlerFunc(h.StartExecution)))
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("POST /api/v1/executions/{id}/stop", chain(http.HandlerFunc(h.StopExecution)))
	mux.Handle("GET /api/v1/executions/{id}/events", chain(http.HandlerFunc(h.ExecutionEvents)))
	mux.Handle("GET /api/v1/executions/{id}/analysis", chain(http.HandlerFunc(h.AnalyzeExecution)))

	// Checkpoints
	mux.Handle("GET /api/v1/executions/{id}/checkpoints", chain(http.HandlerFunc(h.ListCheckpoints)))
	mux.Handle("POST /api/v1/executions/{id}/checkpoints", chain(http.HandlerFunc(h.CreateCheckpoint)))
	mux.Handle("GET /api/v1/executions/{id}/checkpoints/latest", chain(http.HandlerFunc(h.LatestCheckpoint)))
	mux.Handle("POST /api/v1/executions/{id}/checkpoints/{seq}/restore", chain(http.HandlerFunc(h.RestoreCheckpoint)))
	mux.Handle("POST /api/v1/executions/{id}/restore", chain(http.HandlerFunc(h.RestoreLatestCheckpoint)))

	// Monitoring
	mux.Handle("GET /api/v1/executions/{id}/nodes", chain(http.HandlerFunc(h.ExecutionNodes)))
	mux.Handle("GET /api/v1/executions/{id}/nodes/{node}/logs", chain(http.HandlerFunc(h.NodeLogs)))
	mux.Handle("GET /api/v1/executions/{id}/logs/stream", chain(http.HandlerFunc(h.StreamLogs)))
}
