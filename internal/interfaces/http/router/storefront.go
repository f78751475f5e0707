package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/catalogsync/internal/interfaces/http/handler"
)

// StorefrontRoutes builds the /storefront group. importGuards run before the
// import handler only, typically a per-client rate limit.
func StorefrontRoutes(imports *handler.StorefrontImportHandler, system *handler.SystemHandler, importGuards ...gin.HandlerFunc) *Group {
	importChain := append(append([]gin.HandlerFunc{}, importGuards...), imports.Import)
	return NewGroup("/storefront").
		Handle(http.MethodGet, "/health", system.Health).
		Handle(http.MethodPost, "/import", importChain...).
		Handle(http.MethodGet, "/imports", imports.ListImports)
}

// SystemRoutes builds the /system group
func SystemRoutes(system *handler.SystemHandler) *Group {
	return NewGroup("/system").
		Handle(http.MethodGet, "/info", system.GetSystemInfo)
}
