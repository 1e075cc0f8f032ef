// Package api is the HTTP layer of listingd.
//
// Handlers are stateless. Each one validates its input, calls a single
// record store operation and maps the result to a JSON response. Every
// error reply uses the same envelope:
//
//	{"success": false, "message": "...", "timestamp": "...", "error_code": "...", "details": {...}}
//
// Routes (prefix defaults to /api):
//
//	GET    /                          application metadata
//	GET    /health                    liveness
//	GET    {prefix}/ping              {"message":"pong","timestamp":...}
//	GET    {prefix}/health            {"message":"healthy","timestamp":...}
//	GET    {prefix}/{collection}      list with equality filters and skip/limit
//	POST   {prefix}/{collection}      create
//	GET    {prefix}/{collection}/{id} fetch one
//	PUT    {prefix}/{collection}/{id} merge update (PATCH is an alias)
//	DELETE {prefix}/{collection}/{id} delete
//	GET    {prefix}/listings/search   expression search over listings
//	       {prefix}/database/...      status, reset, export, import
//	GET    /openapi.json              OpenAPI 3 document
//	GET    /metrics                   Prometheus metrics
package api
