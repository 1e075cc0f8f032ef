package api

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// OpenAPIPath is where the generated document is served.
const OpenAPIPath = "/openapi.json"

type collectionDoc struct {
	name   string
	record any
	create any
	update any
}

var collectionDocs = []collectionDoc{
	{database.CollectionUsers, schema.UserRecord{}, schema.CreateUserRequest{}, schema.UpdateUserRequest{}},
	{database.CollectionSessions, schema.SessionRecord{}, schema.CreateSessionRequest{}, schema.CreateSessionRequest{}},
	{database.CollectionListings, schema.ListingRecord{}, schema.ListingRecord{}, schema.ListingRecord{}},
	{database.CollectionData, nil, nil, nil},
}

// OpenAPI builds the OpenAPI 3 description of the routes this server serves.
func (s *Server) OpenAPI() (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       s.settings.AppName,
			Description: s.settings.AppDescription,
			Version:     s.settings.AppVersion,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	b := &docBuilder{doc: doc}
	ping := b.ref("PingResponse", schema.PingResponse{})
	errResp := b.ref("ErrorResponse", schema.ErrorResponse{})
	success := b.ref("SuccessResponse", schema.SuccessResponse{})
	status := b.ref("DatabaseStatus", schema.DatabaseStatus{})
	page := b.ref("ListPage", schema.ListPage{})
	if b.err != nil {
		return nil, b.err
	}

	p := s.prefix
	b.get("/health", "health", "Liveness probe", nil)
	b.get(p+"/ping", "ping", "Ping", ping)
	b.get(p+"/health", "apiHealth", "Detailed health", ping)
	b.get(p+"/database/status", "databaseStatus", "Record counts per collection", status)
	b.get(p+"/database/export", "databaseExport", "Export every collection", nil)
	b.post(p+"/database/reset", "databaseReset", "Empty every collection", nil, success, errResp)
	b.post(p+"/database/import", "databaseImport", "Replace every collection", openapi3.NewObjectSchema().NewRef(), success, errResp)

	search := b.op("searchListings", "Search listings with an expression", page, errResp)
	search.AddParameter(openapi3.NewQueryParameter(paramQuery).WithRequired(true).WithSchema(openapi3.NewStringSchema()))
	addPageParams(search)
	b.doc.AddOperation(p+"/listings/search", http.MethodGet, search)

	for _, c := range collectionDocs {
		record, create, update := openapi3.NewObjectSchema().NewRef(), openapi3.NewObjectSchema().NewRef(), openapi3.NewObjectSchema().NewRef()
		if c.record != nil {
			title := exportedName(c.name)
			record = b.ref(title+"Record", c.record)
			create = b.ref(title+"Create", c.create)
			update = b.ref(title+"Update", c.update)
		}
		if b.err != nil {
			return nil, b.err
		}

		list := b.op("list_"+c.name, "List "+c.name, page, errResp)
		addPageParams(list)
		doc.AddOperation(p+"/"+c.name, http.MethodGet, list)

		createOp := b.op("create_"+c.name, "Create a record in "+c.name, nil, errResp)
		createOp.AddResponse(http.StatusCreated, openapi3.NewResponse().WithDescription("Created").WithJSONSchemaRef(record))
		createOp.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(create)}
		doc.AddOperation(p+"/"+c.name, http.MethodPost, createOp)

		item := p + "/" + c.name + "/{id}"
		get := b.op("get_"+c.name, "Fetch a record from "+c.name, record, errResp)
		put := b.op("update_"+c.name, "Update a record in "+c.name, record, errResp)
		put.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(update)}
		del := b.op("delete_"+c.name, "Delete a record from "+c.name, success, errResp)
		for _, op := range []*openapi3.Operation{get, put, del} {
			op.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
		}
		doc.AddOperation(item, http.MethodGet, get)
		doc.AddOperation(item, http.MethodPut, put)
		doc.AddOperation(item, http.MethodDelete, del)
	}

	return doc, nil
}

type docBuilder struct {
	doc *openapi3.T
	err error
}

// ref generates a component schema for v and returns a reference to it.
func (b *docBuilder) ref(name string, v any) *openapi3.SchemaRef {
	if b.err != nil {
		return nil
	}
	generated, err := openapi3gen.NewSchemaRefForValue(v, b.doc.Components.Schemas)
	if err != nil {
		b.err = fmt.Errorf("generate schema %s: %w", name, err)
		return nil
	}
	b.doc.Components.Schemas[name] = generated
	return openapi3.NewSchemaRef("#/components/schemas/"+name, generated.Value)
}

func (b *docBuilder) op(id, summary string, ok, errResp *openapi3.SchemaRef) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	if ok != nil {
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("OK").WithJSONSchemaRef(ok))
	}
	if errResp != nil {
		op.AddResponse(0, openapi3.NewResponse().WithDescription("Error").WithJSONSchemaRef(errResp))
	}
	return op
}

func (b *docBuilder) get(path, id, summary string, ok *openapi3.SchemaRef) {
	op := b.op(id, summary, ok, nil)
	if ok == nil {
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("OK"))
	}
	b.doc.AddOperation(path, http.MethodGet, op)
}

func (b *docBuilder) post(path, id, summary string, body, ok, errResp *openapi3.SchemaRef) {
	op := b.op(id, summary, ok, errResp)
	if body != nil {
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(body)}
	}
	b.doc.AddOperation(path, http.MethodPost, op)
}

func addPageParams(op *openapi3.Operation) {
	op.AddParameter(openapi3.NewQueryParameter(paramSkip).WithSchema(openapi3.NewIntegerSchema().WithMin(0)))
	op.AddParameter(openapi3.NewQueryParameter(paramLimit).WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithMax(MaxLimit)))
}

func exportedName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := s.OpenAPI()
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		s.writeInternalError(w, r, fmt.Errorf("marshal openapi document: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}} {{.Version}}</h1>
<p>{{.Description}}</p>
<p>OpenAPI document: <a href="{{.SpecURL}}">{{.SpecURL}}</a></p>
<ul>
{{range .Endpoints}}<li><code>{{.}}</code></li>
{{end}}</ul>
</body>
</html>
`))

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	doc, err := s.OpenAPI()
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	var endpoints []string
	for _, path := range doc.Paths.InMatchingOrder() {
		for method := range doc.Paths.Value(path).Operations() {
			endpoints = append(endpoints, method+" "+path)
		}
	}
	slices.Sort(endpoints)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = docsPage.Execute(w, map[string]any{
		"Title":       s.settings.AppName,
		"Version":     s.settings.AppVersion,
		"Description": s.settings.AppDescription,
		"SpecURL":     OpenAPIPath,
		"Endpoints":   endpoints,
	})
	if err != nil {
		logging.FromContext(r.Context(), s.log).Warn("failed to render docs page", "error", err)
	}
}
