package httpadapter

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiDocument []byte

var loadAPIRouter = sync.OnceValue(func() routers.Router {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded api description does not parse: %v", err))
	}
	if err := doc.Validate(loader.Context); err != nil {
		panic(fmt.Sprintf("embedded api description is invalid: %v", err))
	}
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		panic(fmt.Sprintf("embedded api description has no routable paths: %v", err))
	}
	return router
})

// requestValidationMiddleware rejects requests that do not match the
// embedded API description before any handler runs. Paths the description
// does not know fall through untouched; the mux answers those.
func requestValidationMiddleware(next http.Handler) http.Handler {
	apiRouter := loadAPIRouter()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := apiRouter.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("invalid parameter %q", reqErr.Parameter.Name)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			return schemaErr.Reason
		}
	}
	return "request does not match the API description"
}
