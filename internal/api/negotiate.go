package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonapi"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// Media types served by the built-in response factories.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeJSONAPI = jsonapi.MediaType
	MediaTypeAny     = "*/*"
)

// ErrUnsupportedMediaType is returned when no response factory accepts any
// of the media types the client asked for.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// UnsupportedMediaTypeError lists every media type that was tried.
type UnsupportedMediaTypeError struct {
	ContentTypes []string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("All provided media types are unsupported. (%s)", strings.Join(e.ContentTypes, ", "))
}

func (e *UnsupportedMediaTypeError) Unwrap() error {
	return ErrUnsupportedMediaType
}

// ResponseFactory serializes handler payloads in one media type.
type ResponseFactory interface {
	Supports(contentType string, origin domain.Origin) bool
	Write(w http.ResponseWriter, r *http.Request, status int, payload any) error
}

// ResponseFactoryRegistry selects a response factory per request.
// It is not modified after construction.
type ResponseFactoryRegistry struct {
	factories []ResponseFactory
}

// NewResponseFactoryRegistry creates a registry. Factories are consulted in
// the given order.
func NewResponseFactoryRegistry(factories ...ResponseFactory) *ResponseFactoryRegistry {
	return &ResponseFactoryRegistry{factories: append([]ResponseFactory(nil), factories...)}
}

// DefaultResponseFactories returns the JSON:API and plain JSON factories.
func DefaultResponseFactories() *ResponseFactoryRegistry {
	return NewResponseFactoryRegistry(JSONAPIFactory{}, JSONFactory{})
}

// Select returns the first factory that supports one of the acceptable
// media types of r, taken in client preference order. A wildcard never
// matches a factory directly; it appends the default type of the request
// origin to the end of the list.
func (reg *ResponseFactoryRegistry) Select(r *http.Request) (ResponseFactory, error) {
	origin := GetOrigin(r.Context())

	contentTypes := AcceptableContentTypes(r.Header.Get("Accept"))
	for _, ct := range contentTypes {
		if ct == MediaTypeAny {
			contentTypes = append(contentTypes, defaultContentType(origin))
			break
		}
	}

	for _, ct := range contentTypes {
		for _, f := range reg.factories {
			if f.Supports(ct, origin) {
				return f, nil
			}
		}
	}

	return nil, &UnsupportedMediaTypeError{ContentTypes: contentTypes}
}

func defaultContentType(origin domain.Origin) string {
	if origin == domain.OriginStorefrontAPI {
		return MediaTypeJSON
	}
	return MediaTypeJSONAPI
}

// AcceptableContentTypes parses an Accept header into media types ordered
// by quality. Types of equal quality keep the order the client sent them in.
// A missing header accepts anything.
func AcceptableContentTypes(header string) []string {
	// Unlike an empty acceptable list, which would always answer 415, a
	// client sending no Accept header gets the origin default.
	if strings.TrimSpace(header) == "" {
		return []string{MediaTypeAny}
	}

	type accepted struct {
		mediaType string
		quality   float64
	}

	var items []accepted
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		quality := 1.0
		if q, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil {
				quality = v
			}
		}
		items = append(items, accepted{mediaType: mediaType, quality: quality})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].quality > items[j].quality
	})

	types := make([]string, len(items))
	for i, item := range items {
		types[i] = item.mediaType
	}
	return types
}

// JSONFactory writes plain JSON for every origin.
type JSONFactory struct{}

func (JSONFactory) Supports(contentType string, origin domain.Origin) bool {
	return contentType == MediaTypeJSON
}

func (JSONFactory) Write(w http.ResponseWriter, r *http.Request, status int, payload any) error {
	return encode(w, MediaTypeJSON, status, payload)
}

// JSONAPIFactory writes JSON:API documents. Only the admin API speaks it.
type JSONAPIFactory struct{}

func (JSONAPIFactory) Supports(contentType string, origin domain.Origin) bool {
	return contentType == MediaTypeJSONAPI && origin == domain.OriginAPI
}

func (JSONAPIFactory) Write(w http.ResponseWriter, r *http.Request, status int, payload any) error {
	doc, err := jsonAPIDocument(payload)
	if err != nil {
		return err
	}
	return encode(w, MediaTypeJSONAPI, status, doc)
}

var resourceType = reflect.TypeOf((*domain.Resource)(nil)).Elem()

// jsonAPIDocument marshals a Resource or a slice of Resources as primary
// data. Anything else has no resource identity and is sent as top level meta.
func jsonAPIDocument(payload any) (any, error) {
	if _, ok := payload.(domain.Resource); ok {
		doc, err := jsonapi.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resource: %w", err)
		}
		return doc, nil
	}

	if t := reflect.TypeOf(payload); t != nil && t.Kind() == reflect.Slice && t.Elem().Implements(resourceType) {
		doc, err := jsonapi.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resources: %w", err)
		}
		if many, ok := doc.(*jsonapi.ManyPayload); ok {
			many.Meta = &jsonapi.Meta{"total": len(many.Data)}
		}
		return doc, nil
	}

	return metaDocument{Meta: payload}, nil
}

// metaDocument is a JSON:API document without primary data.
type metaDocument struct {
	Meta any `json:"meta"`
}

func encode(w http.ResponseWriter, contentType string, status int, payload any) error {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

type factoryKey struct{}

// NegotiationMiddleware selects the response factory before the handler runs
// and rejects the request with 415 when none fits.
func NegotiationMiddleware(registry *ResponseFactoryRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			factory, err := registry.Select(r)
			if err != nil {
				writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{
					"error": err.Error(),
				})
				return
			}
			ctx := context.WithValue(r.Context(), factoryKey{}, factory)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseFactory returns the negotiated factory, defaulting to plain JSON.
func responseFactory(ctx context.Context) ResponseFactory {
	if f, ok := ctx.Value(factoryKey{}).(ResponseFactory); ok {
		return f
	}
	return JSONFactory{}
}
