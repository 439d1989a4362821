package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateClass is the single class holding every namespace.
const WeaviateClass = "SprintSwarmVector"

// objectSpace seeds the UUIDv5 derivation of Weaviate object ids, which must be UUIDs.
var objectSpace = uuid.MustParse("8a3f7c52-2d1e-5b94-a6c0-71e4d9b2f013")

func objectID(namespace, id string) string {
	return uuid.NewSHA1(objectSpace, []byte(namespace+"/"+id)).String()
}

// WeaviateIndex implements Index on a Weaviate class. Namespaces are a filterable
// property; the caller's id and metadata are stored as properties.
type WeaviateIndex struct {
	client *weaviate.Client
	class  string
}

// NewWeaviateIndex creates a client for the Weaviate server at rawURL
// (e.g. "http://localhost:8080").
func NewWeaviateIndex(rawURL string) (*WeaviateIndex, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &WeaviateIndex{client: client, class: WeaviateClass}, nil
}

// InitSchema creates the class if it doesn't exist. Vectors are always
// supplied by the caller, so the class has no vectorizer.
func (w *WeaviateIndex) InitSchema(ctx context.Context) error {
	if _, err := w.client.Schema().ClassGetter().WithClassName(w.class).Do(ctx); err == nil {
		return nil
	}

	class := &models.Class{
		Class:       w.class,
		Description: "SprintSwarm similarity index records",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "namespace", DataType: []string{"text"}, Tokenization: "field", Description: "Index namespace"},
			{Name: "key", DataType: []string{"text"}, Tokenization: "field", Description: "Record id within the namespace"},
			{Name: "metadata", DataType: []string{"text"}, Description: "JSON encoded metadata"},
		},
	}

	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create weaviate class %s: %w", w.class, err)
	}
	return nil
}

// Upsert writes rec through the batch API, which replaces objects with the same id.
func (w *WeaviateIndex) Upsert(ctx context.Context, namespace string, rec Record) error {
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	obj := &models.Object{
		Class:  w.class,
		ID:     strfmt.UUID(objectID(namespace, rec.ID)),
		Vector: rec.Vector,
		Properties: map[string]interface{}{
			"namespace": namespace,
			"key":       rec.ID,
			"metadata":  string(meta),
		},
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return unavailable("upsert object", err)
	}

	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return unavailable("upsert object", errors.New(item.Result.Errors.Error[0].Message))
		}
	}
	return nil
}

type weaviateHit struct {
	Key        string `json:"key"`
	Metadata   string `json:"metadata"`
	Additional struct {
		Certainty float32 `json:"certainty"`
	} `json:"_additional"`
}

// Query runs a nearVector search restricted to namespace.
// Certainty is used as the score because it is always in [0,1].
func (w *WeaviateIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	where := filters.Where().
		WithPath([]string{"namespace"}).
		WithOperator(filters.Equal).
		WithValueText(namespace)

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "key"},
		{Name: "metadata"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(fields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, unavailable("search objects", err)
	}
	if len(result.Errors) > 0 {
		return nil, unavailable("search objects", errors.New(result.Errors[0].Message))
	}

	raw, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql response: %w", err)
	}
	var parsed struct {
		Get map[string][]weaviateHit `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse graphql response: %w", err)
	}

	hits := parsed.Get[w.class]
	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		meta, err := decodeMetadata([]byte(hit.Metadata))
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", hit.Key, err)
		}
		matches = append(matches, Match{ID: hit.Key, Score: hit.Additional.Certainty, Metadata: meta})
	}
	return matches, nil
}

// Fetch returns the record stored under id, including its vector.
func (w *WeaviateIndex) Fetch(ctx context.Context, namespace, id string) (*Record, error) {
	objs, err := w.client.Data().ObjectsGetter().
		WithClassName(w.class).
		WithID(objectID(namespace, id)).
		WithVector().
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%s/%s: %w", namespace, id, ErrNotFound)
		}
		return nil, unavailable("fetch object", err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", namespace, id, ErrNotFound)
	}

	rec := &Record{ID: id, Vector: objs[0].Vector, Metadata: Metadata{}}
	if props, ok := objs[0].Properties.(map[string]interface{}); ok {
		if text, ok := props["metadata"].(string); ok {
			if rec.Metadata, err = decodeMetadata([]byte(text)); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
			}
		}
	}
	return rec, nil
}

// Delete removes ids from namespace. Objects that are already gone are ignored.
func (w *WeaviateIndex) Delete(ctx context.Context, namespace string, ids ...string) error {
	for _, id := range ids {
		err := w.client.Data().Deleter().
			WithClassName(w.class).
			WithID(objectID(namespace, id)).
			Do(ctx)
		if err != nil && !isNotFoundError(err) {
			return unavailable("delete object", err)
		}
	}
	return nil
}

// Close is a no-op; the Weaviate client holds no pooled resources.
func (w *WeaviateIndex) Close() error {
	return nil
}

// isNotFoundError checks if a Weaviate error indicates an object was not found.
func isNotFoundError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404") ||
		strings.Contains(msg, "does not exist")
}

var _ Index = (*WeaviateIndex)(nil)
