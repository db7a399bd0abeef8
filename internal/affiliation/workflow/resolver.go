package workflow

import (
	"context"
	"errors"
	"strconv"

	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/models"
	"go.uber.org/zap"
)

// requesterRule extracts a requester identifier from one of the field
// shapes the backend is known to use.
type requesterRule struct {
	field   string
	extract func(raw map[string]interface{}) string
}

// requesterRules is the priority order for resolving "who requested
// this company". Upstream records may carry several of these fields at
// once with different values; the order is part of the upstream
// contract and must not be reshuffled. Embedded user objects are the
// most authoritative, then the flat id variants of the same name, then
// the solicitante/creador synonyms.
var requesterRules = []requesterRule{
	{"usuario", objectID("usuario")},
	{"usuarioId", flatID("usuarioId")},
	{"usuario_id", flatID("usuario_id")},
	{"solicitante", objectID("solicitante")},
	{"solicitanteId", flatID("solicitanteId")},
	{"solicitante_id", flatID("solicitante_id")},
	{"creador", objectID("creador")},
	{"creadorId", flatID("creadorId")},
	{"creador_id", flatID("creador_id")},
	{"creado_por", flatID("creado_por")},
}

func flatID(key string) func(map[string]interface{}) string {
	return func(raw map[string]interface{}) string {
		return idString(raw[key])
	}
}

func objectID(key string) func(map[string]interface{}) string {
	return func(raw map[string]interface{}) string {
		obj, ok := raw[key].(map[string]interface{})
		if !ok {
			return ""
		}
		if id := idString(obj["id"]); id != "" {
			return id
		}
		return idString(obj["_id"])
	}
}

// idString normalizes the identifier encodings seen upstream. JSON
// numbers arrive as float64; the backend only ever uses integral ids.
func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

// ExtractRequester returns the requester identifier from the raw
// upstream object, or "" when no known field shape yields one.
func ExtractRequester(raw map[string]interface{}) string {
	for _, rule := range requesterRules {
		if id := rule.extract(raw); id != "" {
			return id
		}
	}
	return ""
}

// RecordFetcher fetches the full affiliation record by id.
type RecordFetcher interface {
	FetchAffiliation(ctx context.Context, id string) (*models.Record, error)
}

// Resolver produces the best-effort identifier of the user who
// submitted an affiliation request. An unresolvable requester is a
// normal outcome, not an error: the caller skips promotion.
type Resolver struct {
	fetcher RecordFetcher
	logger  *zap.Logger
}

// NewResolver constructs a Resolver backed by the given fetcher.
func NewResolver(fetcher RecordFetcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  logger.Named("resolver"),
	}
}

// Resolve extracts the requester id from the in-hand record. When the
// record is a partial projection and carries no requester field, it
// fetches the full record once and repeats the extraction. It never
// performs more than one fallback fetch.
func (r *Resolver) Resolve(ctx context.Context, record *models.Record) (string, error) {
	if id := ExtractRequester(record.Raw); id != "" {
		return id, nil
	}
	if record.Complete {
		return "", nil
	}

	full, err := r.fetcher.FetchAffiliation(ctx, record.ID)
	if err != nil {
		if errors.Is(err, e.ErrUnauthorized) {
			return "", err
		}
		// A failed fallback fetch leaves the requester unresolved; the
		// approval must not be affected by it.
		r.logger.Warn("fallback fetch failed, requester unresolved",
			zap.Error(err),
			zap.String("company_id", record.ID),
		)
		return "", nil
	}
	return ExtractRequester(full.Raw), nil
}
