package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/eventia/affiliations/internal/affiliation/models"
)

// wireID tolerates the backend sending identifiers as either JSON
// strings or numbers.
type wireID string

func (w *wireID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*w = wireID(n.String())
		return nil
	}
	return fmt.Errorf("id must be a string or a number, got %s", data)
}

// recordDTO is the backend's affiliation shape. Only the declared
// fields are typed; the rest of the object (including whichever field
// carries the requester reference) is kept raw for the resolver.
type recordDTO struct {
	ID            wireID        `json:"id"`
	Estado        models.Status `json:"estado"`
	Nombre        string        `json:"nombre"`
	NIT           string        `json:"nit"`
	Direccion     string        `json:"direccion"`
	Telefono      string        `json:"telefono"`
	Correo        string        `json:"correo"`
	MotivoRechazo string        `json:"motivo_rechazo"`
}

// decodeRecord converts one upstream affiliation object into the domain
// record, preserving the raw object for requester resolution.
func decodeRecord(data []byte, complete bool) (*models.Record, error) {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decoding affiliation record: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding affiliation record: %w", err)
	}

	return &models.Record{
		ID:              string(dto.ID),
		Status:          dto.Estado,
		Name:            dto.Nombre,
		TaxID:           dto.NIT,
		Address:         dto.Direccion,
		Phone:           dto.Telefono,
		Email:           dto.Correo,
		RejectionReason: dto.MotivoRechazo,
		Raw:             raw,
		Complete:        complete,
	}, nil
}
