package web

// dto.go holds request bodies and their validation rules.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// updateMappingsRequest replaces every column mapping of a session.
type updateMappingsRequest struct {
	Mappings []mappingDTO `json:"mappings" validate:"required,min=1,dive"`
}

type mappingDTO struct {
	SourceColumn string `json:"sourceColumn"`
	TargetField  string `json:"targetField" validate:"required,max=64"`
}

func (r updateMappingsRequest) toCore() []core.ColumnMapping {
	out := make([]core.ColumnMapping, len(r.Mappings))
	for i, m := range r.Mappings {
		out[i] = core.ColumnMapping{SourceColumn: m.SourceColumn, TargetField: m.TargetField}
	}
	return out
}

// createPresetRequest saves a session's mappings under a name.
type createPresetRequest struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=100"`
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON: " + err.Error())
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return badRequest(describeValidation(verrs))
		}
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}

// describeValidation turns validator errors into one readable sentence.
func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Drop the struct name: "mappings[0].targetField".
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must have at least %s entries", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "uuid":
			parts = append(parts, field+" must be a UUID")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
