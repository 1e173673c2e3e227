package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger.Error().Err(err).Msg("api: failed to encode response body")
	}
}

// writeError maps err to its apierr.Kind's HTTP status, via apierr.KindOf
// (defaulting to Internal for an error this package didn't construct).
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	status := apierr.HTTPStatus(kind)
	if status >= 500 {
		log.Logger.Error().Err(err).Str("kind", string(kind)).Msg("api: request failed")
	}
	writeJSON(w, status, map[string]string{"error": string(kind), "message": err.Error()})
}

// decodeJSON decodes r's body into v. A missing or empty body is not an
// error — every caller's request DTO has all-optional fields, so a
// caller that omits the body entirely gets the zero value rather than a
// 400.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apierr.Wrap(apierr.Invalid, "malformed request body", err)
	}
	return nil
}
