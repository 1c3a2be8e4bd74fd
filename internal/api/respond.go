package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/auth"
	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/kml"
	"github.com/kgm-ocak/ocak-map/internal/quarry"
	"github.com/kgm-ocak/ocak-map/internal/store"
	"github.com/kgm-ocak/ocak-map/pkg/directions"
)

var (
	errBadRequest      = eris.New("bad request")
	errPayloadTooLarge = eris.New("payload too large")
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorKind struct {
	target error
	status int
	kind   string
}

// errorKinds is checked in order; more specific sentinels come first.
var errorKinds = []errorKind{
	{kml.ErrUnsupportedFileFormat, http.StatusUnsupportedMediaType, "UnsupportedFileFormat"},
	{kml.ErrNoKMLInArchive, http.StatusUnprocessableEntity, "NoKmlInArchive"},
	{kml.ErrMalformedDocument, http.StatusUnprocessableEntity, "MalformedDocument"},
	{quarry.ErrNoPlacemarks, http.StatusUnprocessableEntity, "NoPlacemarks"},
	{quarry.ErrInvalidRecord, http.StatusBadRequest, "InvalidRecord"},
	{geo.ErrMalformedCoordinates, http.StatusBadRequest, "MalformedCoordinates"},
	{directions.ErrInvalidCoordinates, http.StatusBadRequest, "MalformedCoordinates"},
	{quarry.ErrProvinceNotFound, http.StatusNotFound, "ProvinceNotFound"},
	{directions.ErrNoRoute, http.StatusNotFound, "NoRouteFound"},
	{directions.ErrProviderUnavailable, http.StatusServiceUnavailable, "RouteProviderUnavailable"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
	{auth.ErrNotApproved, http.StatusForbidden, "NotApproved"},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{auth.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{auth.ErrInvalidUser, http.StatusBadRequest, "InvalidUser"},
	{store.ErrNotFound, http.StatusNotFound, "NotFound"},
	{store.ErrConflict, http.StatusConflict, "Conflict"},
	{errPayloadTooLarge, http.StatusRequestEntityTooLarge, "PayloadTooLarge"},
	{errBadRequest, http.StatusBadRequest, "BadRequest"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

// writeError maps err to its HTTP status and error kind. Unknown errors are
// logged in full and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = eris.Wrap(errPayloadTooLarge, err.Error())
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			writeJSON(w, k.status, errorBody{Error: k.kind, Message: err.Error()})
			return
		}
	}

	zap.L().Error("api: unhandled error",
		zap.String("component", "api"),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "Internal",
		Message: "internal server error",
	})
}

// decodeJSON reads a JSON body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return eris.Wrap(errPayloadTooLarge, "api: request body")
		}
		return eris.Wrapf(errBadRequest, "api: decode body: %s", err.Error())
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Wrapf(errBadRequest, "api: invalid id %q", raw)
	}
	return id, nil
}
