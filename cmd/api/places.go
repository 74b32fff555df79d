package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"outsy/internal/domain/places"
	"outsy/internal/shared/geo"
	"outsy/internal/validation"
)

const maxImageBytes = 10 << 20

type createPlacePayload struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Location    geo.Point `json:"location"`
}

// parseSearchFilter reads q, category, radius_km, lat and lng. lat and lng
// only count as a pair.
func parseSearchFilter(q url.Values) (places.SearchFilter, error) {
	f := places.SearchFilter{Query: q.Get("q")}

	if q.Has("category") {
		f = f.WithCategory(q.Get("category"))
	}

	if raw := q.Get("radius_km"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius < 0 || math.IsNaN(radius) {
			return f, fmt.Errorf("invalid radius_km %q", raw)
		}
		f = f.WithRadius(radius)
	}

	lat, lng := q.Get("lat"), q.Get("lng")
	if lat != "" && lng != "" {
		parsedLat, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return f, fmt.Errorf("invalid lat %q", lat)
		}
		parsedLng, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return f, fmt.Errorf("invalid lng %q", lng)
		}
		origin := geo.Point{Lat: parsedLat, Lng: parsedLng}
		if !origin.Valid() {
			return f, errors.New("lat/lng out of range")
		}
		f = f.WithOrigin(origin)
	}
	return f, nil
}

// listPlacesHandler filters the live catalog.
//
//	GET /v1/places?q=&category=&radius_km=&lat=&lng=
func (app *application) listPlacesHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.catalog.Search(filter)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.jsonResponse(w, http.StatusOK, app.catalog.Categories()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createPlaceHandler accepts either a JSON body or a multipart form with a
// "place" JSON field and an optional "image" file.
func (app *application) createPlaceHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r)

	payload, image, err := app.readPlaceForm(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	id, err := app.store.Places.Create(r.Context(), places.NewPlace{
		OwnerID:     claims.Subject,
		Name:        payload.Name,
		Location:    payload.Location,
		Category:    payload.Category,
		Description: payload.Description,
		Image:       image,
	})
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			app.failedValidationResponse(w, r, verrs)
		case errors.Is(err, places.ErrNotAuthenticated):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string]string{"id": id}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) readPlaceForm(w http.ResponseWriter, r *http.Request) (createPlacePayload, []byte, error) {
	var payload createPlacePayload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := readJSON(w, r, &payload); err != nil {
			return payload, nil, err
		}
		return payload, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+maxJSONBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return payload, nil, fmt.Errorf("invalid form: %w", err)
	}

	raw := r.FormValue("place")
	if raw == "" {
		return payload, nil, errors.New("missing place field")
	}
	dec := newStrictDecoder(strings.NewReader(raw))
	if err := dec.Decode(&payload); err != nil {
		return payload, nil, fmt.Errorf("invalid place field: %w", err)
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return payload, nil, nil
	}
	if err != nil {
		return payload, nil, fmt.Errorf("invalid image: %w", err)
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return payload, nil, fmt.Errorf("read image: %w", err)
	}
	if len(image) > maxImageBytes {
		return payload, nil, errors.New("image is too large")
	}
	return payload, image, nil
}

// ownerPlacesHandler lists the caller's places from the live catalog.
func (app *application) ownerPlacesHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r)

	if err := app.jsonResponse(w, http.StatusOK, places.OwnedBy(app.catalog.Places(), claims.Subject)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":  "ok",
		"env":     app.config.Env,
		"version": version,
		"places":  app.catalog.Len(),
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
