package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"outsy/internal/domain/reviews"
	"outsy/internal/validation"
)

type createReviewPayload struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

type placeReviewsResponse struct {
	Reviews      []reviews.Review `json:"reviews"`
	TotalReviews int              `json:"total_reviews"`
	Average      float64          `json:"average"`
}

func (app *application) createPlaceReviewHandler(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	if _, ok := app.catalog.Find(placeID); !ok {
		app.notFoundResponse(w, r, errors.New("place not found: "+placeID))
		return
	}

	var payload createReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	claims, _ := getClaimsFromContext(r)
	review, err := reviews.New(claims.Subject, claims.Username, placeID, payload.Rating, payload.Comment)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			app.failedValidationResponse(w, r, verrs)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	id, err := app.store.Reviews.Add(r.Context(), review)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	review.ID = id

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getPlaceReviewsHandler(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")

	list, err := app.store.Reviews.ForPlace(r.Context(), placeID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	summary := reviews.Summarize(list)
	response := placeReviewsResponse{
		Reviews:      list,
		TotalReviews: summary.Total,
		Average:      summary.Average,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}
