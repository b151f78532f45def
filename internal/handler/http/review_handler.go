package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pavel-morozov/gelato-shop/internal/auth"
	"github.com/pavel-morozov/gelato-shop/internal/review"
)

type CreateReviewRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

type UpdateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type ReviewResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	UserName  string    `json:"user_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReviewHandler struct {
	service  review.Service
	validate *validator.Validate
}

func NewReviewHandler(service review.Service) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ReviewHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/products/{id}/reviews", h.handleListByProduct)
}

func (h *ReviewHandler) RegisterRoutes(router chi.Router) {
	router.Post("/reviews", h.handleCreate)
	router.Get("/users/me/reviews", h.handleListOwn)
	router.Put("/reviews/{id}", h.handleUpdate)
	router.Delete("/reviews/{id}", h.handleDelete)
}

func (h *ReviewHandler) handleListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	reviews, err := h.service.ListProductReviews(r.Context(), productID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reviews")
		respondWithError(w, http.StatusInternalServerError, "Failed to list reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, reviewsToResponse(reviews))
}

func (h *ReviewHandler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	reviews, err := h.service.ListUserReviews(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list user reviews")
		respondWithError(w, http.StatusInternalServerError, "Failed to list reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, reviewsToResponse(reviews))
}

func (h *ReviewHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var payload CreateReviewRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		if respondWithValidationErrors(w, err) {
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	productID, err := uuid.FromString(payload.ProductID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	created, err := h.service.CreateReview(r.Context(), claims.UserID, productID, payload.Rating, payload.Comment)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, review.ErrProductNotFound):
			clientMessage = "Product not found"
		case errors.Is(err, review.ErrAlreadyReviewed):
			clientMessage = "You have already reviewed this product"
		case errors.Is(err, review.ErrInvalidRating):
			clientMessage = "Rating must be between 1 and 5"
		default:
			log.Error().Err(err).Msg("Failed to create review")
			clientMessage = "Failed to create review"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusCreated, reviewToResponse(created))
}

func (h *ReviewHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	reviewID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid review id")
		return
	}

	var payload UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		if respondWithValidationErrors(w, err) {
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	updated, err := h.service.UpdateReview(r.Context(), reviewID, claims.UserID, payload.Rating, payload.Comment)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, review.ErrReviewNotFound):
			clientMessage = "Review not found"
		case errors.Is(err, review.ErrForbidden):
			clientMessage = "Access denied"
		case errors.Is(err, review.ErrInvalidRating):
			clientMessage = "Rating must be between 1 and 5"
		default:
			log.Error().Err(err).Msg("Failed to update review")
			clientMessage = "Failed to update review"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, reviewToResponse(updated))
}

func (h *ReviewHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	reviewID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid review id")
		return
	}

	if err := h.service.DeleteReview(r.Context(), reviewID, claims.UserID, claims.Role); err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, review.ErrReviewNotFound):
			clientMessage = "Review not found"
		case errors.Is(err, review.ErrForbidden):
			clientMessage = "Access denied"
		default:
			log.Error().Err(err).Msg("Failed to delete review")
			clientMessage = "Failed to delete review"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func reviewToResponse(rv *review.Review) ReviewResponse {
	return ReviewResponse{
		ID:        rv.ID,
		UserID:    rv.UserID,
		ProductID: rv.ProductID,
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		UserName:  rv.UserName,
		CreatedAt: rv.CreatedAt,
		UpdatedAt: rv.UpdatedAt,
	}
}

func reviewsToResponse(reviews []review.Review) []ReviewResponse {
	result := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		result = append(result, reviewToResponse(&reviews[i]))
	}
	return result
}
