/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names follow
  the web front-end's camelCase contract (userId, barId, qrCodeHash).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done by the saga, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loyalty/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateTransactionRequest is a purchase submitted from the front-end.
type CreateTransactionRequest struct {
	UserID int64 `json:"userId"`
	BarID  int64 `json:"barId"`
	Amount int64 `json:"amount"`
}

// TransactionDTO represents a transaction record in API responses.
// QRCodeImage and PointsBalance are only set on the creating response.
type TransactionDTO struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"userId"`
	BarID         int64   `json:"barId"`
	Amount        int64   `json:"amount"`
	PointsEarned  int64   `json:"pointsEarned"`
	QRCodeHash    *string `json:"qrCodeHash"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	QRCodeImage   string  `json:"qrCodeImage,omitempty"`
	PointsBalance *int64  `json:"pointsBalance,omitempty"`
}

// AccountDTO is an account's current balance.
type AccountDTO struct {
	ID            int64 `json:"id"`
	PointsBalance int64 `json:"pointsBalance"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toTransactionDTO(rec loyalty.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		ID:           int64(rec.ID),
		UserID:       int64(rec.AccountID),
		BarID:        int64(rec.VenueID),
		Amount:       rec.Amount,
		PointsEarned: rec.PointsEarned,
		QRCodeHash:   rec.CodeHash,
		Status:       string(rec.Status),
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionDTOs(recs []loyalty.TransactionRecord) []TransactionDTO {
	result := make([]TransactionDTO, 0, len(recs))
	for _, rec := range recs {
		result = append(result, toTransactionDTO(rec))
	}
	return result
}

func toReceiptDTO(r *loyalty.Receipt) TransactionDTO {
	dto := toTransactionDTO(r.Transaction)
	dto.QRCodeImage = r.Artifact
	balance := r.Balance
	dto.PointsBalance = &balance
	return dto
}
