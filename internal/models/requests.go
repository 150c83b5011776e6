package models

// CreateAccountRequest is the body of POST /api/accounts.
type CreateAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

// AmountRequest is the optional body of deposit, withdraw and transfer calls.
type AmountRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}
