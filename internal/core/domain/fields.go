package domain

type UserDataFields struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required,phone"`
	Email     string `json:"email" validate:"required,email"`
}

type ShippingAddressFields struct {
	Address    string `json:"address" validate:"required"`
	Locality   string `json:"locality" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
}

// AddressInput is the shipping address sent to the commerce backend.
type AddressInput struct {
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	Region    string `json:"region"`
	Country   string `json:"country"`
	Postal    string `json:"postal"`
}
