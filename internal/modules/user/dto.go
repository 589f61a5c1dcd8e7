package user

type UpdateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=2,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url"`
}

type AddressRequest struct {
	Label      string `json:"label" binding:"max=50"`
	Street     string `json:"street" binding:"required,max=200"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Country    string `json:"country" binding:"required,max=100"`
	IsPrimary  bool   `json:"is_primary"`
}
