package bike

type CreateBikeRequest struct {
	Name        string  `json:"name" binding:"required,max=120"`
	Brand       string  `json:"brand" binding:"max=80"`
	Model       string  `json:"model" binding:"max=80"`
	Type        string  `json:"type" binding:"required,oneof=city mountain road electric kids"`
	Description string  `json:"description" binding:"max=4000"`
	Location    string  `json:"location" binding:"max=120"`
	PricePerDay float64 `json:"price_per_day" binding:"gte=0"`
	// OwnerID is honoured for admins only.
	OwnerID int64 `json:"owner_id" binding:"omitempty,gt=0"`
}

type UpdateBikeRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=120"`
	Brand       *string  `json:"brand" binding:"omitempty,max=80"`
	Model       *string  `json:"model" binding:"omitempty,max=80"`
	Type        *string  `json:"type" binding:"omitempty,oneof=city mountain road electric kids"`
	Description *string  `json:"description" binding:"omitempty,max=4000"`
	Location    *string  `json:"location" binding:"omitempty,max=120"`
	PricePerDay *float64 `json:"price_per_day" binding:"omitempty,gte=0"`
	Status      *string  `json:"status" binding:"omitempty,oneof=available unavailable maintenance"`
}

type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) isAdmin() bool { return a.Role == "admin" }
