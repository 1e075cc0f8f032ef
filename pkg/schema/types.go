package schema

// Region is a UK listing region.
type Region string

// Known regions.
const (
	RegionNorthWest Region = "North West"
	RegionLondon    Region = "London"
	RegionNorthEast Region = "North East"
	RegionSouthWest Region = "South West"
	RegionSouthEast Region = "South East"
	RegionMidlands  Region = "Midlands"
	RegionScotland  Region = "Scotland"
	RegionWales     Region = "Wales"
)

// Regions returns every known region.
func Regions() []Region {
	return []Region{
		RegionNorthWest, RegionLondon, RegionNorthEast, RegionSouthWest,
		RegionSouthEast, RegionMidlands, RegionScotland, RegionWales,
	}
}

// Valid reports whether r is a known region.
func (r Region) Valid() bool {
	for _, known := range Regions() {
		if r == known {
			return true
		}
	}
	return false
}

// PropertyType classifies a listed property.
type PropertyType string

// Known property types.
const (
	PropertyApartment    PropertyType = "apartment"
	PropertyDetached     PropertyType = "detached"
	PropertySemiDetached PropertyType = "semi-detached"
	PropertyTerraced     PropertyType = "terraced"
	PropertyEndTerrace   PropertyType = "end-terrace"
)

// PropertyTypes returns every known property type.
func PropertyTypes() []PropertyType {
	return []PropertyType{
		PropertyApartment, PropertyDetached, PropertySemiDetached,
		PropertyTerraced, PropertyEndTerrace,
	}
}

// Valid reports whether p is a known property type.
func (p PropertyType) Valid() bool {
	for _, known := range PropertyTypes() {
		if p == known {
			return true
		}
	}
	return false
}

// DatabaseRecord carries the system fields present on every record.
type DatabaseRecord struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// UserRecord is a stored user.
type UserRecord struct {
	DatabaseRecord
	Username string  `json:"username"`
	Email    *string `json:"email"`
	IsActive bool    `json:"is_active"`
}

// SessionRecord is a stored session.
type SessionRecord struct {
	DatabaseRecord
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
	ExpiresAt    string `json:"expires_at"`
	IsValid      bool   `json:"is_valid"`
}

// Photo is a listing image in its three renditions.
type Photo struct {
	OriginalURL  string `json:"originalURL"`
	StandardURL  string `json:"standardURL"`
	ThumbnailURL string `json:"thumbnailURL"`
	MimeType     string `json:"mimeType"`
}

// AddressDetails is the postal address of a listing.
type AddressDetails struct {
	AddressLine1      string `json:"addressLine1"`
	AddressLine2      string `json:"addressLine2"`
	City              string `json:"city"`
	Postcode          string `json:"postcode"`
	ShortenedPostcode string `json:"shortenedPostcode"`
	Country           string `json:"country"`
	Region            Region `json:"region"`
}

// ListingRecord is a property listing in its external shape.
type ListingRecord struct {
	ID                         string         `json:"id"`
	AddressDetails             AddressDetails `json:"addressDetails"`
	PropertyType               PropertyType   `json:"propertyType"`
	Bedrooms                   int            `json:"bedrooms"`
	Bathrooms                  int            `json:"bathrooms"`
	SizeSqFt                   int            `json:"sizeSqFt"`
	PriceInCents               int64          `json:"priceInCents"`
	MinimumDepositInCents      int64          `json:"minimumDepositInCents"`
	EstimatedDepositInCents    int64          `json:"estimatedDepositInCents"`
	MonthlyRentalIncomeInCents int64          `json:"monthlyRentalIncomeInCents"`
	GrossYield                 float64        `json:"grossYield"`
	IsTenanted                 bool           `json:"isTenanted"`
	IsCashOnly                 bool           `json:"isCashOnly"`
	IsNewBuild                 bool           `json:"isNewBuild"`
	IsCompany                  bool           `json:"isCompany"`
	IsShareSale                bool           `json:"isShareSale"`
	Description                string         `json:"description"`
	Photos                     []Photo        `json:"photos"`
	MadeVisibleAt              *string        `json:"madeVisibleAt"`
	DevelopmentName            *string        `json:"developmentName"`
	IsFeatured                 bool           `json:"isFeatured"`
	CreatedAt                  string         `json:"createdAt"`
	UpdatedAt                  string         `json:"updatedAt"`
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	UserID       string  `json:"user_id"`
	SessionToken *string `json:"session_token,omitempty"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
	IsValid      *bool   `json:"is_valid,omitempty"`
}

// PingResponse is returned by the ping and health endpoints.
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse wraps a successful result.
type SuccessResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// DatabaseStatus summarizes the store.
type DatabaseStatus struct {
	Collections  []string       `json:"collections"`
	TotalRecords int            `json:"total_records"`
	RecordCounts map[string]int `json:"record_counts"`
}

// ListPage is a page of records returned by collection list endpoints.
type ListPage struct {
	Data  []map[string]any `json:"data"`
	Total int              `json:"total"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
}
