package models

// Requests for analytics HTTP endpoints. Defined in domain for consistency and reuse.

type RefreshRequest struct {
	Market    []TimeSeriesPoint `json:"market" validate:"required,min=1"`
	Equipment []EquipmentRecord `json:"equipment"`
	TimeoutMS int               `json:"timeout_ms" default:"30000" validate:"gte=100,lte=600000"`
}

type MaintenanceRequest struct {
	Limit int `query:"limit" json:"limit" default:"5" validate:"gte=1,lte=100"`
}
