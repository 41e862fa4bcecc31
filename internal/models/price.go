package models

import (
	"time"
)

type FuelType string

const (
	FuelNafta         FuelType = "nafta"
	FuelNaftaPremium  FuelType = "nafta_premium"
	FuelGasoil        FuelType = "gasoil"
	FuelGasoilPremium FuelType = "gasoil_premium"
	FuelGNC           FuelType = "gnc"
)

var FuelTypes = []FuelType{FuelNafta, FuelNaftaPremium, FuelGasoil, FuelGasoilPremium, FuelGNC}

func (f FuelType) Valid() bool {
	for _, ft := range FuelTypes {
		if f == ft {
			return true
		}
	}
	return false
}

type TimeOfDay string

const (
	TimeDiurno   TimeOfDay = "diurno"
	TimeNocturno TimeOfDay = "nocturno"
	// TimeAmbos is only accepted at the API boundary; it expands to diurno + nocturno rows.
	TimeAmbos TimeOfDay = "ambos"
)

// Expand returns the stored time-of-day values a requested value maps to.
// It returns nil for unknown values.
func (t TimeOfDay) Expand() []TimeOfDay {
	switch t {
	case TimeDiurno, TimeNocturno:
		return []TimeOfDay{t}
	case TimeAmbos:
		return []TimeOfDay{TimeDiurno, TimeNocturno}
	}
	return nil
}

type PriceReport struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StationID      uint      `gorm:"not null;index:idx_price_lookup" json:"station_id"`
	Station        Station   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ReporterUserID uint      `gorm:"not null;index" json:"reporter_user_id"`
	FuelType       FuelType  `gorm:"size:20;not null;index:idx_price_lookup" json:"fuel_type"`
	Price          float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	TimeOfDay      TimeOfDay `gorm:"size:10;not null;index:idx_price_lookup" json:"time_of_day"`
	Source         Source    `gorm:"size:20;not null;default:'user'" json:"source"`
	Notes          string    `gorm:"size:288" json:"notes"`
	Trusted        bool      `gorm:"not null;default:false" json:"trusted"` // owner quick-entry
	IsValidated    bool      `gorm:"not null;default:false" json:"is_validated"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
