package domain

import (
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

// PropertyStatus is the derived operational status of a property. It is
// never set by a client; the availability aggregator computes it.
type PropertyStatus string

const (
	StatusDisponivel                   PropertyStatus = "disponivel"
	StatusReservado                    PropertyStatus = "reservado"
	StatusEmNegociacao                 PropertyStatus = "em_negociacao"
	StatusIndisponivel                 PropertyStatus = "indisponivel"
	StatusEmManutencao                 PropertyStatus = "em_manutencao"
	StatusEmVistoriaEntrada            PropertyStatus = "em_vistoria_entrada"
	StatusEmVistoriaSaida              PropertyStatus = "em_vistoria_saida"
	StatusAgendadoParaDisponibilizacao PropertyStatus = "agendado_para_disponibilizacao"
)

// PropertyStatuses lists every derived status, highest precedence first.
var PropertyStatuses = []PropertyStatus{
	StatusEmManutencao,
	StatusEmVistoriaEntrada,
	StatusEmVistoriaSaida,
	StatusEmNegociacao,
	StatusReservado,
	StatusIndisponivel,
	StatusAgendadoParaDisponibilizacao,
	StatusDisponivel,
}

type Property struct {
	Meta
	Code          string        `json:"code"`
	Address       types.Address `json:"address"`
	SizeM2        float64       `json:"size_m2"`
	Bedrooms      int           `json:"bedrooms"`
	Owner         string        `json:"owner"`
	AvailableFrom *time.Time    `json:"available_from,omitempty"`

	// Derived projection, written only by the availability aggregator.
	Status              PropertyStatus `json:"status"`
	ActiveNegotiationID string         `json:"active_negotiation_id,omitempty"`
	HasOpenMaintenance  bool           `json:"has_open_maintenance"`
	HasOpenPending      bool           `json:"has_open_pending"`
	StatusChangedAt     time.Time      `json:"status_changed_at"`
}
