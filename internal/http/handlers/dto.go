package handlers

import (
	"github.com/diagnosis/museum-tickets/internal/domain"
)

type createOrderReq struct {
	VisitDate string `json:"visit_date"`
	Duration  string `json:"duration"`
	Email     string `json:"email"`
}

type visitorReq struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Country          string `json:"country"`
	BirthDate        string `json:"birth_date"`
	DiscountEligible bool   `json:"discount_eligible"`
}

type attachTicketsReq struct {
	Visitors []visitorReq `json:"visitors"`
}

type checkoutReq struct {
	PaymentToken string `json:"payment_token"`
}

type TicketDTO struct {
	ID               int64  `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Country          string `json:"country"`
	BirthDate        string `json:"birth_date"`
	DiscountEligible bool   `json:"discount_eligible"`
	Age              int    `json:"age"`
	Price            string `json:"price"`
	Confirmed        bool   `json:"confirmed"`
}

type OrderDTO struct {
	ID               int64       `json:"id"`
	ConfirmationCode string      `json:"confirmation_code"`
	VisitDate        string      `json:"visit_date"`
	VisitDuration    string      `json:"visit_duration"`
	Email            string      `json:"email"`
	TotalAmount      string      `json:"total_amount"`
	PaymentState     string      `json:"payment_state"`
	Tickets          []TicketDTO `json:"tickets"`
}

type CheckoutDTO struct {
	Order                OrderDTO `json:"order"`
	Confirmed            bool     `json:"confirmed"`
	Amount               string   `json:"amount"`
	Currency             string   `json:"currency"`
	StripePublishableKey string   `json:"stripe_publishable_key,omitempty"`
	ChargeID             string   `json:"charge_id,omitempty"`
}

func toOrderDTO(o *domain.Order) OrderDTO {
	dto := OrderDTO{
		ID:               o.ID,
		ConfirmationCode: o.ConfirmationCode,
		VisitDate:        o.VisitDate.Format(domain.DateLayout),
		VisitDuration:    string(o.VisitDuration),
		Email:            o.Email,
		TotalAmount:      o.TotalAmount.StringFixed(2),
		PaymentState:     string(o.PaymentState),
		Tickets:          make([]TicketDTO, 0, len(o.Tickets)),
	}
	for _, t := range o.Tickets {
		dto.Tickets = append(dto.Tickets, TicketDTO{
			ID:               t.ID,
			FirstName:        t.FirstName,
			LastName:         t.LastName,
			Country:          t.Country,
			BirthDate:        t.BirthDate.Format(domain.DateLayout),
			DiscountEligible: t.DiscountEligible,
			Age:              t.Age,
			Price:            t.Price.StringFixed(2),
			Confirmed:        t.Confirmed,
		})
	}
	return dto
}
