package model

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
)

type CampaignStatus string

const (
	CampaignDraft          CampaignStatus = "draft"
	CampaignPendingPayment CampaignStatus = "pending_payment"
	CampaignPaid           CampaignStatus = "paid"
	CampaignCompleted      CampaignStatus = "completed"
	CampaignCancelled      CampaignStatus = "cancelled"
)

type CampaignMediaStatus string

const (
	CampaignMediaPending  CampaignMediaStatus = "pending"
	CampaignMediaReserved CampaignMediaStatus = "reserved"
)

var reservationNext = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationPending:   {ReservationConfirmed: true, ReservationCancelled: true},
	ReservationConfirmed: {ReservationCompleted: true},
	ReservationCompleted: {},
	ReservationCancelled: {},
}

var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentHeld: true},
	PaymentHeld:     {PaymentReleased: true},
	PaymentReleased: {},
}

// pending_payment -> pending_payment covers a retried checkout after an abandoned session.
var campaignNext = map[CampaignStatus]map[CampaignStatus]bool{
	CampaignDraft:          {CampaignPendingPayment: true, CampaignPaid: true, CampaignCancelled: true},
	CampaignPendingPayment: {CampaignPendingPayment: true, CampaignPaid: true, CampaignCancelled: true},
	CampaignPaid:           {CampaignCompleted: true},
	CampaignCompleted:      {},
	CampaignCancelled:      {},
}

func CanTransitionReservation(from, to ReservationStatus) bool {
	return reservationNext[from][to]
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return paymentNext[from][to]
}

func CanTransitionCampaign(from, to CampaignStatus) bool {
	return campaignNext[from][to]
}

// CampaignSourcesFor lists every status from which the campaign may move to `to`.
func CampaignSourcesFor(to CampaignStatus) []CampaignStatus {
	var from []CampaignStatus
	for _, s := range []CampaignStatus{CampaignDraft, CampaignPendingPayment, CampaignPaid, CampaignCompleted, CampaignCancelled} {
		if campaignNext[s][to] {
			from = append(from, s)
		}
	}
	return from
}

func (s CampaignStatus) Checkoutable() bool {
	return s == CampaignDraft || s == CampaignPendingPayment
}
