// Package policy is the single authorization table for lifecycle transitions:
// action × role × ownership resolved in one place instead of per handler.
package policy

type Principal struct {
	ID   string
	Role string
}

type Action string

const (
	BookingRead     Action = "booking.read"
	BookingList     Action = "booking.list"
	BookingCancel   Action = "booking.cancel"
	BookingComplete Action = "booking.complete"

	OrderRead            Action = "order.read"
	OrderList            Action = "order.list"
	OrderCancel          Action = "order.cancel"
	OrderUpdateStatus    Action = "order.update_status"
	OrderConfirmDelivery Action = "order.confirm_delivery"

	PaymentSettle Action = "payment.settle"

	ReviewCreate Action = "review.create"
)

type scope int

const (
	scopeNone  scope = iota // never allowed for this role
	scopeOwner              // allowed only on records the principal owns
	scopeAny                // allowed on any record
)

var rules = map[Action]map[string]scope{
	BookingRead:     {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	BookingList:     {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	BookingCancel:   {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	BookingComplete: {"staff": scopeAny, "admin": scopeAny},

	OrderRead:            {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	OrderList:            {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	OrderCancel:          {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},
	OrderUpdateStatus:    {"staff": scopeAny, "admin": scopeAny},
	OrderConfirmDelivery: {"user": scopeOwner},

	PaymentSettle: {"user": scopeOwner, "staff": scopeAny, "admin": scopeAny},

	ReviewCreate: {"user": scopeOwner, "staff": scopeOwner, "admin": scopeOwner},
}

// Allow reports whether p may perform action on a record owned by ownerID.
// Unknown actions and unknown roles always deny.
func Allow(action Action, p Principal, ownerID string) bool {
	roleRules, ok := rules[action]
	if !ok {
		return false
	}
	switch roleRules[p.Role] {
	case scopeAny:
		return true
	case scopeOwner:
		return p.ID != "" && p.ID == ownerID
	default:
		return false
	}
}

// Staff reports whether p holds a back-office role.
func Staff(p Principal) bool {
	return p.Role == "staff" || p.Role == "admin"
}
