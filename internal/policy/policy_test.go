package policy

import "testing"

func TestAllow(t *testing.T) {
	owner := Principal{ID: "u1", Role: "user"}
	stranger := Principal{ID: "u2", Role: "user"}
	staff := Principal{ID: "s1", Role: "staff"}
	admin := Principal{ID: "a1", Role: "admin"}

	cases := []struct {
		name    string
		action  Action
		p       Principal
		ownerID string
		want    bool
	}{
		{"owner cancels own booking", BookingCancel, owner, "u1", true},
		{"stranger cannot cancel", BookingCancel, stranger, "u1", false},
		{"staff cancels any booking", BookingCancel, staff, "u1", true},
		{"customer cannot complete", BookingComplete, owner, "u1", false},
		{"admin completes", BookingComplete, admin, "u1", true},
		{"staff cannot confirm delivery for customer", OrderConfirmDelivery, staff, "u1", false},
		{"owner confirms delivery", OrderConfirmDelivery, owner, "u1", true},
		{"customer cannot update order status", OrderUpdateStatus, owner, "u1", false},
		{"staff updates order status", OrderUpdateStatus, staff, "u1", true},
		{"unknown role denied", BookingRead, Principal{ID: "x", Role: "robot"}, "x", false},
		{"unknown action denied", Action("nope"), admin, "", false},
		{"empty principal id never owns", BookingRead, Principal{Role: "user"}, "", false},
	}
	for _, tc := range cases {
		if got := Allow(tc.action, tc.p, tc.ownerID); got != tc.want {
			t.Errorf("%s: Allow = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStaff(t *testing.T) {
	if Staff(Principal{Role: "user"}) {
		t.Fatal("user must not be staff")
	}
	if !Staff(Principal{Role: "staff"}) || !Staff(Principal{Role: "admin"}) {
		t.Fatal("staff and admin are back-office roles")
	}
}
