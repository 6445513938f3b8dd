package account

// Role determines what a signed-in user may do.
type Role string

const (
	Customer   Role = "customer"
	Admin      Role = "admin"
	SuperAdmin Role = "super_admin"
)

// Wildcard grants every action.
const Wildcard = "*"

var permissions = map[Role][]string{
	Customer: {"view_products", "add_to_cart", "place_order", "view_profile"},
	Admin: {
		"view_products", "add_to_cart", "place_order", "view_profile",
		"manage_products", "manage_orders", "manage_users", "view_analytics",
	},
	SuperAdmin: {Wildcard},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := permissions[r]
	return ok
}

// Can reports whether r grants action. Unknown roles grant nothing.
func (r Role) Can(action string) bool {
	for _, p := range permissions[r] {
		if p == Wildcard || p == action {
			return true
		}
	}
	return false
}

// Permissions lists the actions r grants.
func (r Role) Permissions() []string {
	return append([]string(nil), permissions[r]...)
}
