// Package authz maps user roles to the actions they may perform.
// Handlers ask Can(role, action) instead of comparing role constants
// inline, so the grant table is the single place the policy lives.
package authz

import "librarium/pkg/domain"

// Action names one protected operation group.
type Action string

const (
	ManageCatalog   Action = "manage_catalog"
	ManageVisitors  Action = "manage_visitors"
	ViewMemberLoans Action = "view_member_loans"
	DeleteSelf      Action = "delete_self"
	BorrowBooks     Action = "borrow_books"
	ViewOwnLoans    Action = "view_own_loans"
)

var grants = map[domain.UserType]map[Action]struct{}{
	domain.LibraryUser: {
		ManageCatalog:   {},
		ManageVisitors:  {},
		ViewMemberLoans: {},
		DeleteSelf:      {},
	},
	domain.VisitorUser: {
		BorrowBooks:  {},
		ViewOwnLoans: {},
	},
}

// Can reports whether the role is granted the action.
func Can(t domain.UserType, a Action) bool {
	actions, ok := grants[t]
	if !ok {
		return false
	}
	_, ok = actions[a]
	return ok
}
