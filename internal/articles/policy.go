package articles

import (
	"fmt"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/rbac"
)

// Action enumerates the gated article mutations.
type Action int

const (
	// ActionCreate covers creating a new article.
	ActionCreate Action = iota
	// ActionEdit covers mutating title, body or the publication window.
	ActionEdit
	// ActionDelete covers permanent removal.
	ActionDelete
)

// Outcome tags an authorization decision.
type Outcome int

const (
	// DecisionOk permits the action.
	DecisionOk Outcome = iota
	// DecisionNotFound means the target does not exist. Always decided
	// before ownership so a denied caller cannot learn whether an id is
	// taken.
	DecisionNotFound
	// DecisionForbidden means the target exists but the principal lacks
	// rights.
	DecisionForbidden
)

// Decision is the tagged result of an authorization check. Callers branch on
// Outcome and cannot reorder the existence and ownership checks.
type Decision struct {
	Outcome Outcome
	Article *Article
}

// Err maps the decision to the matching sentinel, or nil when permitted.
func (d Decision) Err() error {
	switch d.Outcome {
	case DecisionNotFound:
		return httpx.ErrNotFound
	case DecisionForbidden:
		return httpx.ErrForbidden
	default:
		return nil
	}
}

// CanCreate reports whether the principal may create articles: approved and
// holding Contributor or Admin.
func CanCreate(p rbac.Principal) bool {
	if !p.Approved {
		return false
	}
	return p.HasRole(rbac.RoleContributor) || p.HasRole(rbac.RoleAdmin)
}

// CanEdit reports whether the principal may edit the article: approved and
// either Admin or the owner.
func CanEdit(p rbac.Principal, a Article) bool {
	if !p.Approved {
		return false
	}
	return p.HasRole(rbac.RoleAdmin) || p.Email == a.OwnerEmail
}

// CanDelete follows the same rule as CanEdit.
func CanDelete(p rbac.Principal, a Article) bool {
	return CanEdit(p, a)
}

// Authorize gates an action against a principal and an optional target. For
// edit/delete a nil target yields NotFound before any ownership comparison.
func Authorize(p rbac.Principal, a *Article, action Action) Decision {
	switch action {
	case ActionCreate:
		if CanCreate(p) {
			return Decision{Outcome: DecisionOk}
		}
		return Decision{Outcome: DecisionForbidden}
	case ActionEdit, ActionDelete:
		if a == nil {
			return Decision{Outcome: DecisionNotFound}
		}
		if CanEdit(p, *a) {
			return Decision{Outcome: DecisionOk, Article: a}
		}
		return Decision{Outcome: DecisionForbidden}
	default:
		panic(fmt.Sprintf("articles: unknown action %d", action))
	}
}
