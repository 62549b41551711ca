package rbac

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
)

//go:embed roles.json
var defaultRoles []byte

type Entity string

const (
	EntityPlan         Entity = "plan"
	EntityCoupon       Entity = "coupon"
	EntityCustomer     Entity = "customer"
	EntitySubscription Entity = "subscription"
	EntityInvoice      Entity = "invoice"
	EntityPayment      Entity = "payment"
)

type Action string

const (
	ActionRead              Action = "read"
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionCancel            Action = "cancel"
	ActionFinalize          Action = "finalize"
	ActionPay               Action = "pay"
	ActionCheckout          Action = "checkout"
	ActionVoid              Action = "void"
	ActionMarkUncollectible Action = "mark_uncollectible"
	ActionRender            Action = "render"
	ActionRefund            Action = "refund"
)

// Resource is what an action targets. OwnerID is the user owning the
// resource; it is empty when the action targets a whole collection.
type Resource struct {
	Entity  Entity
	OwnerID string
}

// Collection targets every resource of entity visible to the caller
func Collection(entity Entity) Resource {
	return Resource{Entity: entity}
}

// Owned targets one resource belonging to ownerID
func Owned(entity Entity, ownerID string) Resource {
	return Resource{Entity: entity, OwnerID: ownerID}
}

type scope int

const (
	scopeNone scope = iota
	scopeOwn
	scopeAll
)

const ownSuffix = ":own"

// Role is a role definition with metadata
type Role struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Permissions map[string][]string `json:"permissions"`
}

// Service answers every capability question through Authorize
type Service struct {
	// role -> entity -> action -> scope
	grants map[types.Role]map[Entity]map[Action]scope
	roles  map[string]*Role
	logger *logger.Logger
}

func NewService(log *logger.Logger) (*Service, error) {
	return NewServiceFromJSON(defaultRoles, log)
}

// NewServiceFromJSON loads role definitions keyed by role id. An action
// suffixed with ":own" is only granted on resources the caller owns.
func NewServiceFromJSON(data []byte, log *logger.Logger) (*Service, error) {
	var roles map[string]*Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid role definitions").
			Mark(ierr.ErrSystem)
	}

	grants := make(map[types.Role]map[Entity]map[Action]scope, len(roles))
	for roleID, role := range roles {
		role.ID = roleID
		if err := types.Role(roleID).Validate(); err != nil {
			return nil, err
		}

		byEntity := make(map[Entity]map[Action]scope, len(role.Permissions))
		for entity, actions := range role.Permissions {
			set := make(map[Action]scope, len(actions))
			for _, a := range actions {
				if strings.HasSuffix(a, ownSuffix) {
					set[Action(strings.TrimSuffix(a, ownSuffix))] = scopeOwn
					continue
				}
				set[Action(a)] = scopeAll
			}
			byEntity[Entity(entity)] = set
		}
		grants[types.Role(roleID)] = byEntity
	}

	return &Service{grants: grants, roles: roles, logger: log}, nil
}

// Authorize fails with ErrPermissionDenied unless principal may perform
// action on resource. Owner scoped grants pass for collections since the
// caller is expected to narrow the listing to the principal's own rows.
func (s *Service) Authorize(principal *types.Principal, action Action, resource Resource) error {
	if principal == nil {
		return ierr.NewError("no authenticated principal").
			WithHint("Authentication required").
			Mark(ierr.ErrPermissionDenied)
	}

	granted := s.grants[principal.Role][resource.Entity][action]
	switch {
	case granted == scopeAll:
		return nil
	case granted == scopeOwn && (resource.OwnerID == "" || resource.OwnerID == principal.UserID):
		return nil
	}

	s.logger.Infow("permission denied",
		"user_id", principal.UserID,
		"role", principal.Role,
		"entity", resource.Entity,
		"action", action,
	)
	return ierr.NewErrorf("%s may not %s %s", principal.Role, action, resource.Entity).
		WithHintf("You do not have permission to %s this %s", action, resource.Entity).
		WithReportableDetails(map[string]any{
			"entity": resource.Entity,
			"action": action,
		}).
		Mark(ierr.ErrPermissionDenied)
}

// SeesAll reports whether the principal reads entity across all owners
func (s *Service) SeesAll(principal *types.Principal, entity Entity) bool {
	if principal == nil {
		return false
	}
	return s.grants[principal.Role][entity][ActionRead] == scopeAll
}

func (s *Service) ListRoles() []*Role {
	result := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		result = append(result, role)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Service) GetRole(roleID string) (*Role, bool) {
	role, ok := s.roles[roleID]
	return role, ok
}
