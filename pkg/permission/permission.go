package permission

import (
	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
)

type Permission string

const (
	PermissionRead      Permission = "read"
	PermissionBuyTicket Permission = "buy-ticket"
	PermissionClaim     Permission = "claim"
	PermissionStartRace Permission = "start-race"
	PermissionOpenSales Permission = "open-sales"
)

type PermissionEvaluator interface {
	HasPermission(a auth.Authentication, perm Permission) bool
}

func NewPermissionEvaluator() PermissionEvaluator {
	ret, err := NewOpaPermissionEvaluator()
	if err != nil {
		log.Default().Error("failed to create permission evaluator", log.ErrorField(err))
		return nil
	}
	return ret
}
