package services

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/repository"
)

// placementCostIncrement is added to a server's cost each time it wins a
// contested selection. The periodic cost job overwrites it with real load.
const placementCostIncrement = 10

// ServerSelection describes the call being placed.
//
//	// a room of ev1 that asks for a specific server
//	ServerSelection{EventID: "ev1", ForRoom: true, PreferServer: "https://bbb1.example/bigbluebutton/"}
//	// a direct call: rooms_only servers are skipped, ranked by cost
//	ServerSelection{EventID: "ev1"}
type ServerSelection struct {
	EventID string
	// ForRoom ranks by the event's room calls per server instead of cost,
	// and allows rooms_only servers.
	ForRoom bool
	// PreferServer is the URL a room asks for, if any.
	PreferServer string
}

// ChooseServer picks the server a new call is placed on.
//
// Tiers are tried in order until one is non-empty: the preferred URL when
// it is exclusive to the event or shared, then servers exclusive to the
// event, then shared servers. Within the tier the lowest relevant cost wins
// and ties are broken at random. When the tier had more than one server the
// winner's cost is raised by placementCostIncrement in a single UPDATE.
//
// The relevant cost depends on the call. A room call is ranked by how many
// calls of the same event a server already hosts, which spreads the rooms
// of one event over the pool. A direct call is ranked by the server's cost
// column, the measured load plus recent placement bumps.
//
// servers must be bound to the caller's transaction: the candidate list and
// the bump are then part of the same commit as the call that uses them.
//
// It returns pkg.ErrUnavailable when no active server fits.
func ChooseServer(ctx context.Context, servers repository.ConferencingServerRepository, sel ServerSelection) (*models.ConferencingServer, error) {
	candidates, err := servers.ListCandidates(ctx, sel.EventID, sel.ForRoom)
	if err != nil {
		return nil, fmt.Errorf("failed to list server candidates: %w", err)
	}

	// Candidates are active servers only. A preferred URL that belongs to
	// another event never qualifies.
	eligible := func(c models.ServerCandidate, _ int) bool {
		return c.ExclusiveTo(sel.EventID) || c.Shared()
	}
	tiers := [][]models.ServerCandidate{
		lo.Filter(candidates, func(c models.ServerCandidate, i int) bool {
			return sel.PreferServer != "" && c.URL == sel.PreferServer && eligible(c, i)
		}),
		lo.Filter(candidates, func(c models.ServerCandidate, _ int) bool {
			return c.ExclusiveTo(sel.EventID)
		}),
		lo.Filter(candidates, func(c models.ServerCandidate, _ int) bool {
			return c.Shared()
		}),
	}

	tier, found := lo.Find(tiers, func(t []models.ServerCandidate) bool { return len(t) > 0 })
	if !found {
		return nil, pkg.ErrUnavailable
	}

	// Random choice among the cheapest: concurrent joins that see the same
	// costs must not all land on the first server in the list.
	smallest := lo.MinBy(tier, func(a, b models.ServerCandidate) bool {
		return a.RelevantCost < b.RelevantCost
	}).RelevantCost
	chosen := lo.Sample(lo.Filter(tier, func(c models.ServerCandidate, _ int) bool {
		return c.RelevantCost == smallest
	}))

	// The bump is a column update (cost = cost + 10), not a write of the
	// value read above, so simultaneous selections all count. A lone
	// candidate wins anyway and keeps its cost.
	if len(tier) > 1 {
		if err := servers.IncrementCost(ctx, chosen.ID, placementCostIncrement); err != nil {
			return nil, fmt.Errorf("failed to bump server cost: %w", err)
		}
		chosen.Cost += placementCostIncrement
	}

	server := chosen.ConferencingServer
	return &server, nil
}
