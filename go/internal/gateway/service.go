package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/game/orchestrator"
)

// Service ties the connection manager and HTTP API together and
// reflects connection lifecycle back into game events.
type Service struct {
	CM  *ConnectionManager
	API *API
}

func NewService(orch *orchestrator.Orchestrator, emitter *events.Emitter, cm *ConnectionManager, adminToken string) *Service {
	s := &Service{
		CM:  cm,
		API: NewAPI(orch, cm, adminToken),
	}

	// A dropped socket for a tagged player becomes a player-left
	// notification on that player's current round. The submission and
	// prize pool stay; only presence is reported.
	cm.SetDisconnectHandler(func(playerAddress string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		view, err := orch.CurrentRound(ctx)
		if err != nil {
			log.Error().Err(err).Str("player_address", playerAddress).Msg("failed to resolve round for disconnect")
			return
		}
		if view == nil || view.Round.Phase.Terminal() {
			return
		}
		emitter.PlayerLeft(view.Round.ID, events.PlayerLeftPayload{
			RoundID:       view.Round.ID.String(),
			PlayerAddress: playerAddress,
			LeftAt:        time.Now().UTC(),
		})
	})

	return s
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.CM.Start(ctx)
}
