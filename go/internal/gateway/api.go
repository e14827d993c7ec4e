package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roastarena/roastarena/go/internal/game/events"
	"github.com/roastarena/roastarena/go/internal/game/orchestrator"
	"github.com/roastarena/roastarena/go/internal/game/round"
	"github.com/roastarena/roastarena/go/internal/game/submission"
)

// API is the thin HTTP surface over the orchestrator.
type API struct {
	orch       *orchestrator.Orchestrator
	cm         *ConnectionManager
	adminToken string
}

func NewAPI(orch *orchestrator.Orchestrator, cm *ConnectionManager, adminToken string) *API {
	return &API{orch: orch, cm: cm, adminToken: adminToken}
}

// Register mounts all routes on the gin engine.
func (a *API) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/rounds/current", a.getCurrentRound)
	api.POST("/rounds/current/join", a.joinRound)
	api.GET("/rounds/:id/submissions", a.getSubmissions)
	api.GET("/rounds/:id/result", a.getResult)
	api.POST("/judges/vote", a.voteNextJudge)

	admin := api.Group("/admin", a.requireAdmin)
	admin.POST("/rounds", a.createRound)
	admin.POST("/rounds/:id/complete", a.forceComplete)
	admin.GET("/connections", a.connectionStats)

	r.GET("/ws", a.websocket)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (a *API) requireAdmin(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if a.adminToken == "" || token != a.adminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (a *API) getCurrentRound(c *gin.Context) {
	view, err := a.orch.CurrentRound(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load current round")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current round"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) joinRound(c *gin.Context) {
	var req submission.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := a.orch.JoinRound(c.Request.Context(), req)
	if err != nil {
		var joinErr *submission.JoinError
		if errors.As(err, &joinErr) {
			c.JSON(joinErrorStatus(joinErr.Code), gin.H{"error": joinErr.Message, "code": joinErr.Code})
			return
		}
		log.Error().Err(err).Msg("join round failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": result.Submission.ID,
		"round_id":      result.Round.ID,
		"player_count":  result.PlayerCount,
	})
}

func joinErrorStatus(code string) int {
	switch code {
	case submission.CodeRoundNotFound:
		return http.StatusNotFound
	case submission.CodeInvalidInput:
		return http.StatusBadRequest
	case submission.CodePaymentRequired, submission.CodePaymentInvalid:
		return http.StatusPaymentRequired
	default:
		return http.StatusConflict
	}
}

func (a *API) getSubmissions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round id"})
		return
	}
	subs, err := a.orch.Submissions(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("round_id", id.String()).Msg("failed to list submissions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (a *API) getResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round id"})
		return
	}
	result, err := a.orch.RoundResult(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("round_id", id.String()).Msg("failed to load result")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round has no result yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) voteNextJudge(c *gin.Context) {
	var req struct {
		CharacterID string `json:"character_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := a.orch.SetNextJudgeVote(req.CharacterID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"character_id": req.CharacterID})
}

func (a *API) createRound(c *gin.Context) {
	var req struct {
		PreferredCharacter string `json:"preferred_character"`
	}
	// body optional for admin create
	_ = c.ShouldBindJSON(&req)

	created, err := a.orch.CreateRound(c.Request.Context(), req.PreferredCharacter)
	if err != nil {
		if errors.Is(err, round.ErrRoundConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "a round is already in progress"})
			return
		}
		log.Error().Err(err).Msg("create round failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (a *API) forceComplete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round id"})
		return
	}

	result, err := a.orch.ForceComplete(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, round.ErrRoundNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		case errors.Is(err, round.ErrWrongPhase):
			c.JSON(http.StatusConflict, gin.H{"error": "round is not completable"})
		case errors.Is(err, round.ErrNotEnoughPlayers):
			c.JSON(http.StatusConflict, gin.H{"error": "not enough players to complete"})
		default:
			log.Error().Err(err).Str("round_id", id.String()).Msg("force complete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) connectionStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.cm.Stats())
}

// websocket upgrades the request and joins the requested rooms.
// Spectators get global; players pass their address to be tagged;
// admin room requires the admin token.
func (a *API) websocket(c *gin.Context) {
	rooms := []string{events.RoomGlobal}

	if roundID, err := uuid.Parse(c.Query("round_id")); err == nil {
		rooms = append(rooms, events.RoundRoom(roundID))
	}
	if c.Query("admin_token") != "" && c.Query("admin_token") == a.adminToken {
		rooms = append(rooms, events.RoomAdmin)
	}

	player := strings.ToLower(c.Query("player"))
	if err := a.cm.UpgradeConnection(c.Writer, c.Request, player, rooms); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
	}
}
