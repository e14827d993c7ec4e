package ai

import (
	"math/rand"
	"sync"
	"time"

	"github.com/roastarena/roastarena/go/internal/models"
)

// DefaultCharacters is the built-in judge persona set, used when no
// character config is provided.
var DefaultCharacters = []models.JudgeCharacter{
	{
		ID:          "savage_sam",
		DisplayName: "Savage Sam",
		StylePrompt: "You reward brutal, no-holds-barred roasts. Cleverness matters less than sheer audacity.",
	},
	{
		ID:          "wordplay_wanda",
		DisplayName: "Wordplay Wanda",
		StylePrompt: "You reward puns, double meanings and linguistic gymnastics above everything else.",
	},
	{
		ID:          "deadpan_dmitri",
		DisplayName: "Deadpan Dmitri",
		StylePrompt: "You reward dry, understated roasts. Anything that tries too hard loses points.",
	},
	{
		ID:          "chaos_carla",
		DisplayName: "Chaos Carla",
		StylePrompt: "You reward absurdist, unexpected roasts. The weirder the angle, the better.",
	},
}

// CharacterSet is the configured judge persona registry.
type CharacterSet struct {
	byID map[string]models.JudgeCharacter
	ids  []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCharacterSet(chars []models.JudgeCharacter) *CharacterSet {
	if len(chars) == 0 {
		chars = DefaultCharacters
	}
	cs := &CharacterSet{
		byID: make(map[string]models.JudgeCharacter, len(chars)),
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, c := range chars {
		cs.byID[c.ID] = c
		cs.ids = append(cs.ids, c.ID)
	}
	return cs
}

// Get looks up a character by id.
func (cs *CharacterSet) Get(id string) (models.JudgeCharacter, bool) {
	c, ok := cs.byID[id]
	return c, ok
}

// PickOrRandom returns the preferred character when it is a valid id,
// else a uniform-random one.
func (cs *CharacterSet) PickOrRandom(preferred string) models.JudgeCharacter {
	if c, ok := cs.byID[preferred]; ok {
		return c
	}
	cs.mu.Lock()
	id := cs.ids[cs.rnd.Intn(len(cs.ids))]
	cs.mu.Unlock()
	return cs.byID[id]
}

// All returns every configured character.
func (cs *CharacterSet) All() []models.JudgeCharacter {
	out := make([]models.JudgeCharacter, 0, len(cs.ids))
	for _, id := range cs.ids {
		out = append(out, cs.byID[id])
	}
	return out
}
