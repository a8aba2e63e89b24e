package mission

import (
	"regexp"
	"strconv"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

var complexityRE = regexp.MustCompile(`(?i)EXPECTED COMPLEXITY[^\d]*(\d{1,2})`)

// MaxRounds derives the round limit for a new session. The generator's
// EXPECTED COMPLEXITY estimate wins when present; otherwise the phase
// estimates are summed; otherwise def. The result is clamped to [min,max].
func MaxRounds(fullText string, phases []domain.Phase, def, min, max int) int {
	rounds := 0
	if m := complexityRE.FindStringSubmatch(fullText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rounds = n
		}
	}
	if rounds == 0 {
		for _, p := range phases {
			rounds += p.EstimatedRounds
		}
	}
	if rounds == 0 {
		rounds = def
	}
	if rounds < min {
		rounds = min
	}
	if rounds > max {
		rounds = max
	}
	return rounds
}
