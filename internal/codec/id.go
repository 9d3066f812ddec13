package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRollbackPatchID generates a fresh RB-YYYYMMDD-XXXX identifier for a
// rollback-origin commit. The hex suffix is drawn from a random UUID so two
// rollbacks on the same day never collide.
func NewRollbackPatchID(day time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(fmt.Sprintf("%x", u[:2]))
	return fmt.Sprintf("RB-%s-%s", day.UTC().Format("20060102"), suffix)
}
