package storage

import (
	"strconv"
	"strings"
)

// pendingLockKey identifies the advisory lock that serializes writers to the
// pending set on PostgreSQL.
const pendingLockKey = 727301

type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
	// lockStmt runs first in every write transaction.
	lockStmt string
	// forUpdate is appended to SELECTs that read rows about to be rewritten.
	forUpdate string
}

var (
	dialectSQLite = dialect{name: "sqlite"}

	dialectPostgres = dialect{
		name:      "postgres",
		numbered:  true,
		lockStmt:  "SELECT pg_advisory_xact_lock(" + strconv.Itoa(pendingLockKey) + ")",
		forUpdate: " FOR UPDATE",
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] != '?' {
			b.WriteByte(q[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
